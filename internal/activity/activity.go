// Package activity pages through the admin audit log.
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pf-studio/internal/client"
	"pf-studio/internal/model"
)

// Path is the backend endpoint serving the audit log.
const Path = "/admin/activity"

// PasswordHeader carries the admin password on every request.
const PasswordHeader = "X-Admin-Password"

// DefaultPageSize is used when the viewer is created with a non-positive size.
const DefaultPageSize = 50

// ErrMissingPassword is returned when no admin password is configured.
var ErrMissingPassword = errors.New("missing admin password")

// Caller is the part of the API client the viewer needs.
type Caller interface {
	DoJSON(ctx context.Context, req *model.Request, out any) error
}

// Filter narrows the audit log. Since and Until accept ISO-8601 or
// dd/mm/yyyy[ HH:MM]; values that do not parse are left out of the query.
type Filter struct {
	Actor  string
	Action string
	Since  string
	Until  string
	Sort   string // "asc" or "desc"; empty means "desc"
}

// Values encodes f with the given page window.
func (f Filter) Values(limit, offset int) url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(f.Actor); s != "" {
		v.Set("actor", s)
	}
	if s := strings.TrimSpace(f.Action); s != "" {
		v.Set("action", s)
	}
	if s, ok := NormalizeDate(f.Since); ok {
		v.Set("since", s)
	}
	if s, ok := NormalizeDate(f.Until); ok {
		v.Set("until", s)
	}
	sort := strings.TrimSpace(f.Sort)
	if sort == "" {
		sort = "desc"
	}
	v.Set("sort", sort)
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(offset))
	return v
}

// Entry is one audit-log record.
type Entry struct {
	ID        json.RawMessage `json:"id,omitempty"`
	TS        string          `json:"ts"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details,omitempty"`
	IP        string          `json:"ip"`
	UserAgent string          `json:"user_agent"`
}

// Time returns the timestamp for display: "T" replaced by a space, cut to
// seconds.
func (e Entry) Time() string {
	s := strings.Replace(e.TS, "T", " ", 1)
	if len(s) > 19 {
		s = s[:19]
	}
	return s
}

// DetailText returns Details as display text. Strings are shown unquoted,
// objects and arrays as compact JSON.
func (e Entry) DetailText() string {
	raw := bytes.TrimSpace(e.Details)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if json.Compact(&buf, raw) == nil {
		return buf.String()
	}
	return string(raw)
}

// Row is the entry's table cells in display order.
func (e Entry) Row() []string {
	return []string{e.Time(), e.Actor, e.Action, e.DetailText(), e.IP, e.UserAgent}
}

// page is the response body of Path.
type page struct {
	OK    bool    `json:"ok"`
	Items []Entry `json:"items"`
	Total int     `json:"total"`
}

// Status is the outcome of a fetch.
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Result is one fetched page. Err is set only with StatusError.
type Result struct {
	Status  Status
	Entries []Entry
	Offset  int
	Total   int
	Err     error
}

// Viewer holds the pagination state of one activity-log session.
type Viewer struct {
	api      Caller
	password string
	limit    int
	logger   *slog.Logger

	filter      Filter
	offset      int
	lastFetched int
	last        Result
}

// NewViewer creates a Viewer that sends password with every request.
func NewViewer(api Caller, password string, pageSize int, logger *slog.Logger) *Viewer {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Viewer{
		api:      api,
		password: password,
		limit:    pageSize,
		logger:   logger.With("component", "activity"),
	}
}

// PageSize returns the fixed number of entries requested per page.
func (v *Viewer) PageSize() int { return v.limit }

// Offset returns the offset of the current page.
func (v *Viewer) Offset() int { return v.offset }

// Load applies f and fetches the first page.
func (v *Viewer) Load(ctx context.Context, f Filter) Result {
	return v.LoadAt(ctx, f, 0)
}

// LoadAt applies f and fetches the page starting at offset.
func (v *Viewer) LoadAt(ctx context.Context, f Filter, offset int) Result {
	v.filter = f
	return v.Seek(ctx, offset)
}

// Seek fetches the page starting at offset with the current filter.
func (v *Viewer) Seek(ctx context.Context, offset int) Result {
	v.offset = max(0, offset)
	return v.fetch(ctx)
}

// HasNext reports whether the last page was full. A full final page still
// reports true; the next fetch then comes back empty.
func (v *Viewer) HasNext() bool { return v.lastFetched >= v.limit }

// Next fetches the following page. When HasNext is false it returns the
// last result without a request.
func (v *Viewer) Next(ctx context.Context) Result {
	if !v.HasNext() {
		return v.last
	}
	v.offset += v.limit
	return v.fetch(ctx)
}

// Prev fetches the previous page, clamped at the first.
func (v *Viewer) Prev(ctx context.Context) Result {
	v.offset = max(0, v.offset-v.limit)
	return v.fetch(ctx)
}

func (v *Viewer) fetch(ctx context.Context) Result {
	res := v.query(ctx)
	if res.Err != nil {
		v.logger.Error("activity load failed", "offset", v.offset, "err", res.Err)
	}
	v.lastFetched = len(res.Entries)
	v.last = res
	return res
}

func (v *Viewer) query(ctx context.Context) Result {
	if v.password == "" {
		return Result{Status: StatusError, Offset: v.offset, Err: ErrMissingPassword}
	}

	req := &model.Request{
		Method: http.MethodGet,
		Path:   Path + "?" + v.filter.Values(v.limit, v.offset).Encode(),
		Header: http.Header{PasswordHeader: {v.password}},
	}

	var p page
	err := v.api.DoJSON(ctx, req, &p)
	switch {
	case err == nil:
	case client.IsNoData(err):
		p = page{}
	default:
		return Result{Status: StatusError, Offset: v.offset, Err: fmt.Errorf("activity load failed: %w", err)}
	}

	if len(p.Items) == 0 {
		return Result{Status: StatusEmpty, Offset: v.offset, Total: p.Total}
	}
	return Result{Status: StatusOK, Entries: p.Items, Offset: v.offset, Total: p.Total}
}
