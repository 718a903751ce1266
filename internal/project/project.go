// Package project keeps the identifier that ties API calls to one unit of work.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"pf-studio/internal/client"
	"pf-studio/internal/model"
	"pf-studio/internal/store"
)

// Defaults sent when the backend has to create a project.
const (
	DefaultTitle       = "Untitled Project"
	DefaultLengthSec   = 30
	DefaultSource      = "chatroom"
	fallbackPrefix     = "proj_"
	recentProjectsPath = "/v1/projects?recent=1"
	createProjectPath  = "/v1/projects"
)

// Caller is the part of the API client the cache needs.
type Caller interface {
	DoJSON(ctx context.Context, req *model.Request, out any) error
}

// Cache looks up, creates and persists the current project identifier.
// Concurrent Ensure calls from separate processes may race; the last write wins.
type Cache struct {
	api    Caller
	state  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for the offline fallback identifier.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache.
func New(api Caller, st store.Store, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		api:    api,
		state:  st,
		logger: logger.With("component", "project"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type createRequest struct {
	ProjectTitle   string `json:"project_title"`
	VideoLengthSec int    `json:"video_length_sec"`
	Source         string `json:"source"`
}

type createResponse struct {
	ProjectID string `json:"project_id"`
}

type recentProject struct {
	ID json.RawMessage `json:"id"`
}

// Ensure returns the persisted identifier, or finds or creates one.
//
// The most recently used backend project wins; with none, a new project is
// created. When the backend cannot be reached a local "proj_<millis>" id is
// used instead. Whichever id is returned is persisted.
func (c *Cache) Ensure(ctx context.Context) (string, error) {
	id, ok, err := c.state.Get(ctx, store.KeyProjectID)
	if err != nil {
		return "", fmt.Errorf("read project id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id, err = c.fromBackend(ctx)
	if err != nil {
		c.logger.Warn("failed to ensure project id", "err", err)
	}
	if id == "" {
		id = fallbackPrefix + strconv.FormatInt(c.now().UnixMilli(), 10)
		c.logger.Info("using offline project id", "project_id", id)
	}

	if err := c.state.Set(ctx, store.KeyProjectID, id); err != nil {
		return id, fmt.Errorf("persist project id: %w", err)
	}
	return id, nil
}

// fromBackend returns "" with a nil error when the backend answered but gave
// nothing usable.
func (c *Cache) fromBackend(ctx context.Context) (string, error) {
	var recent json.RawMessage
	err := c.api.DoJSON(ctx, &model.Request{Path: recentProjectsPath}, &recent)
	switch {
	case err == nil:
		if id := firstProjectID(recent); id != "" {
			return id, nil
		}
	case client.IsNoData(err):
	default:
		return "", fmt.Errorf("recent projects: %w", err)
	}

	var created createResponse
	err = c.api.DoJSON(ctx, &model.Request{
		Method: http.MethodPost,
		Path:   createProjectPath,
		JSON: createRequest{
			ProjectTitle:   DefaultTitle,
			VideoLengthSec: DefaultLengthSec,
			Source:         DefaultSource,
		},
	}, &created)
	if err != nil && !client.IsNoData(err) {
		return "", fmt.Errorf("create project: %w", err)
	}
	if created.ProjectID != "" {
		c.logger.Info("created project", "project_id", created.ProjectID)
	}
	return created.ProjectID, nil
}

// firstProjectID accepts either a bare array of projects or an object
// wrapping it in "items".
func firstProjectID(raw json.RawMessage) string {
	var list []recentProject
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Items []recentProject `json:"items"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return ""
		}
		list = wrapped.Items
	}
	if len(list) == 0 {
		return ""
	}
	return idString(list[0].ID)
}

// idString renders a JSON string or number id as text.
func idString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Clear forgets the persisted identifier so the next Ensure starts a new one.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.state.Delete(ctx, store.KeyProjectID); err != nil {
		return fmt.Errorf("clear project id: %w", err)
	}
	return nil
}
