// Package client dispatches requests to the backend API at the resolved origin.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"pf-studio/internal/apibase"
	"pf-studio/internal/config"
	"pf-studio/internal/metrics"
	"pf-studio/internal/model"
	"pf-studio/internal/store"
)

// maxErrorBody caps how much of a failed response body goes into a StatusError.
const maxErrorBody = 64 << 10

// Client sends requests to the backend API.
type Client struct {
	// api carries a cookie jar so session-based admin endpoints work on
	// every call; raw has none and is used for forwarding browser requests.
	api     *http.Client
	raw     *http.Client
	runtime *apibase.Runtime
	state   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Client with connection pooling and a cookie jar.
// The metrics parameter is optional; pass nil to disable call metrics.
func New(cfg *config.Config, rt *apibase.Runtime, st store.Store, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.API.IdleConnections,
		MaxIdleConnsPerHost: cfg.API.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second

	return &Client{
		api:     &http.Client{Transport: transport, Timeout: timeout, Jar: jar},
		raw:     &http.Client{Transport: transport, Timeout: timeout},
		runtime: rt,
		state:   st,
		logger:  logger.With("component", "api_client"),
		metrics: m,
	}, nil
}

// Runtime returns the configuration the client was built with.
func (c *Client) Runtime() *apibase.Runtime { return c.runtime }

// URL returns the absolute URL a request for target would be sent to.
func (c *Client) URL(target, origin string) (string, error) {
	base := c.runtime.APIBase()
	if origin != "" {
		v, ok := apibase.Normalize(origin)
		if !ok {
			return "", fmt.Errorf("invalid per-call origin %q", origin)
		}
		base = v
	}
	u := BuildURL(base, target)
	if base == "" && !absoluteURL.MatchString(u) {
		return "", apibase.ErrNoOrigin
	}
	return u, nil
}

// Do sends req and returns the response as received. The caller owns the
// response body and is responsible for checking the status.
func (c *Client) Do(ctx context.Context, req *model.Request) (*http.Response, error) {
	target, err := c.URL(req.Path, req.Origin)
	if err != nil {
		return nil, err
	}

	header := make(http.Header, len(req.Header)+3)
	for k, vals := range req.Header {
		header[http.CanonicalHeaderKey(k)] = append([]string(nil), vals...)
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}
	switch {
	case contentType != "":
		header.Set("Content-Type", contentType)
	case header.Get("Content-Type") == "":
		header.Set("Content-Type", "application/json")
	}

	if header.Get("Authorization") == "" {
		if token := store.GetString(ctx, c.state, store.KeyAuthToken); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	if header.Get(requestIDHeader) == "" {
		header.Set(requestIDHeader, uuid.NewString())
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build api request: %w", err)
	}
	httpReq.Header = header

	return c.send(c.api, httpReq)
}

// requestIDHeader correlates a call with the backend's logs.
const requestIDHeader = "X-Request-Id"

// encodeBody returns the request body and, for multipart forms, the content
// type carrying the boundary.
func encodeBody(req *model.Request) (io.Reader, string, error) {
	set := 0
	if req.Body != nil {
		set++
	}
	if req.JSON != nil {
		set++
	}
	if req.Form != nil {
		set++
	}
	if set > 1 {
		return nil, "", ErrConflictingBody
	}

	switch {
	case req.Body != nil:
		return bytes.NewReader(req.Body), "", nil
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return bytes.NewReader(data), "", nil
	case req.Form != nil:
		return encodeForm(req.Form)
	}
	return nil, "", nil
}

func encodeForm(f *model.Form) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range f.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("encode form field %s: %w", k, err)
		}
	}
	for _, file := range f.Files {
		part, err := w.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("encode form file %s: %w", file.Field, err)
		}
		if file.Content != nil {
			if _, err := io.Copy(part, file.Content); err != nil {
				return nil, "", fmt.Errorf("encode form file %s: %w", file.Field, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// DoJSON sends req and decodes a JSON response into out.
//
// Non-2xx responses yield *StatusError with the body text, non-JSON
// responses *ContentTypeError, and an empty or malformed JSON body ErrNoData.
func (c *Client) DoJSON(ctx context.Context, req *model.Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	ct := resp.Header.Get("Content-Type")
	if !isJSON(ct) {
		return &ContentTypeError{ContentType: ct}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read api response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrNoData
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("discarding malformed json response", "path", req.Path, "err", err)
		return fmt.Errorf("%w: %v", ErrNoData, err)
	}
	return nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// Forward sends an already-built request without the cookie jar, stored
// credentials or body encoding. The caller owns the response body; ctx
// cancellation aborts the backend call.
func (c *Client) Forward(ctx context.Context, method, url string, header http.Header, body io.Reader) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build forward request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	resp, err := c.send(c.raw, req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	if err != nil {
		return nil, err
	}
	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	c.logger.Debug("api request",
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	start := time.Now()
	resp, err := hc.Do(req) //nolint:bodyclose // body ownership transfers to caller
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.APICallDuration.WithLabelValues(method).Observe(duration)
		}
		c.logger.Error("api request failed", "method", req.Method, "path", req.URL.Path, "err", err)
		return nil, fmt.Errorf("api request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.APICallDuration.WithLabelValues(method).Observe(duration)
		c.metrics.APIResponses.WithLabelValues(method, status).Inc()
	}
	return resp, nil
}

// CloseIdleConnections releases pooled backend connections.
func (c *Client) CloseIdleConnections() {
	c.api.CloseIdleConnections()
}

// IsNoData reports whether err means "the call worked but there was nothing to read".
func IsNoData(err error) bool {
	var ct *ContentTypeError
	return errors.Is(err, ErrNoData) || errors.As(err, &ct)
}
