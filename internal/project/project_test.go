package project

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pf-studio/internal/apibase"
	"pf-studio/internal/client"
	"pf-studio/internal/config"
	"pf-studio/internal/model"
	"pf-studio/internal/store"
)

// fakeAPI answers DoJSON from a per-path script and records the calls made.
type fakeAPI struct {
	responses map[string]func(out any) error
	calls     []string
}

func (f *fakeAPI) DoJSON(_ context.Context, req *model.Request, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	key := method + " " + req.Path
	f.calls = append(f.calls, key)
	respond, ok := f.responses[key]
	if !ok {
		return errors.New("unexpected call " + key)
	}
	return respond(out)
}

func body(doc string) func(out any) error {
	return func(out any) error { return json.Unmarshal([]byte(doc), out) }
}

func fail(err error) func(out any) error {
	return func(any) error { return err }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var frozen = time.UnixMilli(1700000000123)

func TestCache_Ensure(t *testing.T) {
	const (
		recent = "GET /v1/projects?recent=1"
		create = "POST /v1/projects"
	)

	tests := []struct {
		name      string
		responses map[string]func(out any) error
		want      string
		wantCalls []string
	}{
		{
			name:      "recent array",
			responses: map[string]func(out any) error{recent: body(`[{"id":"p-1"},{"id":"p-2"}]`)},
			want:      "p-1",
			wantCalls: []string{recent},
		},
		{
			name:      "recent items object",
			responses: map[string]func(out any) error{recent: body(`{"items":[{"id":"p-7","project_title":"x"}]}`)},
			want:      "p-7",
			wantCalls: []string{recent},
		},
		{
			name:      "numeric id",
			responses: map[string]func(out any) error{recent: body(`[{"id":42}]`)},
			want:      "42",
			wantCalls: []string{recent},
		},
		{
			name: "none recent so create",
			responses: map[string]func(out any) error{
				recent: body(`{"items":[]}`),
				create: body(`{"project_id":"new-1"}`),
			},
			want:      "new-1",
			wantCalls: []string{recent, create},
		},
		{
			name: "non-json recent so create",
			responses: map[string]func(out any) error{
				recent: fail(&client.ContentTypeError{ContentType: "text/html"}),
				create: body(`{"project_id":"new-2"}`),
			},
			want:      "new-2",
			wantCalls: []string{recent, create},
		},
		{
			name: "backend unreachable",
			responses: map[string]func(out any) error{
				recent: fail(errors.New("dial tcp: connection refused")),
			},
			want:      "proj_1700000000123",
			wantCalls: []string{recent},
		},
		{
			name: "create fails",
			responses: map[string]func(out any) error{
				recent: body(`[]`),
				create: fail(&client.StatusError{StatusCode: http.StatusInternalServerError}),
			},
			want:      "proj_1700000000123",
			wantCalls: []string{recent, create},
		},
		{
			name: "create without id",
			responses: map[string]func(out any) error{
				recent: body(`[]`),
				create: body(`{"ok":true}`),
			},
			want:      "proj_1700000000123",
			wantCalls: []string{recent, create},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{responses: tt.responses}
			st := store.NewMemory()
			c := New(api, st, discardLogger(), WithClock(func() time.Time { return frozen }))

			got, err := c.Ensure(context.Background())
			if err != nil {
				t.Fatalf("Ensure() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Ensure() = %q, want %q", got, tt.want)
			}
			if diff := cmp.Diff(tt.wantCalls, api.calls); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
			if stored := store.GetString(context.Background(), st, store.KeyProjectID); stored != tt.want {
				t.Errorf("persisted id = %q, want %q", stored, tt.want)
			}
		})
	}
}

func TestCache_Ensure_PersistedSkipsNetwork(t *testing.T) {
	api := &fakeAPI{responses: map[string]func(out any) error{
		"GET /v1/projects?recent=1": body(`[{"id":"p-1"}]`),
	}}
	c := New(api, store.NewMemory(), discardLogger())

	first, err := c.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	second, err := c.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	if first != second {
		t.Errorf("Ensure() = %q then %q, want the same id", first, second)
	}
	if len(api.calls) != 1 {
		t.Errorf("network calls = %d, want 1", len(api.calls))
	}
}

func TestCache_Clear(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Set(ctx, store.KeyProjectID, "old")

	api := &fakeAPI{responses: map[string]func(out any) error{
		"GET /v1/projects?recent=1": body(`[]`),
		"POST /v1/projects":         body(`{"project_id":"fresh"}`),
	}}
	c := New(api, st, discardLogger())

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := st.Get(ctx, store.KeyProjectID); ok {
		t.Fatal("project id still persisted after Clear()")
	}

	got, err := c.Ensure(ctx)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if got != "fresh" {
		t.Errorf("Ensure() after Clear() = %q, want %q", got, "fresh")
	}
}

func TestCache_Ensure_ThroughClient(t *testing.T) {
	seen := make(chan createRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.RequestURI() {
		case "GET /v1/projects?recent=1":
			_, _ = io.WriteString(w, `{"items":[]}`)
		case "POST /v1/projects":
			var req createRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			seen <- req
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"project_id":"srv-1"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	rt, err := apibase.NewRuntime(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewMemory()
	cfg := &config.Config{API: config.APIConfig{IdleConnections: 2}}
	api, err := client.New(cfg, rt, st, discardLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer api.CloseIdleConnections()

	got, err := New(api, st, discardLogger()).Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if got != "srv-1" {
		t.Errorf("Ensure() = %q, want %q", got, "srv-1")
	}
	want := createRequest{ProjectTitle: DefaultTitle, VideoLengthSec: DefaultLengthSec, Source: DefaultSource}
	if diff := cmp.Diff(want, <-seen); diff != "" {
		t.Errorf("create body mismatch (-want +got):\n%s", diff)
	}
}
