package htmlpatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const page = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Login</title>
</head>
<body></body>
</html>
`

func TestInjectAPIBase(t *testing.T) {
	out, outcome, err := InjectAPIBase(page, "https://api.example.com")
	if err != nil {
		t.Fatalf("InjectAPIBase() error = %v", err)
	}
	if outcome != Inserted {
		t.Errorf("outcome = %q, want %q", outcome, Inserted)
	}
	want := "<head>\n    <meta name=\"pf:apiBase\" content=\"https://api.example.com\">\n    <meta charset"
	if !strings.Contains(out, want) {
		t.Errorf("tag not inserted after <head>:\n%s", out)
	}

	again, outcome, err := InjectAPIBase(out, "https://api.example.com")
	if err != nil {
		t.Fatalf("InjectAPIBase() second run error = %v", err)
	}
	if outcome != Unchanged || again != out {
		t.Errorf("second run = %q, want unchanged document", outcome)
	}

	moved, outcome, err := InjectAPIBase(out, "https://new.example.com")
	if err != nil {
		t.Fatalf("InjectAPIBase() update error = %v", err)
	}
	if outcome != Updated {
		t.Errorf("outcome = %q, want %q", outcome, Updated)
	}
	if strings.Count(moved, "pf:apiBase") != 1 || !strings.Contains(moved, `content="https://new.example.com"`) {
		t.Errorf("update did not replace the tag in place:\n%s", moved)
	}
}

func TestInjectAPIBase_NoHead(t *testing.T) {
	_, outcome, err := InjectAPIBase("<html><body></body></html>", "https://api.example.com")
	if !errors.Is(err, ErrNoHead) {
		t.Errorf("error = %v, want ErrNoHead", err)
	}
	if outcome != Failed {
		t.Errorf("outcome = %q, want %q", outcome, Failed)
	}
	if _, _, err := InjectAPIBase("<html><header></header></html>", "https://a.example"); !errors.Is(err, ErrNoHead) {
		t.Errorf("<header> must not count as <head>: error = %v", err)
	}
}

func TestInjectAPIBase_EscapesValue(t *testing.T) {
	out, _, err := InjectAPIBase(page, `https://a.example/?x=1&y="2"`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `content="https://a.example/?x=1&amp;y=&#34;2&#34;"`) {
		t.Errorf("value not escaped:\n%s", out)
	}
}

func TestNormalizeHead(t *testing.T) {
	in := `<html>
<head>
    <meta charset="utf-8">
    <script src="https://cdn.tailwindcss.com"></script>
    <script src="/api.js"></script>
    <script src='runtime-config.js'></script>
</head>
<body>
<script>
  apiFetch('/v1/plans');
  window.apiFetch('/v1/projects');
  PF.apiFetch('/x');
</script>
<script src="runtime-config.js"></script>
</body>
</html>
`
	want := `<html>
<head>
    <script src="runtime-config.js"></script>
    <script src="api.js"></script>
    <meta charset="utf-8">
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body>
<script>
  window.apiFetch('/v1/plans');
  window.apiFetch('/v1/projects');
  PF.apiFetch('/x');
</script>
</body>
</html>
`

	got, outcome, err := NormalizeHead(in)
	if err != nil {
		t.Fatalf("NormalizeHead() error = %v", err)
	}
	if outcome != Changed {
		t.Errorf("outcome = %q, want %q", outcome, Changed)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeHead() mismatch (-want +got):\n%s", diff)
	}

	again, outcome, err := NormalizeHead(got)
	if err != nil {
		t.Fatalf("NormalizeHead() second run error = %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("second run outcome = %q, want %q", outcome, Unchanged)
	}
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("NormalizeHead() not idempotent (-first +second):\n%s", diff)
	}
}

func TestNormalizeHead_InlineHead(t *testing.T) {
	first, _, err := NormalizeHead("<html><head><title>x</title></head></html>")
	if err != nil {
		t.Fatal(err)
	}
	second, outcome, err := NormalizeHead(first)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Unchanged || second != first {
		t.Errorf("second run changed the document:\n%s\n---\n%s", first, second)
	}
}

func TestNormalizeHead_NoHead(t *testing.T) {
	if _, _, err := NormalizeHead("<body></body>"); !errors.Is(err, ErrNoHead) {
		t.Errorf("error = %v, want ErrNoHead", err)
	}
}

func TestRewriteCalls(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"apiFetch(x)", "window.apiFetch(x)"},
		{"a; apiFetch(x); apiFetch(y)", "a; window.apiFetch(x); window.apiFetch(y)"},
		{"window.apiFetch(x)", "window.apiFetch(x)"},
		{"async function apiFetch(path) {}", "async function apiFetch(path) {}"},
		{"myapiFetch(x)", "myapiFetch(x)"},
		{"$apiFetch(x)", "$apiFetch(x)"},
		{"no calls here", "no calls here"},
	}
	for _, tt := range tests {
		if got := rewriteCalls(tt.in); got != tt.want {
			t.Errorf("rewriteCalls(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReindent(t *testing.T) {
	in := "<script>\n" +
		"    var bg = 1;\n" +
		"    " + DashboardMarker + "\n" +
		"    (function(){\n" +
		"      already();\n" +
		"\n" +
		"     five();\n" +
		"    })();\n" +
		"</script>\n"
	want := "<script>\n" +
		"    var bg = 1;\n" +
		"    " + DashboardMarker + "\n" +
		"      (function(){\n" +
		"      already();\n" +
		"\n" +
		"       five();\n" +
		"      })();\n" +
		"</script>\n"

	got, outcome, err := Reindent(in, DashboardMarker)
	if err != nil {
		t.Fatalf("Reindent() error = %v", err)
	}
	if outcome != Changed {
		t.Errorf("outcome = %q, want %q", outcome, Changed)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reindent() mismatch (-want +got):\n%s", diff)
	}

	if _, outcome, _ := Reindent(got, DashboardMarker); outcome != Unchanged {
		t.Errorf("second run outcome = %q, want %q", outcome, Unchanged)
	}
}

func TestReindent_Errors(t *testing.T) {
	if _, _, err := Reindent("<script></script>", DashboardMarker); !errors.Is(err, ErrNoMarker) {
		t.Errorf("error = %v, want ErrNoMarker", err)
	}
	if _, _, err := Reindent("</script>"+DashboardMarker, DashboardMarker); !errors.Is(err, ErrNoScriptEnd) {
		t.Errorf("error = %v, want ErrNoScriptEnd", err)
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestApply(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.html": page,
		"b.html": "<html><body>no head</body></html>",
		"c.html": strings.Replace(page, "<head>", "<head>\n"+MetaTag("https://api.example.com"), 1),
	})

	patch := func(content string) (string, Outcome, error) {
		return InjectAPIBase(content, "https://api.example.com")
	}
	results, err := Apply(context.Background(), root, []string{"c.html", "a.html", "missing.html", "b.html"}, patch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got := map[string]Outcome{}
	for _, r := range results {
		got[r.File] = r.Outcome
	}
	want := map[string]Outcome{
		"a.html":       Inserted,
		"b.html":       Failed,
		"c.html":       Unchanged,
		"missing.html": Missing,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if results[0].File != "a.html" {
		t.Errorf("results not sorted: first = %q", results[0].File)
	}

	data, err := os.ReadFile(filepath.Join(root, "a.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `name="pf:apiBase"`) {
		t.Error("a.html was not written back")
	}

	summary := Summarize(results)
	if summary[Inserted] != 1 || summary[Failed] != 1 || summary[Missing] != 1 || summary[Unchanged] != 1 {
		t.Errorf("Summarize() = %v", summary)
	}
}

func TestApply_Canceled(t *testing.T) {
	root := writeFiles(t, map[string]string{"a.html": page})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Apply(ctx, root, []string{"a.html"}, NormalizeHead)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Apply() error = %v, want context.Canceled", err)
	}
}

func TestCheck(t *testing.T) {
	good := `<html><head>
<script src="https://cdn.tailwindcss.com"></script>
<script src="runtime-config.js"></script>
<script src="api.js?v=3"></script>
</head><body><script>window.apiFetch('/v1/plans')</script></body></html>`

	lateConfig := `<html><head>
<script src="app.js"></script>
<script src="runtime-config.js"></script>
</head><body><script>fetch("https://api.example.com/x"); fetch('/login', {})</script></body></html>`

	bodyOnly := `<html><head></head><body><script src="runtime-config.js"></script></body></html>`

	root := writeFiles(t, map[string]string{
		"good.html": good,
		"late.html": lateConfig,
		"body.html": bodyOnly,
		"none.html": "<html><head></head></html>",
		APIScript:   `async function apiFetch(p, o) { return fetch(p, { credentials: "include" }) }`,
	})

	report, err := Check(root, []string{"good.html", "late.html", "body.html", "none.html", "gone.html"})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	byFile := map[string][]Level{}
	for _, f := range report.Findings {
		byFile[f.File] = append(byFile[f.File], f.Level)
	}
	want := map[string][]Level{
		"good.html": {Pass},
		"late.html": {Warn, Fail, Pass, Warn, Warn},
		"body.html": {Fail},
		"none.html": {Fail},
		"gone.html": {Warn},
		APIScript:   {Pass},
	}
	if diff := cmp.Diff(want, byFile); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
	if report.OK() {
		t.Error("OK() = true with failures")
	}
}

func TestCheck_APIScript(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Level
	}{
		{"no wrapper", "console.log(1)", Fail},
		{"no credentials", "window.apiFetch = function(){}", Fail},
		{"single quotes", "const apiFetch = (p) => fetch(p, {credentials: 'include'})", Pass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeFiles(t, map[string]string{APIScript: tt.content})
			report, err := Check(root, nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(report.Findings) != 1 || report.Findings[0].Level != tt.want {
				t.Errorf("findings = %v, want one %s", report.Findings, tt.want)
			}
		})
	}

	report, err := Check(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Count(Fail) != 1 {
		t.Errorf("missing api.js: findings = %v", report.Findings)
	}
}
