package htmlpatch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Level grades a Finding.
type Level string

const (
	Pass Level = "PASS"
	Warn Level = "WARN"
	Fail Level = "FAIL"
)

// Finding is one static-assertion result.
type Finding struct {
	Level   Level
	File    string
	Message string
}

func (f Finding) String() string {
	if f.File == "" {
		return fmt.Sprintf("%s: %s", f.Level, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Level, f.File, f.Message)
}

// Report collects the findings of one Check run.
type Report struct {
	Findings []Finding
}

func (r *Report) add(level Level, file, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Level: level, File: file, Message: fmt.Sprintf(format, args...)})
}

// Count returns the number of findings at level.
func (r *Report) Count(level Level) int {
	n := 0
	for _, f := range r.Findings {
		if f.Level == level {
			n++
		}
	}
	return n
}

// OK reports whether no check failed. Warnings do not count.
func (r *Report) OK() bool { return r.Count(Fail) == 0 }

// APIPaths are backend routes that pages must reach through apiFetch.
var APIPaths = []string{"/login", "/get-user-status", "/v1/", "/admin/", "/create-bill", "/register", "/activity/log"}

// earlyScriptHints mark third-party scripts allowed ahead of runtime-config.js.
var earlyScriptHints = []string{"tailwindcss", "fonts.googleapis", "env.js", "cdn.", "external"}

var (
	absoluteFetch = regexp.MustCompile(`\bfetch\s*\(\s*["']https?://`)
	directFetch   = make(map[string]*regexp.Regexp, len(APIPaths))
	credentials   = regexp.MustCompile(`credentials:\s*["']include["']`)
)

func init() {
	for _, p := range APIPaths {
		directFetch[p] = regexp.MustCompile(`\bfetch\s*\([^)]*["']` + regexp.QuoteMeta(p))
	}
}

// Check runs the front-end static assertions over files under root and
// over the api.js wrapper.
func Check(root string, files []string) (*Report, error) {
	r := &Report{}
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			r.add(Warn, name, "file not found")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		checkPage(r, name, string(data))
	}

	data, err := os.ReadFile(filepath.Join(root, APIScript))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.add(Fail, APIScript, "file not found, apiFetch wrapper missing")
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", APIScript, err)
	default:
		checkAPIScript(r, string(data))
	}
	return r, nil
}

func checkPage(r *Report, name, content string) {
	checkHead(r, name, content)

	if n := len(absoluteFetch.FindAllStringIndex(content, -1)); n > 0 {
		r.add(Warn, name, "%d fetch call(s) with absolute URLs; use apiFetch with relative paths", n)
	}
	for _, p := range APIPaths {
		if directFetch[p].MatchString(content) {
			r.add(Warn, name, "direct fetch to %s; route it through apiFetch()", p)
		}
	}
}

func checkHead(r *Report, name, content string) {
	if !strings.Contains(content, RuntimeConfigScript) {
		r.add(Fail, name, "missing %s include", RuntimeConfigScript)
		return
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil || !headOpen.MatchString(content) {
		r.add(Fail, name, "no <head> section found")
		return
	}
	head := findElement(doc, atom.Head)
	if head == nil {
		r.add(Fail, name, "no <head> section found")
		return
	}

	srcs := scriptSources(head)
	runtimeAt := -1
	for i, src := range srcs {
		if scriptName(src) == RuntimeConfigScript {
			runtimeAt = i
			break
		}
	}
	if runtimeAt < 0 {
		r.add(Fail, name, "%s not in <head> section", RuntimeConfigScript)
		return
	}

	early := 0
	for _, src := range srcs[:runtimeAt] {
		if !hasAnyHint(src) {
			early++
		}
	}
	if early > 0 {
		r.add(Warn, name, "%d potentially problematic script(s) before %s", early, RuntimeConfigScript)
	}

	hasAPI := false
	for _, src := range srcs {
		if scriptName(src) == APIScript {
			hasAPI = true
		}
	}
	if !hasAPI {
		r.add(Fail, name, "%s not included in <head>", APIScript)
	}

	r.add(Pass, name, "%s properly included in <head>", RuntimeConfigScript)
}

func checkAPIScript(r *Report, content string) {
	switch {
	case !strings.Contains(content, "function apiFetch") && !strings.Contains(content, "apiFetch ="):
		r.add(Fail, APIScript, "does not define apiFetch")
	case !credentials.MatchString(content):
		r.add(Fail, APIScript, `apiFetch does not set credentials: "include"`)
	default:
		r.add(Pass, APIScript, "apiFetch properly configured")
	}
}

// scriptName is the file name of a script src without query or fragment.
func scriptName(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	return path.Base(src)
}

func hasAnyHint(src string) bool {
	for _, h := range earlyScriptHints {
		if strings.Contains(src, h) {
			return true
		}
	}
	return false
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// scriptSources lists the src of each <script> under n in document order.
// Inline scripts appear as "".
func scriptSources(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			src := ""
			for _, a := range n.Attr {
				if a.Key == "src" {
					src = a.Val
				}
			}
			out = append(out, src)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
