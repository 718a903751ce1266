package htmlpatch

import (
	"regexp"
	"strings"
)

// Scripts every page must load first, in this order.
const (
	RuntimeConfigScript = "runtime-config.js"
	APIScript           = "api.js"
)

var (
	runtimeConfigTag = scriptTagPattern(RuntimeConfigScript)
	apiTag           = scriptTagPattern(APIScript)
	apiFetchCall     = regexp.MustCompile(`\bapiFetch\(`)
)

// scriptTagPattern matches a whole line holding a <script src=name> include.
func scriptTagPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)[ \t]*<script[^>]+src=["'](?:\./|/)?` + regexp.QuoteMeta(name) +
		`["'][^>]*>\s*</script>[ \t]*(?:\r?\n)?`)
}

// NormalizeHead puts the runtime-config.js and api.js includes at the top of
// <head>, dropping any other copies, and routes bare apiFetch( calls through
// window.apiFetch(. The result is stable under repeated runs.
func NormalizeHead(content string) (string, Outcome, error) {
	if headOpen.FindStringIndex(content) == nil || headClose.FindStringIndex(content) == nil {
		return content, Failed, ErrNoHead
	}

	out := runtimeConfigTag.ReplaceAllLiteralString(content, "")
	out = apiTag.ReplaceAllLiteralString(out, "")

	loc := headOpen.FindStringIndex(out)
	rest := out[loc[1]:]
	if !strings.HasPrefix(rest, "\n") && !strings.HasPrefix(rest, "\r\n") {
		rest = "\n" + rest
	}
	out = out[:loc[1]] +
		"\n" + metaIndent + `<script src="` + RuntimeConfigScript + `"></script>` +
		"\n" + metaIndent + `<script src="` + APIScript + `"></script>` +
		rest

	out = rewriteCalls(out)
	if out == content {
		return content, Unchanged, nil
	}
	return out, Changed, nil
}

// rewriteCalls prefixes bare apiFetch( calls with window. Member calls and
// function declarations are left alone.
func rewriteCalls(s string) string {
	var b strings.Builder
	last, n := 0, 0
	for _, m := range apiFetchCall.FindAllStringIndex(s, -1) {
		start := m[0]
		if start > 0 && (s[start-1] == '.' || s[start-1] == '$') {
			continue
		}
		if strings.HasSuffix(strings.TrimRight(s[:start], " \t"), "function") {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString("window.")
		last = start
		n++
	}
	if n == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}
