package htmlpatch

import (
	"errors"
	"strings"
)

// DashboardMarker opens the main script block of dashboard.html.
const DashboardMarker = "// ========= Main application logic (wrapped in IIFE) ========="

var (
	ErrNoMarker    = errors.New("start marker not found")
	ErrNoScriptEnd = errors.New("no closing </script> tag found")
)

// Reindent nests the lines between marker and the last </script> one level
// deeper: lines indented by exactly four spaces move to six. Blank lines and
// lines already at six or more are kept.
func Reindent(content, marker string) (string, Outcome, error) {
	start := strings.Index(content, marker)
	if start < 0 {
		return content, Failed, ErrNoMarker
	}
	end := strings.LastIndex(content, "</script>")
	if end < start {
		return content, Failed, ErrNoScriptEnd
	}

	lines := strings.Split(content[start:end], "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "      ") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "    "); ok {
			lines[i] = "      " + rest
		}
	}

	out := content[:start] + strings.Join(lines, "\n") + content[end:]
	if out == content {
		return content, Unchanged, nil
	}
	return out, Changed, nil
}
