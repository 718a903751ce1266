// Package htmlpatch rewrites and checks the front-end HTML pages at deploy time.
package htmlpatch

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"pf-studio/internal/apibase"
)

// ErrNoHead is returned for documents without a <head> element.
var ErrNoHead = errors.New("no <head> tag found")

// Outcome describes what a patch did to one file.
type Outcome string

const (
	Inserted  Outcome = "inserted"
	Updated   Outcome = "updated"
	Changed   Outcome = "changed"
	Unchanged Outcome = "unchanged"
	Failed    Outcome = "error"
	Missing   Outcome = "missing"
)

// metaIndent matches the indentation of the other <head> children.
const metaIndent = "    "

var (
	headOpen    = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)
	headClose   = regexp.MustCompile(`(?i)</head\s*>`)
	metaPattern = regexp.MustCompile(`[ \t]*<meta name="` + regexp.QuoteMeta(apibase.MetaName) + `" content="[^"]*"\s*/?>`)
)

// MetaTag returns the indented pf:apiBase tag for apiBase.
func MetaTag(apiBase string) string {
	return metaIndent + `<meta name="` + apibase.MetaName + `" content="` + html.EscapeString(apiBase) + `">`
}

// InjectAPIBase sets the pf:apiBase meta tag in content. An existing tag is
// rewritten in place; otherwise a new one goes right after <head>.
// Running it twice with the same value leaves the document unchanged.
func InjectAPIBase(content, apiBase string) (string, Outcome, error) {
	tag := MetaTag(apiBase)

	if strings.Contains(content, `name="`+apibase.MetaName+`"`) {
		out := metaPattern.ReplaceAllLiteralString(content, tag)
		if out == content {
			return content, Unchanged, nil
		}
		return out, Updated, nil
	}

	loc := headOpen.FindStringIndex(content)
	if loc == nil {
		return content, Failed, ErrNoHead
	}
	return content[:loc[1]] + "\n" + tag + content[loc[1]:], Inserted, nil
}
