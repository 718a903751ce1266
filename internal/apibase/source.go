package apibase

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/html"

	"pf-studio/internal/store"
)

// MetaName is the page-level metadata tag carrying the API base.
const MetaName = "pf:apiBase"

// Source is one candidate in the resolver's priority list.
type Source struct {
	// Name labels the source in logs and metrics.
	Name string
	// Lookup returns the raw candidate, or "" when the source has nothing.
	Lookup func() string
	// DevOnly sources are skipped on production hosts.
	DevOnly bool
}

// precedence lists source names from strongest to weakest. A Runtime built
// with NewRuntime ranks above every resolver source; an unresolved Runtime
// (empty source) ranks below all of them.
var precedence = []string{"explicit", "injected", "meta", "env", "query", "stored", "fallback"}

func rank(source string) int {
	for i, name := range precedence {
		if name == source {
			return i
		}
	}
	return len(precedence)
}

// Outranks reports whether an origin taken from source wins over one taken
// from other.
func Outranks(source, other string) bool {
	return rank(source) < rank(other)
}

// Injected is the value placed by the hosting environment before anything
// else runs (config api.base, --api-base, PF_API_BASE).
func Injected(value string) Source {
	return Source{Name: "injected", Lookup: func() string { return value }}
}

// Meta reads the pf:apiBase meta tag from the HTML page at path.
func Meta(path string) Source {
	return Source{Name: "meta", Lookup: func() string {
		f, err := os.Open(path)
		if err != nil {
			return ""
		}
		defer func() { _ = f.Close() }()
		content, _ := MetaContent(f)
		return content
	}}
}

// MetaContent scans an HTML document for <meta name="pf:apiBase"> and returns
// its content attribute. Scanning stops at the end of <head>.
func MetaContent(r io.Reader) (string, bool) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return "", false
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "meta" || !hasAttr {
				continue
			}
			var metaName, content string
			var hasContent bool
			for {
				key, val, more := z.TagAttr()
				switch string(key) {
				case "name":
					metaName = string(val)
				case "content":
					content, hasContent = string(val), true
				}
				if !more {
					break
				}
			}
			if metaName == MetaName && hasContent {
				return strings.TrimSpace(content), true
			}
		}
	}
}

// Env returns the first variable among names whose value is a usable origin.
func Env(names []string, lookup func(string) (string, bool)) Source {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return Source{Name: "env", Lookup: func() string {
		for _, n := range names {
			if v, ok := lookup(n); ok {
				if _, valid := Normalize(v); valid {
					return v
				}
			}
		}
		return ""
	}}
}

// QueryParams are the query-string keys accepted as an override.
var QueryParams = []string{"pf_api_base", "apiBase"}

// Query takes an override from a page's query string. It is never consulted
// on production hosts.
func Query(values url.Values) Source {
	return Source{Name: "query", DevOnly: true, Lookup: func() string {
		for _, k := range QueryParams {
			if v := strings.TrimSpace(values.Get(k)); v != "" {
				return v
			}
		}
		return ""
	}}
}

// Stored is the override persisted by an operator (`pf-studio api-base set`).
func Stored(ctx context.Context, s store.Store) Source {
	return Source{Name: "stored", Lookup: func() string {
		for _, k := range []string{store.KeyAPIBase, store.KeyAPIBaseLegacy} {
			if v := store.GetString(ctx, s, k); v != "" {
				return v
			}
		}
		return ""
	}}
}
