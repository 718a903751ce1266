package client

import (
	"regexp"
	"strings"

	"pf-studio/internal/apibase"
)

// LegacyAliases maps retired request paths to their current equivalents.
// Lookup is exact on the path component only.
var LegacyAliases = map[string]string{
	"/login":           "/v1/login",
	"/register":        "/v1/register",
	"/generate-script": "/v1/generate-script",
	"/projects":        "/v1/projects",
	"/plans":           "/v1/plans",
}

var absoluteURL = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)

// AliasPath replaces an aliased path with its current equivalent, keeping any
// query string and fragment. Paths that are already current come back as-is.
func AliasPath(target string) string {
	cut := strings.IndexAny(target, "?#")
	path, suffix := target, ""
	if cut >= 0 {
		path, suffix = target[:cut], target[cut:]
	}
	if mapped, ok := LegacyAliases[path]; ok {
		return mapped + suffix
	}
	return target
}

// BuildURL turns target into the URL a request is sent to.
//
// Relative targets get a leading slash, pass through the alias table and are
// joined to base. Absolute targets on the retired serverless domain are moved
// onto base before the same treatment. Absolute targets already on base are
// aliased; any other absolute URL is returned unchanged.
func BuildURL(base, target string) string {
	target = strings.TrimSpace(target)
	base = strings.TrimRight(base, "/")

	if absoluteURL.MatchString(target) {
		if rewritten, ok := apibase.RewriteDeprecated(target, base); ok {
			target = rewritten
		}
		if base == "" || !hasOriginPrefix(target, base) {
			return target
		}
		target = target[len(base):]
	}

	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return base + AliasPath(target)
}

// hasOriginPrefix reports whether target starts with base at a path boundary.
func hasOriginPrefix(target, base string) bool {
	if !strings.HasPrefix(strings.ToLower(target), strings.ToLower(base)) {
		return false
	}
	rest := target[len(base):]
	return rest == "" || strings.ContainsRune("/?#", rune(rest[0]))
}
