// Package apibase resolves the backend origin every API request is sent to and
// normalizes outgoing request URLs against it.
package apibase

import (
	"net/url"
	"regexp"
	"strings"
)

// schemePattern is the acceptance test for candidate origins.
var schemePattern = regexp.MustCompile(`(?i)^https?://[^/\s]`)

// deprecatedDomain is the retired serverless-function host. Requests and
// candidates pointing at it are forced onto the current service.
const deprecatedDomain = "cloudfunctions.net"

// functionName is the path segment every endpoint on the retired host sat under.
const functionName = "pfsystem-api"

// Normalize trims whitespace from candidate, checks it is an absolute http(s)
// URL that does not reference the retired serverless domain, and strips
// trailing slashes. It reports false for anything else.
func Normalize(candidate string) (string, bool) {
	v := strings.TrimSpace(candidate)
	if !schemePattern.MatchString(v) {
		return "", false
	}
	if IsDeprecated(v) {
		return "", false
	}
	return strings.TrimRight(v, "/"), true
}

// IsDeprecated reports whether raw is an absolute URL on the retired
// serverless-function domain.
func IsDeprecated(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == deprecatedDomain || strings.HasSuffix(host, "."+deprecatedDomain)
}

// RewriteDeprecated maps a URL on the retired serverless domain onto origin.
// A leading pfsystem-api segment is dropped; the remaining path, query and
// fragment are kept. URLs on any other host are returned unchanged with false.
func RewriteDeprecated(raw, origin string) (string, bool) {
	if !IsDeprecated(raw) {
		return raw, false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw, false
	}

	tail := strings.TrimPrefix(u.EscapedPath(), "/")
	if head, rest, _ := strings.Cut(tail, "/"); strings.EqualFold(head, functionName) {
		tail = rest
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(origin, "/"))
	b.WriteString("/")
	b.WriteString(tail)
	if u.RawQuery != "" || u.ForceQuery {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteString("#")
		b.WriteString(u.EscapedFragment())
	}
	return b.String(), true
}
