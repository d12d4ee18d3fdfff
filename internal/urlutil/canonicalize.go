// Package urlutil implements URL canonicalization, admissibility filtering,
// and robots.txt enforcement for the crawl frontier.
package urlutil

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Canonicalize normalizes a resolved, absolute URL into the form used as the
// dedup key throughout the frontier: lower-cased scheme/host, default ports
// stripped, fragment dropped, an empty path set to "/", a trailing slash
// removed from any longer path, and query parameters sorted when sortQuery
// is true.
func Canonicalize(raw string, sortQuery bool) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize: parse %q: %w", raw, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("canonicalize: %q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(stripDefaultPort(u.Scheme, u.Host))
	u.Fragment = ""

	if u.Path == "" {
		u.Path = "/"
	} else if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}

	if sortQuery && u.RawQuery != "" {
		u.RawQuery = sortedQuery(u.RawQuery)
	}

	return u.String(), nil
}

func stripDefaultPort(scheme, host string) string {
	switch scheme {
	case "http":
		return strings.TrimSuffix(host, ":80")
	case "https":
		return strings.TrimSuffix(host, ":443")
	default:
		return host
	}
}

func sortedQuery(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for j, v := range vs {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Resolve resolves href against base and returns the absolute URL string.
func Resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("resolve: parse href %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
