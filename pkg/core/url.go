package core

import (
	"net/url"
	"strings"
)

// NormalizeURL returns the equality key used for de-duplication:
// scheme://host/path?query#fragment with the host lower-cased and stripped of
// a leading "www." and the path stripped of its trailing slash. The key is
// never displayed. Unparseable URLs are their own key.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if u.RawQuery != "" || u.ForceQuery {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteString("#")
		b.WriteString(u.EscapedFragment())
	}
	return b.String()
}

// Hostname returns the lower-cased host of raw without port, or "" when raw
// cannot be parsed. Unlike NormalizeURL it keeps a leading "www.".
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
