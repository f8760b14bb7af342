package websearch

import (
	"net/url"
	"strings"
	"time"
)

// Domain extracts the host of a URL for citation display; empty when the
// URL cannot be parsed.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// dateLayouts are the publish-date formats providers are known to emit.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Jan 2, 2006",
	"2006.01.02.",
}

// ParseDate parses a provider publish date best-effort; unparseable input
// yields the zero time, which the recency filter treats as "unknown, keep".
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
