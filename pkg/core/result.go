// Package core holds the data model shared by the cache, the session
// controller and the presentation bridges: result sets as returned by the
// search API and the pure transformations applied to them before display
// (URL normalisation, de-duplication, title truncation and host grouping).
package core

import (
	"fmt"
	"strings"
	"time"
)

// ResultItem is one ranked document returned by the search endpoint.
type ResultItem struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ResultSet is the decoded body of GET /api/search.
//
// ElapsedMs is what the user sees. The client overwrites the server reported
// time_ms with its own wall clock measurement once a response is processed.
type ResultSet struct {
	Total     int          `json:"total"`
	ElapsedMs float64      `json:"time_ms"`
	DemoMode  bool         `json:"demo_mode,omitempty"`
	Fallback  bool         `json:"fallback,omitempty"`
	Results   []ResultItem `json:"results"`
}

// Clone returns a deep copy so cached sets are never shared mutably.
func (rs *ResultSet) Clone() *ResultSet {
	if rs == nil {
		return nil
	}
	out := *rs
	if rs.Results != nil {
		out.Results = make([]ResultItem, len(rs.Results))
		copy(out.Results, rs.Results)
	}
	return &out
}

// IDs returns the document ids of the first n results (all of them when n <= 0).
func (rs *ResultSet) IDs(n int) []string {
	if rs == nil {
		return nil
	}
	items := rs.Results
	if n > 0 && n < len(items) {
		items = items[:n]
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// Elapsed returns ElapsedMs as a duration.
func (rs *ResultSet) Elapsed() time.Duration {
	return time.Duration(rs.ElapsedMs * float64(time.Millisecond))
}

// FormatElapsed renders a duration with three-decimal second precision, e.g. "0.042s".
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// NormalizeQuery trims surrounding whitespace. The result is the cache key and
// is compared case-sensitively.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(q)
}
