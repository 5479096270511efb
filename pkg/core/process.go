package core

import "strings"

const (
	// DefaultTitleWords is the number of words kept by TruncateTitle.
	DefaultTitleWords = 15
	// GroupScanLimit bounds how many leading results may join the first group.
	GroupScanLimit = 5
	// Ellipsis is appended to truncated titles.
	Ellipsis = "..."
)

// ResultGroup is a main result plus the sitelinks that share its hostname.
// Groups only exist while rendering.
type ResultGroup struct {
	Host      string       `json:"host"`
	Main      ResultItem   `json:"main"`
	Sitelinks []ResultItem `json:"sitelinks,omitempty"`
}

// Items returns the main result followed by its sitelinks.
func (g ResultGroup) Items() []ResultItem {
	return append([]ResultItem{g.Main}, g.Sitelinks...)
}

// Dedupe keeps the first result for every NormalizeURL key and drops later
// duplicates entirely. Order is preserved.
func Dedupe(items []ResultItem) []ResultItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]ResultItem, 0, len(items))
	for _, item := range items {
		key := NormalizeURL(item.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// TruncateTitle keeps the first maxWords whitespace separated words and
// appends Ellipsis when anything was cut. Shorter titles are returned as is.
func TruncateTitle(title string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultTitleWords
	}
	words := strings.Fields(title)
	if len(words) <= maxWords {
		return title
	}
	return strings.Join(words[:maxWords], " ") + Ellipsis
}

// Group builds the render groups: results at the head of the list that share
// the first result's hostname (looking at no more than GroupScanLimit results)
// form one group, every result after that is a group of its own.
func Group(items []ResultItem) []ResultGroup {
	if len(items) == 0 {
		return nil
	}

	host := Hostname(items[0].URL)
	first := ResultGroup{Host: host, Main: items[0]}
	next := 1
	for next < len(items) && next < GroupScanLimit {
		if Hostname(items[next].URL) != host {
			break
		}
		first.Sitelinks = append(first.Sitelinks, items[next])
		next++
	}

	groups := []ResultGroup{first}
	for _, item := range items[next:] {
		groups = append(groups, ResultGroup{Host: Hostname(item.URL), Main: item})
	}
	return groups
}

// Process applies the display pipeline to a fresh search response: URL
// de-duplication followed by title truncation. The input is not modified.
func Process(rs *ResultSet, titleWords int) *ResultSet {
	out := rs.Clone()
	out.Results = Dedupe(out.Results)
	for i := range out.Results {
		out.Results[i].Title = TruncateTitle(out.Results[i].Title, titleWords)
	}
	return out
}
