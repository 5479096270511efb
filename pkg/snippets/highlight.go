package snippets

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Default highlight markup.
const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
)

var (
	stopWords = map[string]struct{}{"and": {}, "or": {}, "not": {}, "the": {}}
	folder    = cases.Fold()
)

// Terms returns the query tokens that get highlighted: whitespace separated,
// longer than two characters and not a stop word (the boolean operators
// and/or/not plus the article "the", compared case-insensitively). Query
// order is preserved.
func Terms(query string) []string {
	var terms []string
	for _, tok := range strings.Fields(query) {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[folder.String(tok)]; stop {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// Highlight wraps every case-insensitive whole-word match of each query term
// in MarkOpen/MarkClose.
func Highlight(snippet, query string) string {
	return HighlightWith(snippet, query, MarkOpen, MarkClose)
}

// HighlightWith is Highlight with custom markup. Terms are applied one after
// another on the already marked-up text, so a later term can match inside
// markup inserted for an earlier one.
func HighlightWith(snippet, query, open, close string) string {
	out := snippet
	for _, term := range Terms(query) {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		out = re.ReplaceAllStringFunc(out, func(m string) string {
			return open + m + close
		})
	}
	return out
}
