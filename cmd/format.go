package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/mithril/pkg/core"
	"github.com/rubiojr/mithril/pkg/realtime"
	"github.com/rubiojr/mithril/pkg/snippets"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	hostStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	sitelinkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			MarginLeft(4)

	markStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("220"))

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("232")).
			Background(lipgloss.Color("214")).
			Padding(0, 1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

var titleCase = cases.Title(language.English)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

// formatAge formats how long ago t was
func formatAge(t, now time.Time) string {
	diff := now.Sub(t)
	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	}
	return fmt.Sprintf("%.1f hours ago", diff.Hours())
}

// renderMarks swaps <mark> spans for the terminal highlight style.
func renderMarks(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, snippets.MarkOpen)
		if start < 0 {
			break
		}
		rest := s[start+len(snippets.MarkOpen):]
		end := strings.Index(rest, snippets.MarkClose)
		if end < 0 {
			break
		}
		b.WriteString(s[:start])
		b.WriteString(markStyle.Render(rest[:end]))
		s = rest[end+len(snippets.MarkClose):]
	}
	b.WriteString(s)
	return b.String()
}

// resultsHeader is the "N results in 0.042s" line with its badges.
func resultsHeader(rs *core.ResultSet, elapsed string, fromCache bool) string {
	header := fmt.Sprintf("%s results in %s", formatNumber(rs.Total), elapsed)
	if fromCache {
		header += " (cached)"
	}
	header = headerStyle.Render(header)
	switch {
	case rs.Fallback:
		header += " " + badgeStyle.Render(titleCase.String("fallback results"))
	case rs.DemoMode:
		header += " " + badgeStyle.Render(titleCase.String("demo mode"))
	}
	return header
}

// renderResults writes a results-ready event. improved holds snippets that
// arrived after the results, keyed by document id.
func renderResults(w io.Writer, ev realtime.Event, improved map[string]string) {
	if ev.Results == nil || len(ev.Results.Results) == 0 {
		fmt.Fprintln(w, noDataStyle.Render("No results found"))
		return
	}

	fmt.Fprintln(w, resultsHeader(ev.Results, ev.Elapsed, ev.FromCache))
	fmt.Fprintln(w)

	snippetFor := func(item core.ResultItem) string {
		if s, ok := improved[item.ID]; ok {
			return s
		}
		return item.Snippet
	}

	for _, g := range ev.Groups {
		fmt.Fprintln(w, hostStyle.Render(g.Host))
		fmt.Fprintln(w, titleStyle.Render(g.Main.Title))
		fmt.Fprintln(w, urlStyle.Render(g.Main.URL))
		if s := snippetFor(g.Main); s != "" {
			fmt.Fprintln(w, renderMarks(s))
		}
		for _, link := range g.Sitelinks {
			fmt.Fprintln(w, sitelinkStyle.Render("› "+link.Title))
		}
		fmt.Fprintln(w)
	}
}

// presenter turns the event stream of one session into terminal output.
// Results are held back until their snippet stream finishes so every
// result prints once with its best snippet.
type presenter struct {
	w        io.Writer
	pending  *realtime.Event
	improved map[string]string
}

func newPresenter(w io.Writer) *presenter {
	return &presenter{w: w}
}

// handle reports whether ev completed the current query.
func (p *presenter) handle(ev realtime.Event) bool {
	switch ev.Type {
	case realtime.TypeLoadingStarted:
		p.pending = nil
		p.improved = nil
		fmt.Fprintln(p.w, metaStyle.Render("Searching for "+ev.Query+"..."))
	case realtime.TypeMathResult:
		fmt.Fprintf(p.w, "%s = %s\n", ev.Query, headerStyle.Render(ev.Value))
		return true
	case realtime.TypeResultsReady:
		if ev.Results == nil || len(ev.Results.Results) == 0 {
			renderResults(p.w, ev, nil)
			return true
		}
		p.pending = &ev
		p.improved = make(map[string]string)
	case realtime.TypeSnippetReady:
		if p.improved != nil {
			p.improved[ev.DocID] = ev.Snippet
		}
	case realtime.TypeSnippetsDone:
		p.flush()
		return true
	case realtime.TypeError:
		fmt.Fprintln(p.w, errorStyle.Render("Error: "+ev.Message))
		return true
	}
	return false
}

// flush prints held results, if any.
func (p *presenter) flush() {
	if p.pending == nil {
		return
	}
	renderResults(p.w, *p.pending, p.improved)
	p.pending = nil
	p.improved = nil
}
