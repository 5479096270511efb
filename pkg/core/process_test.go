package core

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips www and trailing slash", "http://www.Example.com/a/", "http://example.com/a"},
		{"plain", "http://example.com/a", "http://example.com/a"},
		{"root path", "https://example.com/", "https://example.com"},
		{"keeps query and fragment", "https://www.example.com/p/?x=1#top", "https://example.com/p?x=1#top"},
		{"uppercase scheme", "HTTPS://Example.com/Path", "https://example.com/Path"},
		{"unparseable stays raw", "not a url", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Fatalf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	items := []ResultItem{
		{ID: "1", URL: "http://www.Example.com/a/", Title: "first"},
		{ID: "2", URL: "http://example.com/a", Title: "second"},
		{ID: "3", URL: "http://example.com/b", Title: "third"},
		{ID: "4", URL: "https://example.com/a", Title: "other scheme"},
	}

	got := Dedupe(items)
	var ids []string
	for _, item := range got {
		ids = append(ids, item.ID)
	}
	if want := []string{"1", "3", "4"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("Dedupe ids = %v, want %v", ids, want)
	}
}

func TestTruncateTitle(t *testing.T) {
	long := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen"
	want := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen" + Ellipsis
	if got := TruncateTitle(long, DefaultTitleWords); got != want {
		t.Fatalf("TruncateTitle(16 words) = %q, want %q", got, want)
	}

	exact := strings.Join(strings.Fields(long)[:15], " ")
	if got := TruncateTitle(exact, DefaultTitleWords); got != exact {
		t.Fatalf("15 word title changed: %q", got)
	}

	short := "Go  programming"
	if got := TruncateTitle(short, 0); got != short {
		t.Fatalf("short title changed: %q", got)
	}
}

func hostItems(hosts ...string) []ResultItem {
	items := make([]ResultItem, len(hosts))
	for i, h := range hosts {
		items[i] = ResultItem{ID: string(rune('a' + i)), URL: "https://" + h + "/" + string(rune('a'+i))}
	}
	return items
}

func TestGroupLeadingHost(t *testing.T) {
	groups := Group(hostItems("a.com", "a.com", "a.com", "b.com", "c.com"))
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d: %+v", len(groups), groups)
	}
	if groups[0].Host != "a.com" || len(groups[0].Items()) != 3 {
		t.Fatalf("first group should hold three a.com results, got %+v", groups[0])
	}
	if groups[1].Host != "b.com" || len(groups[1].Sitelinks) != 0 {
		t.Fatalf("second group should be singleton b.com, got %+v", groups[1])
	}
	if groups[2].Host != "c.com" || len(groups[2].Sitelinks) != 0 {
		t.Fatalf("third group should be singleton c.com, got %+v", groups[2])
	}
}

func TestGroupScanLimit(t *testing.T) {
	groups := Group(hostItems("a.com", "a.com", "a.com", "a.com", "a.com", "a.com", "a.com"))
	if len(groups[0].Items()) != GroupScanLimit {
		t.Fatalf("first group should stop at %d results, got %d", GroupScanLimit, len(groups[0].Items()))
	}
	if len(groups) != 3 {
		t.Fatalf("remaining a.com results should be singletons, got %d groups", len(groups))
	}
}

func TestGroupStopsAtFirstDifferentHost(t *testing.T) {
	groups := Group(hostItems("a.com", "b.com", "a.com"))
	if len(groups) != 3 || len(groups[0].Sitelinks) != 0 {
		t.Fatalf("expected three singleton groups, got %+v", groups)
	}
	if Group(nil) != nil {
		t.Fatalf("expected nil groups for empty input")
	}
}

func TestGroupKeepsWWWDistinct(t *testing.T) {
	groups := Group(hostItems("www.a.com", "a.com"))
	if len(groups) != 2 {
		t.Fatalf("www.a.com and a.com are different hosts for grouping, got %+v", groups)
	}
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	in := &ResultSet{
		Total: 3,
		Results: []ResultItem{
			{ID: "1", URL: "http://a.com/x/", Title: "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen"},
			{ID: "2", URL: "http://www.a.com/x", Title: "dup"},
		},
	}
	out := Process(in, DefaultTitleWords)
	if len(out.Results) != 1 {
		t.Fatalf("expected duplicate removed, got %d results", len(out.Results))
	}
	if !strings.HasSuffix(out.Results[0].Title, Ellipsis) {
		t.Fatalf("expected truncated title, got %q", out.Results[0].Title)
	}
	if len(in.Results) != 2 || strings.HasSuffix(in.Results[0].Title, Ellipsis) {
		t.Fatalf("input result set was modified: %+v", in)
	}
}

func TestIDsAndElapsed(t *testing.T) {
	rs := &ResultSet{ElapsedMs: 42, Results: hostItems("a.com", "b.com", "c.com")}
	if got := rs.IDs(2); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("IDs(2) = %v", got)
	}
	if got := rs.IDs(0); len(got) != 3 {
		t.Fatalf("IDs(0) should return all ids, got %v", got)
	}
	if got := FormatElapsed(rs.Elapsed()); got != "0.042s" {
		t.Fatalf("FormatElapsed = %q, want 0.042s", got)
	}
	if got := FormatElapsed(1500 * time.Millisecond); got != "1.500s" {
		t.Fatalf("FormatElapsed = %q, want 1.500s", got)
	}
}
