package version

import (
	"strings"
	"testing"
)

func TestBuildVersion(t *testing.T) {
	old := Commit
	defer func() { Commit = old }()

	Commit = "abc1234"
	if got := BuildVersion(); got != "mithril version "+Version+" (abc1234)" {
		t.Fatalf("unexpected version string %q", got)
	}

	Commit = ""
	if got := BuildVersion(); !strings.HasPrefix(got, "mithril version "+Version) {
		t.Fatalf("unexpected version string %q", got)
	}
}
