package log

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, name string) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	return ForService(name), buf
}

func TestPrefixInfo(t *testing.T) {
	SetGlobalDebug(false)

	const name = "prefix_component_test"
	l, buf := newTestLogger(t, name)

	l.Infof("snapshot restored: %d entries", 3)
	out := buf.String()

	if !strings.Contains(out, "["+name+">]") {
		t.Fatalf("expected prefix [%s>] in output, got: %q", name, out)
	}
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "snapshot restored: 3 entries") {
		t.Fatalf("expected level and message in output, got: %q", out)
	}
}

func TestDebugPerComponent(t *testing.T) {
	SetGlobalDebug(false)

	const name = "debug_component_specific"
	DisableDebugFor(name)
	l, buf := newTestLogger(t, name)

	l.Debugf("should not appear")
	if strings.Contains(buf.String(), "should not appear") {
		t.Fatalf("debug message appeared while debug disabled")
	}

	EnableDebugFor(name)
	defer DisableDebugFor(name)
	l.Debugf("visible now")
	if !strings.Contains(buf.String(), "visible now") {
		t.Fatalf("expected debug message after enabling; got: %q", buf.String())
	}
}

func TestDebugGlobal(t *testing.T) {
	SetGlobalDebug(false)

	const name = "debug_component_global"
	DisableDebugFor(name)
	l, buf := newTestLogger(t, name)

	l.Debugf("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug message appeared while global debug disabled")
	}

	SetGlobalDebug(true)
	defer SetGlobalDebug(false)

	l.Debugf("global visible")
	if !strings.Contains(buf.String(), "global visible") {
		t.Fatalf("expected debug message after enabling global debug; got: %q", buf.String())
	}
}

func TestEnableDebugFromList(t *testing.T) {
	SetGlobalDebug(false)
	defer SetGlobalDebug(false)
	defer DisableDebugFor("list_a")
	defer DisableDebugFor("list_b")

	EnableDebugFromList(" list_a, ,list_b ")
	if !DebugEnabledFor("list_a") || !DebugEnabledFor("list_b") {
		t.Fatalf("expected list_a and list_b debug enabled")
	}
	if DebugEnabledFor("list_c") {
		t.Fatalf("list_c should not be enabled")
	}

	EnableDebugFromList("all")
	if !GlobalDebug() {
		t.Fatalf("expected global debug after \"all\"")
	}
}

func TestWarnIncludesPrefix(t *testing.T) {
	SetGlobalDebug(false)

	const name = "warn_component_test"
	l, buf := newTestLogger(t, name)

	l.Warnf("quota exceeded")
	out := buf.String()

	if !strings.Contains(out, "warnings active for this logger") {
		t.Fatalf("expected one-time warn marker, got: %q", out)
	}
	if !strings.Contains(out, "["+name+">]") || !strings.Contains(out, "quota exceeded") {
		t.Fatalf("expected prefix and message in warn output, got: %q", out)
	}
}
