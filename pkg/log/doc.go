// Package log is a small wrapper around the standard library logger used by
// every mithril component.
//
// Each component asks for a named logger with ForService and logs through
// Infof, Warnf, Errorf and Debugf:
//
//	l := log.ForService("cache")
//	l.Warnf("snapshot write failed: %v", err)
//	l.Debugf("evicted %q", key)
//
// Debug output is off by default. It can be turned on globally with
// SetGlobalDebug (the --debug flag) or per component with EnableDebugFor and
// EnableDebugFromList (the MITHRIL_DEBUG environment variable, for example
// MITHRIL_DEBUG=session,kv).
//
// The package name collides with the standard library "log"; alias one of
// them when both are needed.
//
// Tests redirect output with SetOutput(&bytes.Buffer{}).
package log
