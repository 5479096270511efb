package version

import "runtime/debug"

// Version represents the current version of mithril
const Version = "0.4.0"

// Commit is set at build time with -ldflags "-X .../version.Commit=<sha>".
// When empty the VCS revision recorded by the Go toolchain is used.
var Commit string

// BuildVersion returns the version string for display
func BuildVersion() string {
	if rev := revision(); rev != "" {
		return "mithril version " + Version + " (" + rev + ")"
	}
	return "mithril version " + Version
}

// APIVersion returns just the version number for API responses
func APIVersion() string {
	return Version
}

func revision() string {
	if Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}
