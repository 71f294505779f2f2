// Package version reports the mt build version.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is a var so release builds can set it:
//
//	go build -ldflags "-X github.com/vanderheijden86/modeltree/pkg/version.Version=v0.2.0"
var Version = "v0.1.0-dev"

// String returns the version, plus the VCS revision when the binary was
// built from a checkout.
func String() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return format(Version, rev, dirty)
}

func format(version, rev string, dirty bool) string {
	if rev == "" {
		return version
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return fmt.Sprintf("%s (%s)", version, rev)
}
