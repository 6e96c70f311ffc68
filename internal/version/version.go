// Package version reports build information for the drgex commands
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at link time with -ldflags "-X drgex/internal/version.Version=..."
var (
	Version   = "0.3.0"
	Commit    = ""
	BuildDate = ""
)

// Info describes the running binary
type Info struct {
	App       string
	Version   string
	Commit    string
	Modified  bool // Built from a dirty tree
	BuildDate string
	GoVersion string
	Platform  string
}

// Get returns build information for app. When the commit was not set at
// link time it falls back to the VCS stamp embedded by the go tool.
func Get(app string) Info {
	info := Info{
		App:       app,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "" {
					info.BuildDate = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	return info
}

// ShortCommit returns the first seven characters of the commit hash
func (i Info) ShortCommit() string {
	if len(i.Commit) > 7 {
		return i.Commit[:7]
	}
	return i.Commit
}

func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s version %s", i.App, i.Version)
	if c := i.ShortCommit(); c != "" {
		fmt.Fprintf(&b, " (commit %s", c)
		if i.Modified {
			b.WriteString(", modified")
		}
		b.WriteString(")")
	}
	if i.BuildDate != "" {
		fmt.Fprintf(&b, "\nBuilt: %s", i.BuildDate)
	}
	fmt.Fprintf(&b, "\nGo: %s\nPlatform: %s", i.GoVersion, i.Platform)
	return b.String()
}
