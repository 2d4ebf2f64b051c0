// Package version carries build metadata stamped in with ldflags:
//
//	go build -ldflags "-X github.com/soyeahso/ragrelay/internal/version.Version=1.0.0 \
//	  -X github.com/soyeahso/ragrelay/internal/version.Commit=$(git rev-parse HEAD)"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Resolved returns Version, falling back to the module version recorded
// by `go install` when no ldflags were given.
func Resolved() string {
	if Version != "dev" {
		return Version
	}
	if bi, ok := readBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return Version
}

// Build describes the running binary.
type Build struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Platform string `json:"platform"`
}

// Current returns the build metadata with the commit cut to 7 characters.
func Current() Build {
	commit := Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return Build{
		Version:  Resolved(),
		Commit:   commit,
		Date:     Date,
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Info is the one-line description printed by `ragrelay version`.
func Info() string {
	b := Current()
	return fmt.Sprintf("ragrelay %s (commit: %s, built: %s, %s)", b.Version, b.Commit, b.Date, b.Platform)
}

// UserAgent is sent on outbound calls to the RAGFlow and WeChat APIs.
func UserAgent() string {
	return "ragrelay/" + Resolved()
}
