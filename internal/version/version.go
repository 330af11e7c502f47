// Package version reports build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

var readBuildInfo = debug.ReadBuildInfo

// String is the one-line banner printed by `speechcraft version`.
func String() string {
	commit, date := Commit, Date
	if commit == "" || date == "" {
		vcsCommit, vcsDate := vcsStamp()
		if commit == "" {
			commit = vcsCommit
		}
		if date == "" {
			date = vcsDate
		}
	}
	return fmt.Sprintf("speechcraft %s (commit=%s, date=%s, go=%s)", Version, orUnknown(commit), orUnknown(date), runtime.Version())
}

// UserAgent is sent on outbound HTTP requests.
func UserAgent() string {
	return "speechcraft/" + Version
}

func vcsStamp() (commit, date string) {
	info, ok := readBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case "vcs.time":
			date = s.Value
		}
	}
	return commit, date
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
