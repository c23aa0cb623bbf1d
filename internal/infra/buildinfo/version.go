package buildinfo

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info contains build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

var (
	once   sync.Once
	cached Info
)

// Get returns the build information.
func Get() Info {
	once.Do(func() {
		cached = resolve(Version, Commit, BuildTime, debug.ReadBuildInfo)
	})
	return cached
}

func resolve(version, commit, buildTime string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	bi, ok := read()
	if !ok {
		return info
	}
	if bi.GoVersion != "" {
		info.GoVersion = bi.GoVersion
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String returns "version (commit) built at time".
func String() string {
	info := Get()
	commit := info.Commit
	if info.Modified {
		commit += "-dirty"
	}
	return info.Version + " (" + commit + ") built at " + info.BuildTime
}

// UserAgent returns "product/version" for outbound requests.
func UserAgent(product string) string {
	return product + "/" + Get().Version
}
