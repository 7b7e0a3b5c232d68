// Package version reports build information for the openapi2mcp binary.
package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

const toolName = "openapi2mcp"

// Set with -ldflags "-X github.com/mark3labs/openapi2mcp/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the resolved build information.
type Info struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the ldflags values, filled in from the module build info
// where they were left at their defaults.
func Get() Info {
	return resolve(Version, Commit, BuildTime, debug.ReadBuildInfo)
}

func resolve(version, commit, built string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{
		Tool:      toolName,
		Version:   version,
		Commit:    commit,
		BuildTime: built,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := read()
	if !ok || bi == nil {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && len(s.Value) >= 7 {
				info.Commit = s.Value[:7]
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

// String is the one-line form, e.g. "openapi2mcp version v1.2.0".
func (i Info) String() string {
	return fmt.Sprintf("%s version %s", i.Tool, i.Version)
}

// Fprint writes the multi-line form to w.
func (i Info) Fprint(w io.Writer) {
	fmt.Fprintln(w, i.String())
	fmt.Fprintf(w, "  commit:    %s\n", i.Commit)
	fmt.Fprintf(w, "  built:     %s\n", i.BuildTime)
	fmt.Fprintf(w, "  go:        %s\n", i.GoVersion)
	fmt.Fprintf(w, "  platform:  %s\n", i.Platform)
}
