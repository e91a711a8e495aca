// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Build is the resolved build information.
type Build struct {
	Version   string
	Commit    string
	Dirty     bool
	BuildTime string
}

var (
	resolveOnce sync.Once
	resolved    Build
)

// Current returns the build information, preferring linker-injected
// values and filling the rest from the binary's build info.
func Current() Build {
	resolveOnce.Do(func() {
		info, _ := debug.ReadBuildInfo()
		resolved = resolve(info)
	})
	return resolved
}

func resolve(info *debug.BuildInfo) Build {
	build := Build{
		Version:   Version,
		Commit:    GitCommit,
		Dirty:     GitDirty == "true",
		BuildTime: BuildTime,
	}
	if info == nil {
		return build
	}
	if build.Version == "0.1.0-dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		build.Version = info.Main.Version
	}
	injected := GitCommit != "unknown"
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if !injected {
				build.Commit = setting.Value
				if len(build.Commit) > 12 {
					build.Commit = build.Commit[:12]
				}
			}
		case "vcs.modified":
			if !injected {
				build.Dirty = setting.Value == "true"
			}
		case "vcs.time":
			if build.BuildTime == "unknown" {
				build.BuildTime = setting.Value
			}
		}
	}
	return build
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return Current().String()
}

func (b Build) String() string {
	dirty := ""
	if b.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", b.Version, b.Commit, dirty, b.BuildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Current().Version
}
