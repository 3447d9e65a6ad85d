// Package version derives build identity from the binary's build metadata.
package version

import "runtime/debug"

// AppName is used in version strings and log fields.
const AppName = "tonebridge"

// commitOverride can be injected with -ldflags for builds without VCS
// metadata (container image builds from a source tarball).
var commitOverride string

// Commit is the short VCS revision, or "dev" outside a real build.
var Commit = resolveCommit()

func resolveCommit() string {
	commit := commitOverride
	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
					break
				}
			}
		}
	}
	if commit == "" {
		return "dev"
	}
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return commit
}

// Full returns "tonebridge/<commit>" for log banners and user agents.
func Full() string {
	return AppName + "/" + Commit
}
