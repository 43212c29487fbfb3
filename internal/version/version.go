package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Build attributes, set with -ldflags "-X github.com/hrygo/skinsense/internal/version.Version=0.4.0".
var (
	Version    = "0.0.0-dev"
	DevVersion = Version
	GitCommit  = "unknown"
	BuildTime  = "unknown"
)

// GetCurrentVersion returns DevVersion for dev and demo instances.
func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return DevVersion
	}
	return Version
}

// IsVersionGreaterOrEqualThan returns true if version is greater than or equal to target.
func IsVersionGreaterOrEqualThan(version, target string) bool {
	return semver.Compare(canonical(version), canonical(target)) > -1
}

// canonical prefixes "v" when missing; semver requires it.
func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func known(v string) bool {
	return v != "" && v != "unknown"
}

// String is the banner version: Version plus the first eight commit characters.
func String() string {
	if !known(GitCommit) {
		return Version
	}
	commit := GitCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return Version + "-" + commit
}

// StringFull lists every known build attribute as Key=value pairs.
func StringFull() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version=%s", Version)
	if known(GitCommit) {
		fmt.Fprintf(&b, " Commit=%s", GitCommit)
	}
	if known(BuildTime) {
		fmt.Fprintf(&b, " BuildTime=%s", BuildTime)
	}
	return b.String()
}
