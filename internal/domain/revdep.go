package domain

import (
	"fmt"
	"time"
)

// UnresolvedVersion is recorded for a reverse dependency whose version could
// not be resolved.
const UnresolvedVersion = "0.0.0"

// RevDep is a downstream crate pinned to a concrete version
type RevDep struct {
	Name    string
	Version string
}

func (r RevDep) String() string {
	return fmt.Sprintf("%s %s", r.Name, r.Version)
}

// OverrideKind selects how a downstream build locates the library under test
type OverrideKind int

const (
	// OverrideDefault builds against whatever the downstream manifest requests.
	OverrideDefault OverrideKind = iota
	// OverrideSource builds against a local source directory.
	OverrideSource
)

// Override is the dependency override configuration for one build pass
type Override struct {
	Kind OverrideKind
	Path string // library source directory, only for OverrideSource
}

// DefaultOverride returns the baseline configuration.
func DefaultOverride() Override {
	return Override{Kind: OverrideDefault}
}

// SourceOverride returns the work-in-progress configuration for dir.
func SourceOverride(dir string) Override {
	return Override{Kind: OverrideSource, Path: dir}
}

func (o Override) String() string {
	if o.Kind == OverrideSource {
		return "source:" + o.Path
	}
	return "default"
}

// BuildOutcome is the captured result of one build tool invocation
type BuildOutcome struct {
	Stdout   string
	Stderr   string
	Success  bool
	ExitCode int
	Duration time.Duration
}

// Failed reports whether the build did not succeed.
func (b *BuildOutcome) Failed() bool {
	return !b.Success
}
