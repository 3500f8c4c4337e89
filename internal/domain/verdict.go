package domain

import (
	"fmt"
	"strings"
)

// Verdict is the classification of one reverse dependency
type Verdict string

const (
	VerdictBroken    Verdict = "broken"
	VerdictRegressed Verdict = "regressed"
	VerdictPass      Verdict = "pass"
	VerdictError     Verdict = "error"
)

// NeedsNext reports whether the work-in-progress build has to run. A failed
// baseline has nothing to regress from.
func NeedsNext(base *BuildOutcome) bool {
	return base != nil && base.Success
}

// Classify maps the baseline and work-in-progress outcomes to a verdict.
// next is ignored when the baseline failed and may be nil in that case.
func Classify(base, next *BuildOutcome) Verdict {
	if !NeedsNext(base) {
		return VerdictBroken
	}
	if next.Success {
		return VerdictPass
	}
	return VerdictRegressed
}

// TestResult is the outcome of one unit of work
type TestResult struct {
	RevDep  RevDep
	Verdict Verdict
	Base    *BuildOutcome // set for broken, regressed and pass
	Next    *BuildOutcome // set for regressed and pass
	Err     error         // set for error
}

// Broken builds a result for a baseline that failed to compile.
func Broken(rd RevDep, base *BuildOutcome) TestResult {
	return TestResult{RevDep: rd, Verdict: VerdictBroken, Base: base}
}

// Regressed builds a result for a baseline that compiled and a WIP build that did not.
func Regressed(rd RevDep, base, next *BuildOutcome) TestResult {
	return TestResult{RevDep: rd, Verdict: VerdictRegressed, Base: base, Next: next}
}

// Pass builds a result for two successful builds.
func Pass(rd RevDep, base, next *BuildOutcome) TestResult {
	return TestResult{RevDep: rd, Verdict: VerdictPass, Base: base, Next: next}
}

// Errored builds a result for a unit of work that could not produce outcomes.
func Errored(rd RevDep, err error) TestResult {
	return TestResult{RevDep: rd, Verdict: VerdictError, Err: err}
}

// Compared builds the result for a completed comparison.
func Compared(rd RevDep, base, next *BuildOutcome) TestResult {
	switch Classify(base, next) {
	case VerdictBroken:
		return Broken(rd, base)
	case VerdictRegressed:
		return Regressed(rd, base, next)
	default:
		return Pass(rd, base, next)
	}
}

// Detail renders the result for the final dump.
func (r TestResult) Detail() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", r.RevDep.Name, r.RevDep.Version, r.Verdict)
	switch r.Verdict {
	case VerdictError:
		if r.Err != nil {
			fmt.Fprintf(&b, "\n    %v", r.Err)
		}
	case VerdictBroken:
		writeOutcome(&b, "base", r.Base)
	case VerdictRegressed:
		writeOutcome(&b, "next", r.Next)
	}
	return b.String()
}

func writeOutcome(b *strings.Builder, label string, o *BuildOutcome) {
	if o == nil {
		return
	}
	stderr := strings.TrimSpace(o.Stderr)
	if stderr == "" {
		fmt.Fprintf(b, "\n    %s build exited %d", label, o.ExitCode)
		return
	}
	fmt.Fprintf(b, "\n    %s build exited %d:", label, o.ExitCode)
	for _, line := range strings.Split(stderr, "\n") {
		b.WriteString("\n      ")
		b.WriteString(line)
	}
}
