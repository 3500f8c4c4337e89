package domain

import "fmt"

// Summary counts verdicts across a run
type Summary struct {
	Total     int
	Pass      int
	Regressed int
	Broken    int
	Errored   int
}

// Summarize counts the verdicts in results.
func Summarize(results []TestResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Verdict {
		case VerdictPass:
			s.Pass++
		case VerdictRegressed:
			s.Regressed++
		case VerdictBroken:
			s.Broken++
		case VerdictError:
			s.Errored++
		}
	}
	return s
}

// Clean reports whether nothing regressed.
func (s Summary) Clean() bool {
	return s.Regressed == 0
}

func (s Summary) String() string {
	return fmt.Sprintf("%d results: %d pass, %d regressed, %d broken, %d error",
		s.Total, s.Pass, s.Regressed, s.Broken, s.Errored)
}
