// Package status writes user-facing progress lines. All writers share one
// Sink so that concurrent workers never interleave partial lines.
package status

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/hochfrequenz/revdep-regress/internal/domain"
)

// Header prefixes every status line
const Header = "revdep-regress: "

// Sink is the shared console output. The zero value is not usable; use NewSink.
type Sink struct {
	mu       sync.Mutex
	w        io.Writer
	verdicts map[domain.Verdict]lipgloss.Style
}

// NewSink creates a sink writing to w. Colors are used only when w is a
// terminal that supports them.
func NewSink(w io.Writer) *Sink {
	r := lipgloss.NewRenderer(w)
	return &Sink{
		w:        w,
		verdicts: map[domain.Verdict]lipgloss.Style{
			domain.VerdictBroken:    r.NewStyle().Foreground(lipgloss.Color("11")),
			domain.VerdictRegressed: r.NewStyle().Foreground(lipgloss.Color("9")),
			domain.VerdictPass:      r.NewStyle().Foreground(lipgloss.Color("10")),
			domain.VerdictError:     r.NewStyle().Foreground(lipgloss.Color("13")),
		},
	}
}

// Locked runs fn while holding the output lock. Everything fn writes appears
// as one uninterrupted block. The lock is released even if fn panics.
func (s *Sink) Locked(fn func(w io.Writer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.w)
}

// Status writes one header-prefixed line.
func (s *Sink) Status(format string, args ...any) {
	s.Locked(func(w io.Writer) {
		fmt.Fprintf(w, "%s%s\n", Header, fmt.Sprintf(format, args...))
	})
}

// Verdict renders a verdict word in its color.
func (s *Sink) Verdict(v domain.Verdict) string {
	style, ok := s.verdicts[v]
	if !ok {
		return string(v)
	}
	return style.Render(string(v))
}

// Progress numbers completed results. Its counter is guarded by the sink's
// lock, so line numbers always appear in increasing order.
type Progress struct {
	sink  *Sink
	total int
	done  int
}

// NewProgress starts counting completions out of total.
func (s *Sink) NewProgress(total int) *Progress {
	return &Progress{sink: s, total: total}
}

// Done records one completed result, prints its line and returns its
// 1-based completion number.
func (p *Progress) Done(r domain.TestResult) int {
	var n int
	p.sink.Locked(func(w io.Writer) {
		p.done++
		n = p.done
		fmt.Fprintf(w, "%sresult %d of %d, %s %s: %s\n",
			Header, n, p.total, r.RevDep.Name, r.RevDep.Version, p.sink.Verdict(r.Verdict))
	})
	return n
}

// Summary writes the run-wide summary line.
func (s *Sink) Summary(sum domain.Summary) {
	s.Locked(func(w io.Writer) {
		fmt.Fprintf(w, "%s%d results: %s %d, %s %d, %s %d, %s %d\n", Header, sum.Total,
			s.Verdict(domain.VerdictPass), sum.Pass,
			s.Verdict(domain.VerdictRegressed), sum.Regressed,
			s.Verdict(domain.VerdictBroken), sum.Broken,
			s.Verdict(domain.VerdictError), sum.Errored)
	})
}

// Dump writes every result, in order, with its details.
func (s *Sink) Dump(results []domain.TestResult) {
	s.Locked(func(w io.Writer) {
		fmt.Fprintln(w, "results:")
		for i, r := range results {
			fmt.Fprintf(w, "  %d. %s\n", i+1, r.Detail())
		}
	})
}
