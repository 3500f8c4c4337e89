// Package orchestrator runs one regression unit per reverse dependency on a
// bounded worker pool and collects the results in discovery order.
package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hochfrequenz/revdep-regress/internal/discovery"
	"github.com/hochfrequenz/revdep-regress/internal/domain"
	"github.com/hochfrequenz/revdep-regress/internal/status"
	"github.com/hochfrequenz/revdep-regress/internal/workpool"
)

// Resolver pins a crate name to the version under test
type Resolver interface {
	Resolve(ctx context.Context, name string) (domain.RevDep, error)
}

// Builder compiles one reverse dependency under an override
type Builder interface {
	Build(ctx context.Context, rd domain.RevDep, override domain.Override) (*domain.BuildOutcome, error)
}

// RunConfig is the immutable configuration of one run
type RunConfig struct {
	CrateName string
	Base      domain.Override
	Next      domain.Override
	Workers   int // runtime.NumCPU() when <= 0
	Debug     bool
}

// Deps are the collaborators a run talks to
type Deps struct {
	Lister   discovery.Lister
	Resolver Resolver
	Builder  Builder
	Sink     *status.Sink
}

// Orchestrator dispatches units of work and aggregates their results
type Orchestrator struct {
	config RunConfig
	deps   Deps
}

// New creates an orchestrator
func New(config RunConfig, deps Deps) *Orchestrator {
	return &Orchestrator{config: config, deps: deps}
}

// Run tests every name in revDeps and returns one result per name, in the
// order given. A progress line is printed as each unit completes. Run never
// fails; per-package failures become error verdicts.
func (o *Orchestrator) Run(ctx context.Context, revDeps []string) []domain.TestResult {
	pool := workpool.NewPool(o.config.Workers)
	if o.config.Debug {
		log.Printf("[orchestrator] testing %d reverse deps with %d workers", len(revDeps), pool.MaxJobs())
		pool.SetOnSlotsChanged(func(available int) {
			log.Printf("[orchestrator] %d of %d workers idle", available, pool.MaxJobs())
		})
	}

	progress := o.deps.Sink.NewProgress(len(revDeps))

	futures := make([]*workpool.Future[domain.TestResult], 0, len(revDeps))
	for _, name := range revDeps {
		futures = append(futures, workpool.Submit(pool, name, func() domain.TestResult {
			result := o.test(ctx, name)
			progress.Done(result)
			return result
		}))
	}

	results := make([]domain.TestResult, 0, len(futures))
	for _, f := range futures {
		result, err := f.Join()
		if err != nil {
			result = domain.Errored(domain.RevDep{Name: f.Name(), Version: domain.UnresolvedVersion}, err)
			progress.Done(result)
		}
		results = append(results, result)
	}
	pool.Wait()

	return results
}

// test is one unit of work: resolve, build the baseline, build the
// work-in-progress tree when the baseline compiled, classify.
func (o *Orchestrator) test(ctx context.Context, name string) domain.TestResult {
	rd, err := o.deps.Resolver.Resolve(ctx, name)
	if err != nil {
		if o.config.Debug {
			log.Printf("[orchestrator] resolving %s: %v", name, err)
		}
		return domain.Errored(domain.RevDep{Name: name, Version: domain.UnresolvedVersion}, err)
	}

	base, err := o.deps.Builder.Build(ctx, rd, o.config.Base)
	if err != nil {
		return domain.Errored(rd, err)
	}
	if !domain.NeedsNext(base) {
		return domain.Broken(rd, base)
	}

	next, err := o.deps.Builder.Build(ctx, rd, o.config.Next)
	if err != nil {
		return domain.Errored(rd, err)
	}
	return domain.Compared(rd, base, next)
}

// Report is a finished run
type Report struct {
	ID         string
	CrateName  string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []domain.TestResult
	Summary    domain.Summary
}

// Duration is the wall-clock time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Execute discovers the reverse dependencies of config.CrateName and tests
// them. Only a discovery failure is returned as an error.
func Execute(ctx context.Context, config RunConfig, deps Deps) (*Report, error) {
	report := &Report{
		ID:        uuid.NewString(),
		CrateName: config.CrateName,
		StartedAt: time.Now(),
	}

	revDeps, err := discovery.Discover(ctx, deps.Lister, deps.Sink, config.CrateName)
	if err != nil {
		return nil, err
	}

	report.Results = New(config, deps).Run(ctx, revDeps)
	report.FinishedAt = time.Now()
	report.Summary = domain.Summarize(report.Results)
	return report, nil
}
