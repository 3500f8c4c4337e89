// Package workpool runs units of work on a bounded number of goroutines and
// hands each result back through its own future.
package workpool

import (
	"log"
	"runtime"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/revdep-regress/internal/failure"
)

// Pool runs at most maxJobs units of work at a time
type Pool struct {
	maxJobs        int
	available      int
	mu             sync.Mutex
	onSlotsChanged func(available int) // Callback when slots change
	group          errgroup.Group
}

// NewPool creates a pool with the given capacity. A capacity <= 0 means one
// slot per CPU.
func NewPool(maxJobs int) *Pool {
	if maxJobs <= 0 {
		maxJobs = runtime.NumCPU()
	}
	p := &Pool{
		maxJobs:   maxJobs,
		available: maxJobs,
	}
	p.group.SetLimit(maxJobs)
	return p
}

// SetOnSlotsChanged sets a callback to be invoked when slot availability changes
func (p *Pool) SetOnSlotsChanged(callback func(available int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSlotsChanged = callback
}

// Available returns the number of free slots.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// MaxJobs returns the pool capacity.
func (p *Pool) MaxJobs() int {
	return p.maxJobs
}

// Wait blocks until every submitted unit has finished.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}

func (p *Pool) acquire() {
	p.adjust(-1)
}

func (p *Pool) release() {
	p.adjust(+1)
}

func (p *Pool) adjust(delta int) {
	p.mu.Lock()
	p.available += delta
	callback := p.onSlotsChanged
	available := p.available
	p.mu.Unlock()

	// Notify outside of lock to avoid deadlock
	if callback != nil {
		callback(available)
	}
}

// Future is the pending result of one submitted unit of work
type Future[T any] struct {
	name string
	ch   chan result[T]
}

type result[T any] struct {
	value    T
	panicked any
}

// Submit schedules fn on p and returns its future. Submit blocks while every
// slot is busy. A panic in fn is recovered and reported by Join; it never
// takes down other units.
func Submit[T any](p *Pool, name string, fn func() T) *Future[T] {
	f := &Future[T]{name: name, ch: make(chan result[T], 1)}

	p.group.Go(func() error {
		defer close(f.ch)
		p.acquire()
		defer p.release()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[workpool] unit %s panicked: %v\n%s", name, r, debug.Stack())
				f.ch <- result[T]{panicked: r}
			}
		}()

		f.ch <- result[T]{value: fn()}
		return nil
	})

	return f
}

// Join blocks until the unit finishes. It returns an error of kind
// failure.KindRecv when the unit terminated without delivering a value.
func (f *Future[T]) Join() (T, error) {
	r, ok := <-f.ch
	if !ok {
		var zero T
		return zero, failure.Recv(f.name, nil)
	}
	if r.panicked != nil {
		var zero T
		return zero, failure.Recv(f.name, r.panicked)
	}
	return r.value, nil
}

// Name returns the label the unit was submitted with.
func (f *Future[T]) Name() string {
	return f.name
}
