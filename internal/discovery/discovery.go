// Package discovery finds the crates that depend on the library under test.
package discovery

import (
	"context"

	"github.com/hochfrequenz/revdep-regress/internal/status"
)

// Lister returns the reverse dependencies of a crate
type Lister interface {
	ReverseDependencies(ctx context.Context, name string) ([]string, error)
}

// Discover lists the crates depending on crateName, in registry order.
// Duplicate names are kept.
func Discover(ctx context.Context, lister Lister, sink *status.Sink, crateName string) ([]string, error) {
	sink.Status("downloading reverse deps for %s", crateName)

	revDeps, err := lister.ReverseDependencies(ctx, crateName)
	if err != nil {
		return nil, err
	}

	sink.Status("%d reverse deps", len(revDeps))
	return revDeps, nil
}
