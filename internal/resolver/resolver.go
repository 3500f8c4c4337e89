// Package resolver picks the version of a reverse dependency to test.
package resolver

import (
	"context"
	"log"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/hochfrequenz/revdep-regress/internal/domain"
	"github.com/hochfrequenz/revdep-regress/internal/failure"
)

// VersionLister returns every published version string of a crate
type VersionLister interface {
	Versions(ctx context.Context, name string) ([]string, error)
}

// Resolver resolves crate names to their newest published version
type Resolver struct {
	lister VersionLister
	debug  bool
}

// New creates a resolver backed by lister
func New(lister VersionLister, debug bool) *Resolver {
	return &Resolver{lister: lister, debug: debug}
}

// Resolve returns name pinned to its highest valid semantic version.
func (r *Resolver) Resolve(ctx context.Context, name string) (domain.RevDep, error) {
	if r.debug {
		log.Printf("[resolver] resolving current version for %s", name)
	}
	nums, err := r.lister.Versions(ctx, name)
	if err != nil {
		return domain.RevDep{}, err
	}

	version, err := MaxVersion(nums)
	if err != nil {
		return domain.RevDep{}, failure.NoVersions(name)
	}
	return domain.RevDep{Name: name, Version: version}, nil
}

// MaxVersion returns the highest of nums under semver precedence, ignoring
// strings that are not full MAJOR.MINOR.PATCH versions.
func MaxVersion(nums []string) (string, error) {
	var best, bestCanon string
	for _, num := range nums {
		canon, err := Parse(num)
		if err != nil {
			continue
		}
		if bestCanon == "" || semver.Compare(canon, bestCanon) > 0 {
			best, bestCanon = num, canon
		}
	}
	if bestCanon == "" {
		return "", failure.ErrNoVersions
	}
	return best, nil
}

// Parse validates a registry version string and returns its "v"-prefixed form
// for comparison. The registry never uses the short "1.2" forms that semver
// accepts, so those are rejected.
func Parse(num string) (string, error) {
	num = strings.TrimSpace(num)
	if num == "" || strings.HasPrefix(num, "v") {
		return "", failure.VersionParse(num)
	}
	v := "v" + num
	if !semver.IsValid(v) {
		return "", failure.VersionParse(num)
	}
	core := num
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	if strings.Count(core, ".") != 2 {
		return "", failure.VersionParse(num)
	}
	return v, nil
}
