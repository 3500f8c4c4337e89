package config

import (
	"github.com/hochfrequenz/revdep-regress/internal/domain"
	"github.com/hochfrequenz/revdep-regress/internal/orchestrator"
)

// NewRunConfig builds the run configuration for testing crateName: baseline
// builds use the published release, work-in-progress builds use the source
// tree next to the manifest.
func (c *Config) NewRunConfig(crateName string) orchestrator.RunConfig {
	return orchestrator.RunConfig{
		CrateName: crateName,
		Base:      domain.DefaultOverride(),
		Next:      domain.SourceOverride(c.LibraryDir()),
		Workers:   c.General.MaxParallelBuilds,
		Debug:     c.General.Debug,
	}
}
