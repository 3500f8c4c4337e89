package buildrunner

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/hochfrequenz/revdep-regress/internal/failure"
)

// Location of the build tool's per-project override file, relative to the
// project root.
const (
	OverrideDir  = ".cargo"
	OverrideFile = "config"
)

// overrideConfig is the override directive: resolve the library from these
// local paths instead of the registry.
type overrideConfig struct {
	Paths []string `toml:"paths"`
}

// WriteOverride writes the override file into sourceDir pointing at
// libraryDir. Relative paths are made absolute first because the build runs
// from a different working directory.
func WriteOverride(sourceDir, libraryDir string) error {
	abs, err := filepath.Abs(libraryDir)
	if err != nil {
		return failure.IO("resolving "+libraryDir, err)
	}

	data, err := toml.Marshal(overrideConfig{Paths: []string{abs}})
	if err != nil {
		return failure.Toml("encoding override", err)
	}

	dir := filepath.Join(sourceDir, OverrideDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return failure.IO("creating "+dir, err)
	}
	path := filepath.Join(dir, OverrideFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return failure.IO("writing "+path, err)
	}
	return nil
}
