// Package manifest reads the library's own package manifest.
package manifest

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/hochfrequenz/revdep-regress/internal/failure"
)

type document struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

// CrateName returns [package].name from the manifest at path.
func CrateName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", failure.Manifest(path, err)
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", failure.Toml(path, err)
	}
	if doc.Package.Name == "" {
		return "", failure.Manifest(path, nil)
	}
	return doc.Package.Name, nil
}
