package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hochfrequenz/revdep-regress/internal/failure"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Cargo.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCrateName(t *testing.T) {
	path := writeManifest(t, `
[package]
name = "mylib"
version = "0.4.0-dev"

[dependencies]
serde = "1"
`)

	name, err := CrateName(path)
	if err != nil {
		t.Fatalf("CrateName failed: %v", err)
	}
	if name != "mylib" {
		t.Errorf("got %q, want mylib", name)
	}
}

func TestCrateName_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    failure.Kind
	}{
		{"invalid toml", "[package\nname = ", failure.KindToml},
		{"no package table", "[workspace]\nmembers = [\"a\"]\n", failure.KindManifest},
		{"empty name", "[package]\nname = \"\"\n", failure.KindManifest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CrateName(writeManifest(t, tt.content))
			if got := failure.KindOf(err); got != tt.want {
				t.Errorf("got kind %v (%v), want %v", got, err, tt.want)
			}
		})
	}
}

func TestCrateName_MissingFile(t *testing.T) {
	_, err := CrateName(filepath.Join(t.TempDir(), "Cargo.toml"))
	if failure.KindOf(err) != failure.KindManifest {
		t.Errorf("got %v, want manifest error", err)
	}
}
