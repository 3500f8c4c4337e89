package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hochfrequenz/revdep-regress/internal/domain"
	"github.com/hochfrequenz/revdep-regress/internal/registry"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.General.ManifestPath != "./Cargo.toml" {
		t.Errorf("ManifestPath = %q, want ./Cargo.toml", cfg.General.ManifestPath)
	}
	if cfg.General.MaxParallelBuilds != 0 {
		t.Errorf("MaxParallelBuilds = %d, want 0", cfg.General.MaxParallelBuilds)
	}
	if cfg.Registry.BaseURL != registry.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.Registry.BaseURL, registry.DefaultBaseURL)
	}
	if diff := cmp.Diff([]string{"cargo", "build"}, cfg.Build.Command); diff != "" {
		t.Errorf("Command mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := writeTempConfig(t, `
[general]
manifest_path = "/work/mylib/Cargo.toml"
max_parallel_builds = 5
debug = true

[registry]
base_url = "http://localhost:9999/api/v1"

[build]
command = ["cargo", "check"]

[build.env]
CARGO_TARGET_DIR = "/tmp/target"

[notifications]
slack_webhook = "https://hooks.example.com/x"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.ManifestPath != "/work/mylib/Cargo.toml" {
		t.Errorf("ManifestPath = %q", cfg.General.ManifestPath)
	}
	if cfg.General.MaxParallelBuilds != 5 {
		t.Errorf("MaxParallelBuilds = %d, want 5", cfg.General.MaxParallelBuilds)
	}
	if !cfg.General.Debug {
		t.Error("Debug should be true")
	}
	if cfg.Registry.BaseURL != "http://localhost:9999/api/v1" {
		t.Errorf("BaseURL = %q", cfg.Registry.BaseURL)
	}
	// Unset keys keep their defaults.
	if cfg.Registry.UserAgent != registry.DefaultUserAgent {
		t.Errorf("UserAgent = %q, want default", cfg.Registry.UserAgent)
	}
	if diff := cmp.Diff([]string{"cargo", "check"}, cfg.Build.Command); diff != "" {
		t.Errorf("Command mismatch (-want +got):\n%s", diff)
	}
	if cfg.Build.Env["CARGO_TARGET_DIR"] != "/tmp/target" {
		t.Errorf("Env = %v", cfg.Build.Env)
	}
	if cfg.Notifications.SlackWebhook != "https://hooks.example.com/x" {
		t.Errorf("SlackWebhook = %q", cfg.Notifications.SlackWebhook)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTempConfig(t, "[general\nmanifest_path = ")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
		{"", ""},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unset keeps config", map[string]string{}, "./Cargo.toml"},
		{"empty keeps config", map[string]string{ManifestEnv: ""}, "./Cargo.toml"},
		{"set overrides", map[string]string{ManifestEnv: "/src/lib/Cargo.toml"}, "/src/lib/Cargo.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.ApplyEnv(func(key string) (string, bool) {
				v, ok := tt.env[key]
				return v, ok
			})
			if cfg.General.ManifestPath != tt.want {
				t.Errorf("ManifestPath = %q, want %q", cfg.General.ManifestPath, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty manifest", func(c *Config) { c.General.ManifestPath = "" }},
		{"empty cache", func(c *Config) { c.General.CacheDir = "" }},
		{"empty command", func(c *Config) { c.Build.Command = nil }},
		{"empty registry", func(c *Config) { c.Registry.BaseURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNewRunConfig(t *testing.T) {
	cfg := Default()
	cfg.General.ManifestPath = "/work/mylib/Cargo.toml"
	cfg.General.MaxParallelBuilds = 4

	rc := cfg.NewRunConfig("mylib")

	if rc.CrateName != "mylib" {
		t.Errorf("CrateName = %q", rc.CrateName)
	}
	if rc.Base != domain.DefaultOverride() {
		t.Errorf("Base = %v, want default", rc.Base)
	}
	if rc.Next != domain.SourceOverride("/work/mylib") {
		t.Errorf("Next = %v, want source override of the library dir", rc.Next)
	}
	if rc.Workers != 4 {
		t.Errorf("Workers = %d, want 4", rc.Workers)
	}
}

func TestFindLocalConfig(t *testing.T) {
	// Create a temp directory structure
	root := t.TempDir()
	subdir := filepath.Join(root, "sub", "dir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}

	// Create local config in root
	localConfig := filepath.Join(root, LocalConfigName)
	if err := os.WriteFile(localConfig, []byte("[general]\nmanifest_path = \"/local\""), 0644); err != nil {
		t.Fatal(err)
	}

	t.Chdir(subdir)

	// Should find config in parent
	found := FindLocalConfig()
	if found != localConfig {
		t.Errorf("FindLocalConfig() = %q, want %q", found, localConfig)
	}
}

func TestFindLocalConfig_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())

	found := FindLocalConfig()
	if found != "" {
		t.Errorf("FindLocalConfig() = %q, want empty string", found)
	}
}

func TestLoadWithLocalFallback_ExplicitPath(t *testing.T) {
	explicitPath := writeTempConfig(t, `[general]
manifest_path = "/explicit/Cargo.toml"
`)

	cfg, err := LoadWithLocalFallback(explicitPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.ManifestPath != "/explicit/Cargo.toml" {
		t.Errorf("ManifestPath = %q, want /explicit/Cargo.toml", cfg.General.ManifestPath)
	}
}

func TestLoadWithLocalFallback_LocalConfig(t *testing.T) {
	root := t.TempDir()
	localConfig := filepath.Join(root, LocalConfigName)

	content := `[general]
manifest_path = "/from-local/Cargo.toml"
`
	if err := os.WriteFile(localConfig, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Chdir(root)

	cfg, err := LoadWithLocalFallback("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.ManifestPath != "/from-local/Cargo.toml" {
		t.Errorf("ManifestPath = %q, want /from-local/Cargo.toml", cfg.General.ManifestPath)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
