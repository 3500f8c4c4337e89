package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hochfrequenz/revdep-regress/internal/buildrunner"
	"github.com/hochfrequenz/revdep-regress/internal/registry"
)

// LocalConfigName is the per-project config file searched for upwards from
// the working directory
const LocalConfigName = ".revdep-regress.toml"

// ManifestEnv overrides general.manifest_path
const ManifestEnv = "REVDEP_MANIFEST"

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Registry      RegistryConfig      `toml:"registry"`
	Build         BuildConfig         `toml:"build"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	ManifestPath      string `toml:"manifest_path"`
	CacheDir          string `toml:"cache_dir"`
	ScratchDir        string `toml:"scratch_dir"`
	DatabasePath      string `toml:"database_path"`
	MaxParallelBuilds int    `toml:"max_parallel_builds"`
	Debug             bool   `toml:"debug"`
}

// RegistryConfig holds package registry settings
type RegistryConfig struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
}

// BuildConfig holds build tool settings
type BuildConfig struct {
	Command []string          `toml:"command"`
	Env     map[string]string `toml:"env"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			ManifestPath: "./Cargo.toml",
			CacheDir:     filepath.Join(".", ".revdep", "crate-cache"),
			DatabasePath: filepath.Join(".", ".revdep", "history.db"),
		},
		Registry: RegistryConfig{
			BaseURL:   registry.DefaultBaseURL,
			UserAgent: registry.DefaultUserAgent,
		},
		Build: BuildConfig{
			Command: append([]string(nil), buildrunner.DefaultCommand...),
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// Expand paths
	cfg.General.ManifestPath = ExpandPath(cfg.General.ManifestPath)
	cfg.General.CacheDir = ExpandPath(cfg.General.CacheDir)
	cfg.General.ScratchDir = ExpandPath(cfg.General.ScratchDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	return cfg, nil
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(ManifestEnv); ok && v != "" {
		c.General.ManifestPath = ExpandPath(v)
	}
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	if c.General.ManifestPath == "" {
		return fmt.Errorf("general.manifest_path is empty")
	}
	if c.General.CacheDir == "" {
		return fmt.Errorf("general.cache_dir is empty")
	}
	if len(c.Build.Command) == 0 {
		return fmt.Errorf("build.command is empty")
	}
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url is empty")
	}
	return nil
}

// LibraryDir is the directory holding the library's manifest. Its source
// tree is what the work-in-progress builds compile against.
func (c *Config) LibraryDir() string {
	return filepath.Dir(c.General.ManifestPath)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "revdep-regress", "config.toml")
}

// FindLocalConfig walks up from the working directory looking for
// LocalConfigName and returns its path, or "" when there is none.
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadWithLocalFallback loads explicitPath when set, otherwise the nearest
// local config, otherwise the user config.
func LoadWithLocalFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(ExpandPath(explicitPath))
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}
