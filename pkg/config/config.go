// Package config handles loading and saving ev configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/ev/config.yaml
//   - State:  ~/.local/state/ev/ (exports written from the viewer)
//
// Values from the environment (EV_ADDR, EV_MAX_UPLOAD_MB, EV_DEBOUNCE_MS,
// EV_ALIGN_STEPS) override the file; command-line flags override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxRecentFiles caps the recent-files list.
const MaxRecentFiles = 10

// ChartConfig controls chart derivation.
type ChartConfig struct {
	DebounceMs    int      `yaml:"debounce_ms,omitempty"`    // Quiet period before a rebuild (default 500)
	AlignSteps    bool     `yaml:"align_steps,omitempty"`    // Gap-fill series to the shared step axis
	Palette       []string `yaml:"palette,omitempty"`        // Overrides the built-in 10-color palette
	DefaultMetric string   `yaml:"default_metric,omitempty"` // Fallback metric when a file has none
}

// NotifyConfig controls toast notices.
type NotifyConfig struct {
	LifeMs int `yaml:"life_ms,omitempty"` // How long notices stay visible (default 3000)
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr,omitempty"`
	MaxUploadMB int    `yaml:"max_upload_mb,omitempty"`
}

// UIConfig holds terminal viewer preferences.
type UIConfig struct {
	SplitRatio float64 `yaml:"split_ratio,omitempty"` // Experiment list width ratio (0.2-0.8)
	Watch      bool    `yaml:"watch,omitempty"`       // Reload the viewed file on change
}

// Config is the top-level configuration for ev.
type Config struct {
	Chart       ChartConfig  `yaml:"chart,omitempty"`
	Notify      NotifyConfig `yaml:"notify,omitempty"`
	Server      ServerConfig `yaml:"server,omitempty"`
	UI          UIConfig     `yaml:"ui,omitempty"`
	RecentFiles []string     `yaml:"recent_files,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Chart: ChartConfig{
			DebounceMs:    500,
			DefaultMetric: "loss",
		},
		Notify: NotifyConfig{
			LifeMs: 3000,
		},
		Server: ServerConfig{
			Addr:        ":8787",
			MaxUploadMB: 10,
		},
		UI: UIConfig{
			SplitRatio: 0.35,
		},
	}
}

// Debounce returns the configured quiet period.
func (c Config) Debounce() time.Duration {
	if c.Chart.DebounceMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Chart.DebounceMs) * time.Millisecond
}

// NoticeLife returns how long notices stay visible.
func (c Config) NoticeLife() time.Duration {
	if c.Notify.LifeMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Notify.LifeMs) * time.Millisecond
}

// MaxUploadBytes returns the upload size limit for the HTTP API.
func (c Config) MaxUploadBytes() int64 {
	mb := c.Server.MaxUploadMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) << 20
}

// ConfigDir returns the XDG config directory for ev.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "ev")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ev")
}

// StateDir returns the XDG state directory for ev.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "ev")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "ev")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		ApplyEnv(&cfg)
		return cfg, nil
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.UI.SplitRatio < 0.2 || cfg.UI.SplitRatio > 0.8 {
		cfg.UI.SplitRatio = DefaultConfig().UI.SplitRatio
	}
	if cfg.Chart.DefaultMetric == "" {
		cfg.Chart.DefaultMetric = "loss"
	}
	for i := range cfg.RecentFiles {
		cfg.RecentFiles[i] = expandHome(cfg.RecentFiles[i])
	}

	return cfg, nil
}

// ApplyEnv overrides cfg with EV_* environment variables. Malformed values
// are ignored.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("EV_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if n, ok := envInt("EV_MAX_UPLOAD_MB"); ok && n > 0 {
		cfg.Server.MaxUploadMB = n
	}
	if n, ok := envInt("EV_DEBOUNCE_MS"); ok && n > 0 {
		cfg.Chart.DebounceMs = n
	}
	if v, ok := os.LookupEnv("EV_ALIGN_STEPS"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Chart.AlignSteps = b
		}
	}
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// AddRecentFile moves path to the front of the recent-files list.
func (c *Config) AddRecentFile(path string) {
	if path == "" {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	out := []string{path}
	for _, p := range c.RecentFiles {
		if p != path && len(out) < MaxRecentFiles {
			out = append(out, p)
		}
	}
	c.RecentFiles = out
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
