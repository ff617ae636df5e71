package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Debounce() != 500*time.Millisecond {
		t.Errorf("expected 500ms debounce, got %v", cfg.Debounce())
	}
	if cfg.NoticeLife() != 3*time.Second {
		t.Errorf("expected 3s notice life, got %v", cfg.NoticeLife())
	}
	if cfg.Chart.DefaultMetric != "loss" {
		t.Errorf("expected default metric 'loss', got %q", cfg.Chart.DefaultMetric)
	}
	if cfg.Server.Addr != ":8787" {
		t.Errorf("expected addr :8787, got %q", cfg.Server.Addr)
	}
	if cfg.MaxUploadBytes() != 10<<20 {
		t.Errorf("expected 10MB upload limit, got %d", cfg.MaxUploadBytes())
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Chart.DebounceMs != 500 {
		t.Errorf("expected default config, got debounce %d", cfg.Chart.DebounceMs)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
chart:
  debounce_ms: 250
  align_steps: true
  palette: ["#000000", "#FFFFFF"]
notify:
  life_ms: 1500
server:
  addr: "127.0.0.1:9000"
ui:
  split_ratio: 0.5
recent_files:
  - ~/runs/a.csv
  - /abs/b.csv
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Debounce() != 250*time.Millisecond {
		t.Errorf("expected 250ms debounce, got %v", cfg.Debounce())
	}
	if !cfg.Chart.AlignSteps {
		t.Error("expected align_steps true")
	}
	if len(cfg.Chart.Palette) != 2 {
		t.Errorf("expected 2 palette colors, got %d", len(cfg.Chart.Palette))
	}
	if cfg.NoticeLife() != 1500*time.Millisecond {
		t.Errorf("expected 1.5s notice life, got %v", cfg.NoticeLife())
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("unexpected addr %q", cfg.Server.Addr)
	}
	// Untouched fields keep defaults
	if cfg.Server.MaxUploadMB != 10 {
		t.Errorf("expected default upload limit, got %d", cfg.Server.MaxUploadMB)
	}
	if cfg.UI.SplitRatio != 0.5 {
		t.Errorf("expected split ratio 0.5, got %f", cfg.UI.SplitRatio)
	}

	home, _ := os.UserHomeDir()
	if cfg.RecentFiles[0] != filepath.Join(home, "runs/a.csv") {
		t.Errorf("expected expanded path, got %q", cfg.RecentFiles[0])
	}
	if cfg.RecentFiles[1] != "/abs/b.csv" {
		t.Errorf("expected absolute path preserved, got %q", cfg.RecentFiles[1])
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFrom_OutOfRangeSplitRatio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ui:\n  split_ratio: 0.95\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UI.SplitRatio != DefaultConfig().UI.SplitRatio {
		t.Errorf("expected split ratio reset to default, got %f", cfg.UI.SplitRatio)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Chart.AlignSteps = true
	cfg.Chart.DebounceMs = 100
	cfg.RecentFiles = []string{"/data/run.csv"}

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if !loaded.Chart.AlignSteps || loaded.Chart.DebounceMs != 100 {
		t.Errorf("round trip lost chart settings: %+v", loaded.Chart)
	}
	if len(loaded.RecentFiles) != 1 || loaded.RecentFiles[0] != "/data/run.csv" {
		t.Errorf("round trip lost recent files: %v", loaded.RecentFiles)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("EV_ADDR", ":9999")
	t.Setenv("EV_MAX_UPLOAD_MB", "32")
	t.Setenv("EV_DEBOUNCE_MS", "not-a-number")
	t.Setenv("EV_ALIGN_STEPS", "true")

	cfg := DefaultConfig()
	ApplyEnv(&cfg)

	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected EV_ADDR override, got %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxUploadMB != 32 {
		t.Errorf("expected EV_MAX_UPLOAD_MB override, got %d", cfg.Server.MaxUploadMB)
	}
	if cfg.Chart.DebounceMs != 500 {
		t.Errorf("malformed EV_DEBOUNCE_MS should be ignored, got %d", cfg.Chart.DebounceMs)
	}
	if !cfg.Chart.AlignSteps {
		t.Error("expected EV_ALIGN_STEPS override")
	}
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != "/tmp/xdg/ev" {
		t.Errorf("expected /tmp/xdg/ev, got %q", got)
	}
	if got := ConfigPath(); got != "/tmp/xdg/ev/config.yaml" {
		t.Errorf("unexpected config path %q", got)
	}
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	if got := StateDir(); got != "/tmp/state/ev" {
		t.Errorf("expected /tmp/state/ev, got %q", got)
	}
}

func TestAddRecentFile(t *testing.T) {
	var cfg Config
	for i := 0; i < MaxRecentFiles+3; i++ {
		cfg.AddRecentFile(fmt.Sprintf("/runs/%d.csv", i))
	}
	if len(cfg.RecentFiles) != MaxRecentFiles {
		t.Fatalf("expected %d recent files, got %d", MaxRecentFiles, len(cfg.RecentFiles))
	}
	if cfg.RecentFiles[0] != fmt.Sprintf("/runs/%d.csv", MaxRecentFiles+2) {
		t.Errorf("expected newest first, got %q", cfg.RecentFiles[0])
	}

	cfg.AddRecentFile("/runs/5.csv")
	if cfg.RecentFiles[0] != "/runs/5.csv" {
		t.Errorf("expected re-added file at front, got %q", cfg.RecentFiles[0])
	}
	seen := map[string]bool{}
	for _, p := range cfg.RecentFiles {
		if seen[p] {
			t.Errorf("duplicate recent file %q", p)
		}
		seen[p] = true
	}
}
