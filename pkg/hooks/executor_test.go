package hooks

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("hooks in these tests use sh syntax")
	}
}

// chartExport describes exporting two experiments' val/loss as SVG and
// Markdown into dir.
func chartExport(dir string) ExportContext {
	return ExportContext{
		ExportPaths:     []string{filepath.Join(dir, "loss.svg"), filepath.Join(dir, "loss.md")},
		Metric:          "val/loss",
		ExperimentCount: 2,
		Source:          "runs.csv, extra.csv",
		Timestamp:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestExportContextToEnv(t *testing.T) {
	ctx := chartExport("/out")
	want := map[string]string{
		"EV_EXPORT_PATH":      filepath.Join("/out", "loss.svg"),
		"EV_EXPORT_PATHS":     filepath.Join("/out", "loss.svg") + string(os.PathListSeparator) + filepath.Join("/out", "loss.md"),
		"EV_METRIC":           "val/loss",
		"EV_EXPERIMENT_COUNT": "2",
		"EV_SOURCE":           "runs.csv, extra.csv",
		"EV_TIMESTAMP":        "2026-03-01T12:00:00Z",
	}

	env := ctx.ToEnv()
	if len(env) != len(want) {
		t.Fatalf("expected %d variables, got %v", len(want), env)
	}
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		if want[k] != v {
			t.Errorf("%s = %q, want %q", k, v, want[k])
		}
	}

	if env := (ExportContext{}).ToEnv(); env[0] != "EV_EXPORT_PATH=" || env[1] != "EV_EXPORT_PATHS=" {
		t.Errorf("expected empty paths without outputs, got %v", env[:2])
	}
}

func TestExecutor_HooksSeeExport(t *testing.T) {
	skipOnWindows(t)
	cfg := &Config{Hooks: HooksByPhase{PostExport: []Hook{{
		Name:    "describe",
		Command: `printf '%s|%s|%s|%s' "$EV_METRIC" "$EV_EXPERIMENT_COUNT" "$EV_SOURCE" "$EV_EXPORT_PATHS"`,
		Timeout: 5 * time.Second,
	}}}}
	dir := t.TempDir()
	ex := NewExecutor(cfg, chartExport(dir))
	if err := ex.RunPostExport(); err != nil {
		t.Fatal(err)
	}

	paths := filepath.Join(dir, "loss.svg") + string(os.PathListSeparator) + filepath.Join(dir, "loss.md")
	want := "val/loss|2|runs.csv, extra.csv|" + paths
	if got := ex.Results()[0].Stdout; got != want {
		t.Errorf("hook saw %q, want %q", got, want)
	}
}

func TestExecutor_PreExportFailureCancelsExport(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	cfg := &Config{Hooks: HooksByPhase{PreExport: []Hook{
		{Name: "require-accuracy", Command: `test "$EV_METRIC" = accuracy`, Timeout: 5 * time.Second, OnError: OnErrorFail},
		{Name: "stamp", Command: `echo stamped > "$EV_EXPORT_PATH"`, Timeout: 5 * time.Second, OnError: OnErrorFail},
	}}}

	ex := NewExecutor(cfg, chartExport(dir))
	err := ex.RunPreExport()
	if err == nil || !strings.Contains(err.Error(), "require-accuracy") {
		t.Fatalf("expected require-accuracy to cancel the export, got %v", err)
	}
	if n := len(ex.Results()); n != 1 {
		t.Errorf("expected later pre-export hooks skipped, %d ran", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "loss.svg")); !os.IsNotExist(err) {
		t.Error("no output may exist after a cancelled export")
	}
}

func TestExecutor_PreExportContinuePolicy(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	cfg := &Config{Hooks: HooksByPhase{PreExport: []Hook{
		{Name: "optional-check", Command: "exit 4", Timeout: 5 * time.Second, OnError: OnErrorContinue},
		{Name: "stamp", Command: `echo "$EV_EXPERIMENT_COUNT" > "$EV_EXPORT_PATH"`, Timeout: 5 * time.Second, OnError: OnErrorFail},
	}}}

	ex := NewExecutor(cfg, chartExport(dir))
	if err := ex.RunPreExport(); err != nil {
		t.Fatalf("continue policy must not cancel the export: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "loss.svg"))
	if err != nil || strings.TrimSpace(string(data)) != "2" {
		t.Errorf("expected the second hook to run, got %q, %v", data, err)
	}
}

func TestExecutor_PostExportRunsEveryHook(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.txt")
	cfg := &Config{Hooks: HooksByPhase{PostExport: []Hook{
		{Name: "upload", Command: "echo 'bucket missing' >&2; exit 1", Timeout: 5 * time.Second, OnError: OnErrorFail},
		{Name: "notify", Command: "exit 2", Timeout: 5 * time.Second, OnError: OnErrorContinue},
		{Name: "manifest", Command: `echo "$EV_EXPORT_PATHS" > ` + manifest, Timeout: 5 * time.Second, OnError: OnErrorContinue},
	}}}

	ex := NewExecutor(cfg, chartExport(dir))
	err := ex.RunPostExport()
	if err == nil || !strings.Contains(err.Error(), "upload") || strings.Contains(err.Error(), "notify") {
		t.Errorf("expected only the fail-policy hook reported, got %v", err)
	}
	if _, err := os.Stat(manifest); err != nil {
		t.Errorf("later post-export hooks must still run: %v", err)
	}

	summary := ex.Summary()
	for _, want := range []string{"Hooks: 1 succeeded, 2 failed", "✗ upload (post-export)", "stderr: bucket missing", "✓ manifest"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestExecutor_Timeout(t *testing.T) {
	skipOnWindows(t)
	cfg := &Config{Hooks: HooksByPhase{PreExport: []Hook{
		{Name: "slow-render-check", Command: "sleep 5", Timeout: 50 * time.Millisecond, OnError: OnErrorFail},
	}}}

	start := time.Now()
	err := NewExecutor(cfg, chartExport(t.TempDir())).RunPreExport()
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected a timeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestExecutor_HookEnvExpandsProcessEnv(t *testing.T) {
	skipOnWindows(t)
	t.Setenv("EV_TEST_BUCKET", "charts")
	cfg := &Config{Hooks: HooksByPhase{PostExport: []Hook{{
		Name:    "dest",
		Command: `printf '%s' "$DEST"`,
		Timeout: 5 * time.Second,
		Env:     map[string]string{"DEST": "s3://${EV_TEST_BUCKET}/runs"},
	}}}}

	ex := NewExecutor(cfg, chartExport(t.TempDir()))
	if err := ex.RunPostExport(); err != nil {
		t.Fatal(err)
	}
	if got := ex.Results()[0].Stdout; got != "s3://charts/runs" {
		t.Errorf("DEST = %q", got)
	}
}

func TestExecutor_SummaryTruncatesStderr(t *testing.T) {
	skipOnWindows(t)
	cfg := &Config{Hooks: HooksByPhase{PostExport: []Hook{
		{Name: "noisy", Command: "printf '%0500d' 0 >&2; exit 1", Timeout: 5 * time.Second, OnError: OnErrorContinue},
	}}}

	ex := NewExecutor(cfg, chartExport(t.TempDir()))
	_ = ex.RunPostExport()
	if len(ex.Results()[0].Stderr) != 500 {
		t.Fatalf("expected full stderr kept in results, got %d bytes", len(ex.Results()[0].Stderr))
	}
	_, quoted, ok := strings.Cut(ex.Summary(), "stderr: ")
	if !ok || len(quoted) != maxSummaryOutput || !strings.HasSuffix(quoted, "...") {
		t.Errorf("expected stderr cut to %d bytes, got %d", maxSummaryOutput, len(quoted))
	}
}

func TestExecutor_NothingRan(t *testing.T) {
	ex := NewExecutor(nil, ExportContext{})
	if err := ex.RunPreExport(); err != nil {
		t.Fatal(err)
	}
	if err := ex.RunPostExport(); err != nil {
		t.Fatal(err)
	}
	if ex.Summary() != "" {
		t.Errorf("expected empty summary, got %q", ex.Summary())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"loss.svg", 20, "loss.svg"},
		{"exp_1 diverged at step 40", 10, "exp_1 d..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
