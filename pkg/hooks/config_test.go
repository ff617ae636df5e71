package hooks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeHooks(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, ConfigDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigDir, ConfigFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_MissingConfig(t *testing.T) {
	l := NewLoader(WithProjectDir(t.TempDir()))
	if err := l.Load(); err != nil {
		t.Fatalf("missing hooks.yaml should not be an error: %v", err)
	}
	if l.HasHooks() {
		t.Error("expected no hooks")
	}
	if l.GetHooks(PreExport) != nil || l.GetHooks(HookPhase("on-upload")) != nil {
		t.Error("expected no hooks for any phase")
	}
}

func TestLoad_ExportDefaults(t *testing.T) {
	dir := t.TempDir()
	writeHooks(t, dir, `hooks:
  pre-export:
    - command: test -n "$EV_METRIC"
    - name: lint-title
      command: "true"
      timeout: 5
      on_error: continue
    - name: blank
      command: "  "
  post-export:
    - name: publish
      command: cp "$EV_EXPORT_PATH" /tmp/charts/
      timeout: 1m
    - name: strict-upload
      command: "true"
      on_error: fail
`)

	l := NewLoader(WithProjectDir(dir))
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}

	pre := l.GetHooks(PreExport)
	post := l.GetHooks(PostExport)
	if len(pre) != 2 || len(post) != 2 {
		t.Fatalf("expected 2 pre and 2 post hooks, got %d and %d", len(pre), len(post))
	}

	tests := []struct {
		hook    Hook
		name    string
		timeout time.Duration
		onError string
	}{
		{pre[0], "pre-export-1", DefaultTimeout, OnErrorFail},
		{pre[1], "lint-title", 5 * time.Second, OnErrorContinue},
		{post[0], "publish", time.Minute, OnErrorContinue},
		{post[1], "strict-upload", DefaultTimeout, OnErrorFail},
	}
	for _, tt := range tests {
		if tt.hook.Name != tt.name || tt.hook.Timeout != tt.timeout || tt.hook.OnError != tt.onError {
			t.Errorf("got %s/%v/%s, want %s/%v/%s",
				tt.hook.Name, tt.hook.Timeout, tt.hook.OnError, tt.name, tt.timeout, tt.onError)
		}
	}

	warnings := l.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "pre-export hook 3") {
		t.Errorf("expected a warning for the blank command, got %v", warnings)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":    "hooks:\n  pre-export: [\n",
		"bad timeout": "hooks:\n  post-export:\n    - command: \"true\"\n      timeout: soon\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeHooks(t, dir, content)
			if err := NewLoader(WithProjectDir(dir)).Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRunHooks(t *testing.T) {
	ctx := ExportContext{ExportPaths: []string{"loss.svg"}, Metric: "loss"}

	empty := t.TempDir()
	if ex, err := RunHooks(empty, ctx, false); err != nil || ex != nil {
		t.Errorf("no hooks.yaml: got %v, %v", ex, err)
	}

	dir := t.TempDir()
	writeHooks(t, dir, "hooks:\n  post-export:\n    - command: \"true\"\n")
	if ex, err := RunHooks(dir, ctx, true); err != nil || ex != nil {
		t.Errorf("--no-hooks: got %v, %v", ex, err)
	}
	ex, err := RunHooks(dir, ctx, false)
	if err != nil || ex == nil {
		t.Fatalf("expected an executor, got %v, %v", ex, err)
	}
	if ex.context.Metric != "loss" {
		t.Errorf("executor lost the export context: %+v", ex.context)
	}

	bad := t.TempDir()
	writeHooks(t, bad, "hooks: [")
	if _, err := RunHooks(bad, ctx, false); err == nil {
		t.Error("expected an error for unparsable hooks.yaml")
	}
}

func TestLoadDefault_UsesWorkingDir(t *testing.T) {
	dir := t.TempDir()
	writeHooks(t, dir, "hooks:\n  pre-export:\n    - command: \"true\"\n")
	t.Chdir(dir)

	l, err := LoadDefault()
	if err != nil {
		t.Fatal(err)
	}
	if len(l.GetHooks(PreExport)) != 1 {
		t.Errorf("expected the working directory's hooks, got %+v", l.Config())
	}
}
