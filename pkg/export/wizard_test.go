package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/testutil"
)

func TestWizardDefaults_NoSavedConfig(t *testing.T) {
	w := NewWizard(aggregate.Aggregate(testutil.QuickLog(3, 2), nil))
	cfg := w.defaults(nil)

	if cfg.Metric != "loss" {
		t.Errorf("metric = %q, want loss", cfg.Metric)
	}
	if !reflect.DeepEqual(cfg.Experiments, []string{"exp_1"}) {
		t.Errorf("experiments = %v, want [exp_1]", cfg.Experiments)
	}
	if !reflect.DeepEqual(cfg.Outputs, []string{"chart.svg"}) {
		t.Errorf("outputs = %v", cfg.Outputs)
	}
}

func TestWizardDefaults_FiltersSavedConfig(t *testing.T) {
	w := NewWizard(aggregate.Aggregate(testutil.QuickLog(3, 2), nil))
	cfg := w.defaults(&WizardConfig{
		Metric:      "accuracy",
		Experiments: []string{"exp_9", "exp_3", "exp_2"},
		Outputs:     []string{"a.png", "b.md"},
		Title:       "Run 7",
		Align:       true,
	})

	if cfg.Metric != "accuracy" {
		t.Errorf("metric = %q, want accuracy", cfg.Metric)
	}
	if !reflect.DeepEqual(cfg.Experiments, []string{"exp_3", "exp_2"}) {
		t.Errorf("experiments = %v, want unknown ids dropped", cfg.Experiments)
	}
	if cfg.Title != "Run 7" || !cfg.Align {
		t.Errorf("title/align not carried over: %+v", cfg)
	}

	stale := w.defaults(&WizardConfig{Metric: "bleu"})
	if stale.Metric != "loss" {
		t.Errorf("unknown saved metric should fall back, got %q", stale.Metric)
	}
}

func TestValidateOutputs(t *testing.T) {
	if err := validateOutputs("a.svg, b.PNG ,c.md,d.sqlite"); err != nil {
		t.Errorf("valid outputs rejected: %v", err)
	}
	if err := validateOutputs(" , "); err == nil {
		t.Error("blank outputs should be rejected")
	}
	if err := validateOutputs("a.svg,b.gif"); err == nil || !strings.Contains(err.Error(), "b.gif") {
		t.Errorf("expected error naming b.gif, got %v", err)
	}
}

func TestSplitOutputs(t *testing.T) {
	got := splitOutputs(" a.svg ,, b.json ")
	if !reflect.DeepEqual(got, []string{"a.svg", "b.json"}) {
		t.Errorf("splitOutputs = %v", got)
	}
}

func TestWizardConfig_SaveLoad(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	loaded, err := LoadWizardConfig()
	if err != nil || loaded != nil {
		t.Fatalf("expected no saved config, got %+v, %v", loaded, err)
	}

	want := &WizardConfig{Metric: "loss", Experiments: []string{"exp_1"}, Outputs: []string{"c.svg"}, Align: true}
	if err := SaveWizardConfig(want); err != nil {
		t.Fatalf("SaveWizardConfig: %v", err)
	}
	if !strings.HasSuffix(WizardConfigPath(), filepath.Join("ev", "export-wizard.json")) {
		t.Errorf("unexpected path %s", WizardConfigPath())
	}

	got, err := LoadWizardConfig()
	if err != nil {
		t.Fatalf("LoadWizardConfig: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loaded %+v, want %+v", got, want)
	}
}

func TestWizardConfig_Corrupt(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	if err := os.MkdirAll(filepath.Dir(WizardConfigPath()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(WizardConfigPath(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWizardConfig(); err == nil {
		t.Error("expected error for corrupt config")
	}
}

func TestWizardRun_NoExperiments(t *testing.T) {
	w := NewWizard(aggregate.Aggregate(nil, nil))
	if _, err := w.Run(context.Background()); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
