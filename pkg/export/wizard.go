package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/config"
)

// WizardConfig holds the answers of the export wizard. The last answers
// are saved and offered as defaults on the next run.
type WizardConfig struct {
	Metric      string   `json:"metric"`
	Experiments []string `json:"experiments"`
	Outputs     []string `json:"outputs"`
	Title       string   `json:"title,omitempty"`
	Align       bool     `json:"align"`
}

// Wizard prompts for what to export from a loaded log.
type Wizard struct {
	config  *WizardConfig
	summary aggregate.Summary
	in      io.Reader
	out     io.Writer
}

// NewWizard creates a wizard over the experiments and metrics in summary.
func NewWizard(summary aggregate.Summary) *Wizard {
	return &Wizard{
		config:  &WizardConfig{},
		summary: summary,
		in:      os.Stdin,
		out:     os.Stdout,
	}
}

// WithIO redirects the wizard's prompts. Non-terminal input switches the
// forms to accessible (line based) mode.
func (w *Wizard) WithIO(in io.Reader, out io.Writer) *Wizard {
	w.in, w.out = in, out
	return w
}

// isTerminal checks if the wizard reads from a terminal
func (w *Wizard) isTerminal() bool {
	f, ok := w.in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func (w *Wizard) newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).
		WithTheme(huh.ThemeDracula()).
		WithInput(w.in).
		WithOutput(w.out)
	if !w.isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// Run asks for the metric, experiments, output files and title, starting
// from the previously saved answers where they still apply.
func (w *Wizard) Run(ctx context.Context) (*WizardConfig, error) {
	if len(w.summary.Experiments) == 0 {
		return nil, ErrNoData
	}

	saved, _ := LoadWizardConfig()
	*w.config = w.defaults(saved)

	metricOpts := make([]huh.Option[string], 0, len(w.summary.MetricOptions))
	for _, m := range w.summary.MetricOptions {
		metricOpts = append(metricOpts, huh.NewOption(m.Label, m.Value))
	}
	expOpts := make([]huh.Option[string], 0, len(w.summary.Experiments))
	for _, e := range w.summary.Experiments {
		label := e.ID
		if e.ModelType != "" {
			label = fmt.Sprintf("%s (%s, lr=%s)", e.ID, e.ModelType, e.LearningRate.String())
		}
		expOpts = append(expOpts, huh.NewOption(label, e.ID))
	}
	outputs := strings.Join(w.config.Outputs, ", ")

	groups := []*huh.Group{}
	if len(metricOpts) > 0 {
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title("Metric").
				Options(metricOpts...).
				Value(&w.config.Metric),
		))
	}
	groups = append(groups,
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Experiments").
				Description("space toggles, enter confirms").
				Options(expOpts...).
				Value(&w.config.Experiments).
				Validate(func(ids []string) error {
					if len(ids) == 0 {
						return fmt.Errorf("select at least one experiment")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Output files").
				Description("comma separated; .svg .png .json .md .sqlite").
				Value(&outputs).
				Validate(validateOutputs),
			huh.NewInput().
				Title("Chart title").
				Value(&w.config.Title),
			huh.NewConfirm().
				Title("Align series on shared steps?").
				Value(&w.config.Align),
		),
	)

	if err := w.newForm(groups...).RunWithContext(ctx); err != nil {
		return nil, err
	}
	w.config.Outputs = splitOutputs(outputs)

	if err := SaveWizardConfig(w.config); err != nil {
		fmt.Fprintf(w.out, "Warning: could not save export settings: %v\n", err)
	}
	return w.config, nil
}

// GetConfig returns the collected wizard configuration.
func (w *Wizard) GetConfig() *WizardConfig {
	return w.config
}

// defaults derives the initial answers: the saved ones filtered to what the
// current log offers, then the summary's default metric, the first
// experiment and chart.svg.
func (w *Wizard) defaults(saved *WizardConfig) WizardConfig {
	cfg := WizardConfig{}
	if saved != nil {
		cfg.Title = saved.Title
		cfg.Align = saved.Align
		cfg.Outputs = append([]string(nil), saved.Outputs...)
		if aggregate.HasMetric(w.summary.MetricOptions, saved.Metric) {
			cfg.Metric = saved.Metric
		}
		for _, id := range saved.Experiments {
			if _, ok := w.summary.Find(id); ok {
				cfg.Experiments = append(cfg.Experiments, id)
			}
		}
	}
	if cfg.Metric == "" {
		cfg.Metric = w.summary.DefaultMetric
	}
	if len(cfg.Experiments) == 0 && len(w.summary.Experiments) > 0 {
		cfg.Experiments = []string{w.summary.Experiments[0].ID}
	}
	if len(cfg.Outputs) == 0 {
		cfg.Outputs = []string{"chart.svg"}
	}
	return cfg
}

func splitOutputs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateOutputs(s string) error {
	paths := splitOutputs(s)
	if len(paths) == 0 {
		return fmt.Errorf("at least one output file is required")
	}
	for _, p := range paths {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".svg", ".png", ".json", ".md", ".markdown", ".sqlite", ".sqlite3", ".db":
		default:
			return fmt.Errorf("%s: unsupported output type", p)
		}
	}
	return nil
}

// WizardConfigPath returns the path to the wizard config file.
func WizardConfigPath() string {
	dir := config.StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "export-wizard.json")
}

// LoadWizardConfig loads previously saved wizard configuration.
func LoadWizardConfig() (*WizardConfig, error) {
	path := WizardConfigPath()
	if path == "" {
		return nil, fmt.Errorf("could not determine config path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No saved config
		}
		return nil, err
	}

	var cfg WizardConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveWizardConfig saves wizard configuration for future runs.
func SaveWizardConfig(cfg *WizardConfig) error {
	path := WizardConfigPath()
	if path == "" {
		return fmt.Errorf("could not determine config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
