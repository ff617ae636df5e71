// Package ui implements ev's terminal experiment viewer: an experiments
// table, a metric selector and a line plot of the selected series.
package ui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/expview/internal/datasource"
	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/config"
	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/export"
	"github.com/vanderheijden86/expview/pkg/loader"
	"github.com/vanderheijden86/expview/pkg/metrics"
	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/session"
	"github.com/vanderheijden86/expview/pkg/watcher"
)

// FileChangedMsg is sent when a watched log changes on disk.
type FileChangedMsg struct{ Paths []string }

type reloadedMsg struct {
	rows   []model.Row
	source string
	err    error
	opened string // set when the rows come from a newly opened file
}

// openedMsg records a file handed to the session's upload path.
type openedMsg struct{ path string }

type noticeExpiredMsg struct{ id int }

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		paths := <-w.Changed()
		return FileChangedMsg{Paths: paths}
	}
}

// Model is the main Bubble Tea model for ev.
type Model struct {
	sess    *session.Session
	events  *events
	cfg     config.Config
	theme   Theme
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	// Data
	paths    []string         // Files the rows were read from, for reloads
	watcher  *watcher.Watcher // File watcher for live reload
	loadedAt time.Time
	table    tableView

	// Toast
	notice   *model.Notice
	noticeID int

	// Stats panel
	showStats  bool
	stats      viewport.Model
	mdRenderer *glamour.TermRenderer
	mdWidth    int

	// Open-file prompt
	prompt   *huh.Form
	openPath *string

	width    int
	height   int
	quitting bool
}

// NewModel creates a viewer over a new session configured from cfg. opts
// are applied after the config-derived options.
func NewModel(cfg config.Config, opts ...session.Option) Model {
	ev := newEvents()
	sessOpts := []session.Option{
		session.WithColors(aggregate.NewColorAssigner(cfg.Chart.Palette...)),
		session.WithQuietPeriod(cfg.Debounce()),
		session.WithAlignedSteps(cfg.Chart.AlignSteps),
		session.WithNoticeLife(cfg.NoticeLife()),
		session.WithFallbackMetric(cfg.Chart.DefaultMetric),
		session.WithParseOptions(loader.ParseOptions{WarningHandler: func(msg string) {
			debug.Log("parse warning: %s", msg)
		}}),
	}
	sessOpts = append(sessOpts, opts...)
	sessOpts = append(sessOpts, session.WithNotifier(ev))

	sess := session.New(sessOpts...)
	sess.OnChart(ev.chart)

	theme := DefaultTheme(lipgloss.DefaultRenderer())
	sp := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(ColorPrimary)),
	)

	return Model{
		sess:     sess,
		events:   ev,
		cfg:      cfg,
		theme:    theme,
		keys:     defaultKeyMap(),
		help:     help.New(),
		spinner:  sp,
		table:    tableView{colors: sess.Colors()},
		stats:    viewport.New(80, 20),
		openPath: new(string),
		width:    120,
		height:   40,
	}
}

// Session returns the viewer's session.
func (m Model) Session() *session.Session { return m.sess }

// Config returns the configuration, including files opened in the viewer.
func (m Model) Config() config.Config { return m.cfg }

// Load shows rows read from paths.
func (m Model) Load(rows []model.Row, source string, paths ...string) Model {
	m.sess.Load(rows, source)
	m.paths = paths
	m.loadedAt = time.Now()
	m.syncTable()
	return m
}

// WithWatcher reloads the viewed files whenever they change.
func (m Model) WithWatcher() (Model, error) {
	if len(m.paths) == 0 {
		return m, watcher.ErrNoPaths
	}
	w, err := watcher.NewWatcher(m.paths)
	if err != nil {
		return m, err
	}
	if err := w.Start(); err != nil {
		return m, err
	}
	m.watcher = w
	return m, nil
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForEvent(m.events), m.spinner.Tick}
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizeStats()
		if m.prompt != nil {
			m.prompt = m.prompt.WithWidth(min(m.width-4, 72))
		}
		return m, nil

	case NoticeMsg:
		cmds = append(cmds, m.showNotice(msg.Notice), waitForEvent(m.events))
		m.syncTable()
		return m, tea.Batch(cmds...)

	case LoadingMsg:
		if !msg.Loading {
			m.loadedAt = time.Now()
			m.syncTable()
		}
		return m, waitForEvent(m.events)

	case ChartMsg:
		if m.showStats {
			m.refreshStats()
		}
		return m, waitForEvent(m.events)

	case noticeExpiredMsg:
		if msg.id == m.noticeID {
			m.notice = nil
		}
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case FileChangedMsg:
		debug.Log("ui: change detected in %v", msg.Paths)
		cmds = append(cmds, m.reloadCmd())
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}
		return m, tea.Batch(cmds...)

	case reloadedMsg:
		if msg.err != nil {
			return m, m.showNotice(model.Notice{
				Severity: model.SeverityError,
				Summary:  "Reload failed",
				Detail:   msg.err.Error(),
				Life:     m.cfg.NoticeLife(),
			})
		}
		if msg.opened != "" {
			m = m.Load(msg.rows, msg.source, msg.opened)
			return m, m.showNotice(model.Notice{
				Severity: model.SeveritySuccess,
				Summary:  "Opened",
				Detail:   fmt.Sprintf("%s: %d rows", msg.source, len(msg.rows)),
				Life:     m.cfg.NoticeLife(),
			})
		}
		diff := datasource.Diff(m.sess.Rows(), msg.rows)
		m = m.Load(msg.rows, msg.source, m.paths...)
		return m, m.showNotice(diff.Notice(m.cfg.NoticeLife()))

	case openedMsg:
		m.paths = []string{msg.path}
		return m, nil
	}

	// The huh form needs every remaining message, not just keys.
	if m.prompt != nil {
		return m.updatePrompt(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.showStats && m.handleStatsKeys(msg) {
			m.stats, cmd = m.stats.Update(msg)
			return m, cmd
		}
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Up):
		if m.table.cursor > 0 {
			m.table.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.table.cursor < len(m.table.experiments)-1 {
			m.table.cursor++
		}

	case key.Matches(msg, m.keys.Toggle):
		if m.table.cursor < len(m.table.experiments) {
			m.sess.ToggleExperiment(m.table.experiments[m.table.cursor].ID)
			m.syncTable()
		}
	case key.Matches(msg, m.keys.All):
		m.sess.SetExperiments(aggregate.ExperimentIDs(m.table.experiments))
		m.syncTable()
	case key.Matches(msg, m.keys.Clear):
		m.sess.SetExperiments(nil)
		m.syncTable()

	case key.Matches(msg, m.keys.NextMetric):
		m.cycleMetric(1)
	case key.Matches(msg, m.keys.PrevMetric):
		m.cycleMetric(-1)

	case key.Matches(msg, m.keys.Open):
		return m.openPrompt()
	case key.Matches(msg, m.keys.Reload):
		if len(m.paths) > 0 {
			return m, m.reloadCmd()
		}
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyChart()
	case key.Matches(msg, m.keys.Export):
		return m, m.exportChart()
	case key.Matches(msg, m.keys.Stats):
		m.showStats = !m.showStats
		if m.showStats {
			m.refreshStats()
		}
	}
	m.table.scrollTo(m.tableHeight())
	return m, nil
}

// handleStatsKeys reports whether msg scrolls the stats panel.
func (m Model) handleStatsKeys(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		return true
	}
	return false
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.Stop()
	return m, tea.Quit
}

// Stop releases the session, the event bridge and the file watcher. It is
// safe to call more than once.
func (m Model) Stop() {
	m.sess.Close()
	m.events.close()
	if m.watcher != nil {
		m.watcher.Stop()
	}
}

// cycleMetric moves the metric selection through the metric options.
func (m *Model) cycleMetric(dir int) {
	opts := m.sess.MetricOptions()
	if len(opts) == 0 {
		return
	}
	current := m.sess.SelectedMetric()
	idx := -1
	for i, o := range opts {
		if o.Value == current {
			idx = i
			break
		}
	}
	var next int
	switch {
	case idx < 0 && dir > 0:
		next = 0
	case idx < 0:
		next = len(opts) - 1
	default:
		next = (idx + dir + len(opts)) % len(opts)
	}
	m.sess.SetMetric(opts[next].Value)
	if m.showStats {
		m.refreshStats()
	}
}

// syncTable copies the session's experiments and selection into the table.
func (m *Model) syncTable() {
	m.table.experiments = m.sess.Experiments()
	sel := m.sess.Selection()
	m.table.selected = make(map[string]bool, len(sel.Experiments))
	for _, e := range sel.Experiments {
		m.table.selected[e.ID] = true
	}
	if m.table.cursor >= len(m.table.experiments) {
		m.table.cursor = max(len(m.table.experiments)-1, 0)
	}
	m.table.scrollTo(m.tableHeight())
}

func (m *Model) showNotice(n model.Notice) tea.Cmd {
	if n.Life <= 0 {
		n.Life = model.DefaultNoticeLife
	}
	m.noticeID++
	m.notice = &n
	id := m.noticeID
	return tea.Tick(n.Life, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// OPEN FILE PROMPT
// ══════════════════════════════════════════════════════════════════════════════

func (m Model) openPrompt() (tea.Model, tea.Cmd) {
	*m.openPath = ""
	input := huh.NewInput().
		Title("Open experiment log").
		Description("CSV, TSV, XLSX or an ev SQLite export").
		Placeholder("runs.csv").
		Suggestions(m.cfg.RecentFiles).
		Validate(validateLogPath).
		Value(m.openPath)
	m.prompt = huh.NewForm(huh.NewGroup(input)).
		WithTheme(huh.ThemeDracula()).
		WithShowHelp(true).
		WithWidth(min(m.width-4, 72))
	return m, m.prompt.Init()
}

func validateLogPath(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("enter a file path")
	}
	info, err := os.Stat(expandPath(s))
	if err != nil {
		return fmt.Errorf("no experiment log found at %s", s)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	return nil
}

func (m Model) updatePrompt(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+c" {
		return m.quit()
	}
	form, cmd := m.prompt.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.prompt = f
	}
	switch m.prompt.State {
	case huh.StateCompleted:
		m.prompt = nil
		path := expandPath(strings.TrimSpace(*m.openPath))
		m.cfg.AddRecentFile(path)
		return m, m.openFileCmd(path)
	case huh.StateAborted:
		m.prompt = nil
		return m, nil
	}
	return m, cmd
}

// openFileCmd loads path into the session. Delimited files and workbooks
// go through the session's upload path so they get its notices; SQLite
// exports are read directly and shown like a reload.
func (m Model) openFileCmd(path string) tea.Cmd {
	sess := m.sess
	life := m.cfg.NoticeLife()
	return func() tea.Msg {
		src, err := datasource.Detect(path)
		if err != nil {
			return NoticeMsg{Notice: model.Notice{
				Severity: model.SeverityError,
				Summary:  "Unsupported file",
				Detail:   err.Error(),
				Life:     life,
			}}
		}
		if src.Type == datasource.SourceTypeSQLite {
			rows, err := datasource.LoadFromSource(context.Background(), src)
			return reloadedMsg{rows: rows, source: filepath.Base(path), err: err, opened: path}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return NoticeMsg{Notice: model.Notice{Severity: model.SeverityError, Summary: "Error", Detail: err.Error(), Life: life}}
		}
		blob := &loader.Blob{Name: filepath.Base(path), Size: int64(len(data)), Reader: bytes.NewReader(data)}
		if err := sess.Upload(context.Background(), blob); err != nil {
			return NoticeMsg{Notice: model.Notice{Severity: model.SeverityWarn, Summary: "Busy", Detail: err.Error(), Life: life}}
		}
		return openedMsg{path: path}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	paths := append([]string(nil), m.paths...)
	source := m.sess.Source()
	return func() tea.Msg {
		rows, err := datasource.LoadPaths(context.Background(), paths, loader.ParseOptions{
			WarningHandler: func(string) {},
		})
		return reloadedMsg{rows: rows, source: source, err: err}
	}
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// COPY / EXPORT
// ══════════════════════════════════════════════════════════════════════════════

func (m *Model) copyChart() tea.Cmd {
	data, err := export.MarshalChart(m.sess.Chart())
	if err == nil {
		err = clipboard.WriteAll(string(data))
	}
	if err != nil {
		return m.showNotice(model.Notice{Severity: model.SeverityError, Summary: "Copy failed", Detail: err.Error(), Life: m.cfg.NoticeLife()})
	}
	return m.showNotice(model.Notice{Severity: model.SeveritySuccess, Summary: "Copied", Detail: "Chart JSON copied to clipboard", Life: m.cfg.NoticeLife()})
}

func (m *Model) exportChart() tea.Cmd {
	metric := m.sess.SelectedMetric()
	path := exportFileName(metric)
	err := export.SaveChart(export.ChartOptions{
		Path:  path,
		Title: metric,
		Data:  m.sess.Chart(),
	})
	if err != nil {
		return m.showNotice(model.Notice{Severity: model.SeverityError, Summary: "Export failed", Detail: err.Error(), Life: m.cfg.NoticeLife()})
	}
	return m.showNotice(model.Notice{Severity: model.SeveritySuccess, Summary: "Exported", Detail: path, Life: m.cfg.NoticeLife()})
}

// exportFileName derives a file name from the metric.
func exportFileName(metric string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, metric)
	if name == "" {
		name = "chart"
	}
	return "chart-" + name + ".svg"
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS PANEL
// ══════════════════════════════════════════════════════════════════════════════

func (m *Model) resizeStats() {
	w, h := m.rightPaneSize()
	m.stats.Width = w
	m.stats.Height = h
	if m.showStats {
		m.refreshStats()
	}
}

func (m *Model) refreshStats() {
	metric := m.sess.SelectedMetric()
	md := export.RenderMarkdown(m.sess.Summary(), aggregate.Stats(m.sess.Rows(), metric), m.sess.Chart())

	w, _ := m.rightPaneSize()
	if m.mdRenderer == nil || m.mdWidth != w {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(w),
		)
		if err == nil {
			m.mdRenderer = r
			m.mdWidth = w
		}
	}
	content := md
	if m.mdRenderer != nil {
		if rendered, err := m.mdRenderer.Render(md); err == nil {
			content = strings.TrimRight(rendered, " \n\r\t")
		}
	}
	m.stats.SetContent(content)
}

// ══════════════════════════════════════════════════════════════════════════════
// LAYOUT
// ══════════════════════════════════════════════════════════════════════════════

func (m Model) bodyHeight() int {
	// header, metric tabs, toast, footer
	return max(m.height-4, 6)
}

func (m Model) leftPaneWidth() int {
	ratio := m.cfg.UI.SplitRatio
	if ratio < 0.2 || ratio > 0.8 {
		ratio = 0.35
	}
	return max(int(float64(m.width)*ratio), 30)
}

// rightPaneSize is the inner size of the chart panel.
func (m Model) rightPaneSize() (int, int) {
	w := m.width - m.leftPaneWidth() - 4
	h := m.bodyHeight() - 2
	return max(w, 20), max(h, 4)
}

func (m Model) tableHeight() int {
	return max(m.bodyHeight()-3, 1)
}

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()
	if m.quitting {
		return ""
	}

	header := m.renderHeader()
	tabs := m.renderMetricTabs()

	var body string
	if m.prompt != nil {
		body = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center,
			FocusedPanelStyle.Padding(1, 2).Render(m.prompt.View()))
	} else {
		leftW := m.leftPaneWidth()
		left := PanelStyle.
			Width(leftW - 2).
			Height(m.bodyHeight() - 2).
			Render(m.table.render(leftW-2, m.bodyHeight()-2, m.theme))

		rw, rh := m.rightPaneSize()
		data := m.sess.Chart()
		var right string
		if m.showStats {
			right = m.stats.View()
		} else {
			legend := m.renderLegend(data, rw)
			plotH := rh
			if legend != "" {
				plotH -= lipgloss.Height(legend)
			}
			right = RenderPlot(data, rw, plotH, m.theme)
			if legend != "" {
				right = lipgloss.JoinVertical(lipgloss.Left, right, legend)
			}
		}
		right = FocusedPanelStyle.Width(rw).Height(rh).Render(right)
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		tabs,
		body,
		m.renderToast(),
		m.help.ShortHelpView(m.keys.ShortHelp()),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.Header.Render("ev")
	snap := m.sess.Snapshot()

	parts := []string{}
	if snap.Source != "" {
		parts = append(parts, snap.Source)
	}
	parts = append(parts, fmt.Sprintf("%d rows", snap.Rows), fmt.Sprintf("%d experiments", len(snap.Experiments)))
	if !m.loadedAt.IsZero() {
		parts = append(parts, "loaded "+FormatTimeRel(m.loadedAt))
	}
	if m.watcher != nil {
		parts = append(parts, "watching")
	}
	info := m.theme.SecondaryText.Render(" " + strings.Join(parts, " · "))

	status := ""
	switch {
	case snap.Loading:
		status = " " + m.spinner.View() + " parsing…"
	case snap.ChartLoading:
		status = " " + m.spinner.View() + " updating chart…"
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(title + info + status)
}

func (m Model) renderMetricTabs() string {
	opts := m.sess.MetricOptions()
	current := m.sess.SelectedMetric()
	if len(opts) == 0 {
		return m.theme.MutedText.Render("metric: " + current)
	}
	tabs := make([]string, 0, len(opts))
	for _, o := range opts {
		tabs = append(tabs, RenderMetricTab(o.Label, o.Value == current))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(tabs, " "))
}

func (m Model) renderLegend(data model.ChartData, width int) string {
	if data.IsEmpty() {
		return ""
	}
	items := make([]string, 0, len(data.Datasets))
	for _, ds := range data.Datasets {
		items = append(items, m.theme.Swatch(ds.BorderColor)+" "+truncate(ds.Label, 28))
	}
	var lines []string
	line := ""
	for _, it := range items {
		if line != "" && lipgloss.Width(line)+2+lipgloss.Width(it) > width {
			lines = append(lines, line)
			line = ""
		}
		if line != "" {
			line += "  "
		}
		line += it
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func (m Model) renderToast() string {
	if m.notice == nil {
		return ""
	}
	text := m.notice.Summary
	if m.notice.Detail != "" {
		text += ": " + m.notice.Detail
	}
	style := m.theme.Renderer.NewStyle().Foreground(m.theme.NoticeColor(m.notice.Severity))
	return RenderNoticeBadge(m.notice.Severity) + " " + style.Render(truncate(text, m.width-6))
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST ACCESSORS
// ══════════════════════════════════════════════════════════════════════════════

// Cursor returns the table cursor position.
func (m Model) Cursor() int { return m.table.cursor }

// Notice returns the visible toast, if any.
func (m Model) Notice() *model.Notice { return m.notice }

// ShowingStats reports whether the stats panel is open.
func (m Model) ShowingStats() bool { return m.showStats }

// PromptOpen reports whether the open-file prompt is showing.
func (m Model) PromptOpen() bool { return m.prompt != nil }
