package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/expview/pkg/config"
	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/session"
	"github.com/vanderheijden86/expview/pkg/testutil"
)

func newTestModel(t *testing.T, rows []model.Row) Model {
	t.Helper()
	m := NewModel(config.DefaultConfig(), session.WithQuietPeriod(10*time.Millisecond))
	t.Cleanup(m.Session().Close)
	if rows != nil {
		m = m.Load(rows, "runs.csv")
	}
	return m
}

func press(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		updated, _ := m.Update(msg)
		var ok bool
		m, ok = updated.(Model)
		if !ok {
			t.Fatalf("Update returned %T, want Model", updated)
		}
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keySpace = tea.KeyMsg{Type: tea.KeySpace}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
)

func waitForChart(t *testing.T, s *session.Session, datasets int) model.ChartData {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c := s.Chart()
		if len(c.Datasets) == datasets && !s.ChartLoading() {
			return c
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("chart never reached %d datasets (have %d)", datasets, len(s.Chart().Datasets))
	return model.ChartData{}
}

func TestModel_CursorClamped(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(3, 4))

	m = press(t, m, keyDown, keyDown, keyDown, keyDown)
	if m.Cursor() != 2 {
		t.Errorf("cursor = %d, want 2", m.Cursor())
	}
	m = press(t, m, keyUp)
	if m.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", m.Cursor())
	}
	m = press(t, m, keyUp, keyUp, keyUp)
	if m.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", m.Cursor())
	}
}

func TestModel_ToggleSelection(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(3, 4))

	m = press(t, m, keySpace, keyDown, keySpace)
	got := m.Session().Selection().IDs()
	if strings.Join(got, ",") != "exp_1,exp_2" {
		t.Fatalf("selection = %v, want [exp_1 exp_2]", got)
	}

	m = press(t, m, keySpace)
	got = m.Session().Selection().IDs()
	if strings.Join(got, ",") != "exp_1" {
		t.Fatalf("selection after untoggle = %v, want [exp_1]", got)
	}

	chart := waitForChart(t, m.Session(), 1)
	testutil.AssertDatasetLabels(t, chart, "exp_1 - loss")
}

func TestModel_SelectAllAndClear(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(3, 4))

	m = press(t, m, runes("a"))
	if n := len(m.Session().Selection().Experiments); n != 3 {
		t.Fatalf("expected 3 selected, got %d", n)
	}
	waitForChart(t, m.Session(), 3)

	m = press(t, m, runes("c"))
	if n := len(m.Session().Selection().Experiments); n != 0 {
		t.Fatalf("expected empty selection, got %d", n)
	}
	waitForChart(t, m.Session(), 0)
}

func TestModel_CycleMetric(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(2, 3))

	if got := m.Session().SelectedMetric(); got != "loss" {
		t.Fatalf("initial metric = %q, want loss", got)
	}
	m = press(t, m, keyTab)
	if got := m.Session().SelectedMetric(); got != "accuracy" {
		t.Errorf("after tab metric = %q, want accuracy", got)
	}
	m = press(t, m, keyTab)
	if got := m.Session().SelectedMetric(); got != "loss" {
		t.Errorf("tab should wrap, got %q", got)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if got := m.Session().SelectedMetric(); got != "accuracy" {
		t.Errorf("shift+tab should wrap backwards, got %q", got)
	}
}

func TestModel_CycleMetric_NoOptions(t *testing.T) {
	m := newTestModel(t, nil)
	m = press(t, m, keyTab)
	if got := m.Session().SelectedMetric(); got != "loss" {
		t.Errorf("metric without data = %q, want fallback loss", got)
	}
}

func TestModel_StatsToggle(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(2, 3))

	m = press(t, m, runes("s"))
	if !m.ShowingStats() {
		t.Fatal("expected stats panel open")
	}
	if v := m.View(); v == "" {
		t.Error("expected stats view to render")
	}
	m = press(t, m, runes("s"))
	if m.ShowingStats() {
		t.Error("expected stats panel closed")
	}
}

func TestModel_OpenPrompt(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(2, 3))

	m = press(t, m, runes("o"))
	if !m.PromptOpen() {
		t.Fatal("expected open prompt")
	}
	if !strings.Contains(m.View(), "Open experiment log") {
		t.Errorf("prompt title missing from view:\n%s", m.View())
	}

	// Keys go to the prompt while it is open.
	m = press(t, m, runes("s"))
	if m.ShowingStats() {
		t.Error("typing in the prompt should not toggle stats")
	}
}

func TestModel_NoticeExpiry(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(2, 3))

	m = press(t, m, NoticeMsg{Notice: model.Notice{
		Severity: model.SeveritySuccess,
		Summary:  "Parsed",
		Detail:   "runs.csv",
		Life:     time.Second,
	}})
	if m.Notice() == nil || m.Notice().Summary != "Parsed" {
		t.Fatalf("expected Parsed notice, got %+v", m.Notice())
	}
	if !strings.Contains(m.View(), "Parsed: runs.csv") {
		t.Error("toast missing from view")
	}

	// A stale expiry leaves the newer notice alone.
	m = press(t, m, noticeExpiredMsg{id: m.noticeID - 1})
	if m.Notice() == nil {
		t.Fatal("stale expiry removed the notice")
	}
	m = press(t, m, noticeExpiredMsg{id: m.noticeID})
	if m.Notice() != nil {
		t.Error("expected notice to expire")
	}
}

func TestModel_Reload(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(2, 3))

	m = press(t, m, reloadedMsg{rows: testutil.QuickLog(4, 3), source: "runs.csv"})
	if n := len(m.Session().Experiments()); n != 4 {
		t.Errorf("expected 4 experiments after reload, got %d", n)
	}
	if m.Notice() == nil || m.Notice().Summary != "Reloaded" {
		t.Errorf("expected Reloaded notice, got %+v", m.Notice())
	}

	m = press(t, m, reloadedMsg{err: errors.New("permission denied")})
	if m.Notice() == nil || m.Notice().Summary != "Reload failed" {
		t.Errorf("expected Reload failed notice, got %+v", m.Notice())
	}
	if n := len(m.Session().Experiments()); n != 4 {
		t.Errorf("failed reload should keep data, got %d experiments", n)
	}
}

func TestModel_View(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(3, 4))
	m = press(t, m, tea.WindowSizeMsg{Width: 120, Height: 40}, keySpace)
	m.Session().Rebuild()

	v := m.View()
	for _, want := range []string{"runs.csv", "24 rows", "3 experiments", "exp_1 - loss", "[x]"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestModel_ViewEmpty(t *testing.T) {
	m := newTestModel(t, nil)
	v := m.View()
	if !strings.Contains(v, "No experiments loaded") {
		t.Errorf("expected empty table hint:\n%s", v)
	}
	if !strings.Contains(v, "No data") {
		t.Errorf("expected empty plot placeholder:\n%s", v)
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t, testutil.QuickLog(2, 3))

	updated, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if v := updated.(Model).View(); v != "" {
		t.Errorf("expected empty view after quit, got %q", v)
	}
}

func TestExportFileName(t *testing.T) {
	tests := map[string]string{
		"loss":      "chart-loss.svg",
		"val/acc 1": "chart-val_acc_1.svg",
		"":          "chart-chart.svg",
	}
	for metric, want := range tests {
		if got := exportFileName(metric); got != want {
			t.Errorf("exportFileName(%q) = %q, want %q", metric, got, want)
		}
	}
}

func TestValidateLogPath(t *testing.T) {
	dir := t.TempDir()
	file := testutil.WriteRawFile(t, dir, "runs.csv", testutil.QuickCSV(1, 1))

	if err := validateLogPath(""); err == nil {
		t.Error("expected error for empty path")
	}
	if err := validateLogPath(dir); err == nil {
		t.Error("expected error for a directory")
	}
	if err := validateLogPath(dir + "/missing.csv"); err == nil {
		t.Error("expected error for a missing file")
	}
	if err := validateLogPath(file); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEvents(t *testing.T) {
	e := newEvents()
	e.Notify(model.Notice{Summary: "Parsed"})
	if msg, ok := waitForEvent(e)().(NoticeMsg); !ok || msg.Notice.Summary != "Parsed" {
		t.Errorf("expected NoticeMsg, got %#v", msg)
	}

	// Chart events never block, even with a full queue.
	for i := 0; i < cap(e.ch)+5; i++ {
		e.chart(model.EmptyChart())
	}
	if len(e.ch) != cap(e.ch) {
		t.Errorf("queue length = %d, want %d", len(e.ch), cap(e.ch))
	}

	e.close()
	e.close()
	e.OnLoading(true) // must not block once closed
}
