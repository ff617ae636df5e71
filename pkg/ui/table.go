package ui

import (
	"strings"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/model"
)

const (
	colIDMin = 8
	colModel = 10
	colLR    = 9
)

// tableView renders the experiments list with a cursor, selection marks
// and color swatches.
type tableView struct {
	experiments []model.Experiment
	selected    map[string]bool
	colors      *aggregate.ColorAssigner
	cursor      int
	offset      int
}

// scrollTo keeps the cursor inside a window of height rows.
func (t *tableView) scrollTo(height int) {
	if height <= 0 {
		return
	}
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+height {
		t.offset = t.cursor - height + 1
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

func (t tableView) render(width, height int, theme Theme) string {
	if len(t.experiments) == 0 {
		return theme.MutedText.Render("No experiments loaded. Press o to open a log.")
	}

	idW := max(width-colModel-colLR-8, colIDMin)
	var sb strings.Builder
	sb.WriteString(theme.SecondaryText.Render(
		"     " + fit("experiment", idW) + " " + fit("model", colModel) + " " + padLeft("lr", colLR)))
	sb.WriteByte('\n')

	rows := height - 1
	end := min(t.offset+rows, len(t.experiments))
	for i := t.offset; i < end; i++ {
		e := t.experiments[i]
		mark := "[ ]"
		if t.selected[e.ID] {
			mark = "[x]"
		}
		line := mark + " " + theme.Swatch(t.colors.Color(e.ID)) + " " +
			fit(e.ID, idW) + " " +
			fit(e.ModelType, colModel) + " " +
			padLeft(truncate(formatCell(e.LearningRate), colLR), colLR)
		if i == t.cursor {
			line = theme.Selected.Render(line)
		} else if t.selected[e.ID] {
			line = theme.Base.Render(line)
		} else {
			line = theme.MutedText.Render(line)
		}
		sb.WriteString(line)
		if i < end-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
