package datasource

import (
	"reflect"
	"testing"
	"time"

	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/testutil"
)

func TestDiff_AddedExperiments(t *testing.T) {
	old := testutil.QuickLog(1, 2)
	new := testutil.QuickLog(3, 2)

	d := Diff(old, new)
	if !reflect.DeepEqual(d.Added, []string{"exp_2", "exp_3"}) {
		t.Errorf("Added = %v", d.Added)
	}
	if len(d.Removed) != 0 {
		t.Errorf("Removed = %v", d.Removed)
	}
	if d.RowDelta() != 8 {
		t.Errorf("RowDelta = %d, want 8", d.RowDelta())
	}
	if got := d.Summary(); got != "Reloaded: +2 experiments" {
		t.Errorf("Summary = %q", got)
	}
}

func TestDiff_Summaries(t *testing.T) {
	single := testutil.Single()
	staggered := testutil.Staggered()
	withAcc := append(append([]model.Row{}, single...),
		testutil.MakeRow("exp_1", "cnn", 0.01, "accuracy", 1, 0.5))

	tests := []struct {
		name     string
		old, new []model.Row
		want     string
	}{
		{"unchanged", staggered, staggered, "Reloaded: no changes"},
		{"removed one", staggered, single, "Reloaded: -1 experiment"},
		{"added metric", single, withAcc, "Reloaded: +1 metric"},
		{"rows only", staggered[:3], staggered, "Reloaded: +1 row"},
		{"fewer rows", staggered, staggered[:3], "Reloaded: -1 row"},
		{"from empty", nil, staggered, "Reloaded: +2 experiments, +1 metric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Diff(tt.old, tt.new).Summary(); got != tt.want {
				t.Errorf("Summary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDiff_Notice(t *testing.T) {
	n := Diff(nil, nil).Notice(2 * time.Second)
	if n.Severity != model.SeverityInfo || n.Summary != "Reloaded" {
		t.Errorf("unexpected notice %+v", n)
	}
	if n.Detail != "Reloaded: no changes" || n.Life != 2*time.Second {
		t.Errorf("unexpected notice %+v", n)
	}
}
