package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/expview/pkg/model"
)

// NoticeMsg carries an upload or reload notice to the toast line.
type NoticeMsg struct{ Notice model.Notice }

// LoadingMsg reports an upload starting or finishing.
type LoadingMsg struct{ Loading bool }

// ChartMsg carries a freshly built chart.
type ChartMsg struct{ Chart model.ChartData }

// events turns session callbacks, which arrive on other goroutines, into
// Bubble Tea messages. It implements loader.Notifier.
type events struct {
	ch   chan tea.Msg
	done chan struct{}
}

func newEvents() *events {
	return &events{
		ch:   make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

func (e *events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

func (e *events) Notify(n model.Notice)  { e.send(NoticeMsg{Notice: n}) }
func (e *events) OnLoading(loading bool) { e.send(LoadingMsg{Loading: loading}) }

// chart only triggers a redraw, so it is dropped when the queue is full.
func (e *events) chart(c model.ChartData) {
	select {
	case e.ch <- ChartMsg{Chart: c}:
	default:
	}
}

func (e *events) close() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

// waitForEvent returns the next session event.
func waitForEvent(e *events) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}
