package model

import "time"

// Severity classifies a user-facing notice.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarn    Severity = "warn"
	SeverityError   Severity = "error"
)

// DefaultNoticeLife is how long a notice stays visible unless configured.
const DefaultNoticeLife = 3 * time.Second

// Notice is a toast-style notification for the presentation layer.
type Notice struct {
	Severity Severity      `json:"severity"`
	Summary  string        `json:"summary"`
	Detail   string        `json:"detail"`
	Life     time.Duration `json:"-"`
}

// LifeMillis returns the display duration in milliseconds.
func (n Notice) LifeMillis() int64 { return n.Life.Milliseconds() }
