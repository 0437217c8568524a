package publishers

import (
	"context"

	"github.com/Adda-Baaj/khobor-digest/internal/logger"
)

// Logger is the structured logger publishers write to.
type Logger = logger.Logger

func ensureLogger(log Logger) Logger {
	return logger.Ensure(log)
}

// SummaryEvent announces a summary that was just stored.
type SummaryEvent struct {
	TaskID   string `json:"task_id,omitempty"`
	Category string `json:"category"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	Date     string `json:"date"`
}

// attributes are the routing attributes attached to queue messages.
func (e SummaryEvent) attributes() map[string]string {
	return map[string]string{
		"category": e.Category,
		"date":     e.Date,
	}
}

// Publisher delivers summary events to one destination.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt SummaryEvent) error
}
