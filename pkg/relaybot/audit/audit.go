// Package audit records every exchange the bot takes part in: who wrote what
// where, and what the bot answered.
//
// Records are append-only. Writing is best-effort: a failing sink is logged
// and never blocks or fails message delivery.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
)

// TimeLayout is the timestamp format used in formatted records.
const TimeLayout = "2006-01-02 15:04:05"

// Record is one audited exchange.
type Record struct {
	ID               string
	Timestamp        time.Time
	Channel          string
	ConversationID   string
	ConversationName string
	ConversationKind channels.ConversationKind
	SenderID         string
	SenderName       string
	Input            string
	Output           string
}

// Sink receives formatted audit records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// Format renders rec as a multi-line text block. Each block starts with a
// blank separator line pair so consecutive records stay readable in a file.
func Format(rec Record) string {
	conv := rec.ConversationName
	if conv == "" {
		conv = rec.ConversationID
	}

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(rec.Timestamp.Format(TimeLayout))
	b.WriteString("\n")
	fmt.Fprintf(&b, "In channel: %s (type: %s)\n", conv, kindLabel(rec.ConversationKind))
	fmt.Fprintf(&b, "User: %s (ID: %s)\n", rec.SenderName, rec.SenderID)
	fmt.Fprintf(&b, "Message: %s\n", rec.Input)
	fmt.Fprintf(&b, "Bot Reply: %s\n", rec.Output)
	return b.String()
}

func kindLabel(kind channels.ConversationKind) string {
	if kind == channels.KindDirect {
		return "DM"
	}
	return "Server"
}

// Logger fans records out to every configured sink.
type Logger struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewLogger creates an audit logger writing to sinks.
func NewLogger(logger *slog.Logger, sinks ...Sink) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		sinks:  sinks,
		logger: logger.With("component", "audit"),
		now:    time.Now,
	}
}

// Record stamps rec with an ID and timestamp when missing and appends it to
// every sink. Sink errors are logged and swallowed.
func (l *Logger) Record(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}

	for _, sink := range l.sinks {
		if err := sink.Write(ctx, rec); err != nil {
			l.logger.Warn("audit sink unavailable, record dropped",
				"sink", fmt.Sprintf("%T", sink),
				"record_id", rec.ID,
				"error", err,
			)
		}
	}
}

// Close releases sinks that hold resources.
func (l *Logger) Close() error {
	var firstErr error
	for _, sink := range l.sinks {
		if c, ok := sink.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
