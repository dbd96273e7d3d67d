// Package events defines the envelope arena activities wrap their
// notifications in and the sink interface that receives them.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Event types emitted by the arena pipeline.
const (
	TypeQuestionsGenerated = "arena.questions_generated"
	TypeAnswersCollected   = "arena.answers_collected"
	TypeBackendFailed      = "arena.backend_failed"
)

// Envelope carries one event together with its routing and correlation metadata.
type Envelope struct {
	// ID is a fresh UUID per emission.
	ID string `json:"id"`

	// Type is one of the Type* constants.
	Type string `json:"type"`

	// Source names the emitting component, e.g. "generation-activity".
	Source string `json:"source"`

	// Version of the payload schema.
	Version string `json:"version"`

	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is stable across activity retries so sinks can drop
	// duplicates.
	IdempotencyKey string `json:"idempotency_key"`

	// WorkflowID and RunID identify the Temporal execution.
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`

	// ArenaRunID is the arena run the event belongs to, when known.
	ArenaRunID string `json:"arena_run_id,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

// EventSink receives envelopes. Append should return quickly; callers treat
// failures as best effort and never fail the primary operation on them.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink returns a sink that discards events.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}

// LogEventSink writes each event as one structured log line.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink returns a sink that logs to logger, or to the default
// logger when logger is nil.
func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger.With("component", "event_sink")}
}

// Append implements EventSink.
func (s *LogEventSink) Append(ctx context.Context, e Envelope) error {
	s.logger.InfoContext(ctx, "event",
		"type", e.Type,
		"source", e.Source,
		"idempotency_key", e.IdempotencyKey,
		"workflow_id", e.WorkflowID,
		"arena_run_id", e.ArenaRunID,
		"payload", string(e.Payload))
	return nil
}
