package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/pkg/activity"
	"github.com/ahrav/go-arena/pkg/events"
)

const (
	eventSource  = "generation-activity"
	eventVersion = "1.0.0"
)

type questionsGeneratedEvent struct {
	Backend   string `json:"backend"`
	Requested int    `json:"requested"`
	Generated int    `json:"generated"`
}

type answersCollectedEvent struct {
	Backend   string             `json:"backend"`
	Role      domain.BackendRole `json:"role"`
	Questions int                `json:"questions"`
	Answers   int                `json:"answers"`
}

type backendFailedEvent struct {
	domain.BackendFailure
	Questions int `json:"questions"`
}

// EventEmitter builds generation envelopes and hands them to the base
// activities for best-effort delivery.
type EventEmitter struct {
	base activity.BaseActivities
	now  func() time.Time
}

// NewEventEmitter returns an emitter over base.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base, now: time.Now}
}

// IdempotencyKey is stable across activity retries of the same step.
func IdempotencyKey(wfCtx activity.WorkflowContext, arenaRunID, eventType, discriminator string) string {
	return fmt.Sprintf("%s/%s/%s/%s", wfCtx.WorkflowID, arenaRunID, eventType, discriminator)
}

// EmitQuestionsGenerated reports the size of the generated question set.
func (e *EventEmitter) EmitQuestionsGenerated(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	arenaRunID string,
	backend domain.Backend,
	requested, generated int,
) {
	e.emit(ctx, wfCtx, arenaRunID, events.TypeQuestionsGenerated, string(backend.Role), questionsGeneratedEvent{
		Backend:   backend.Name,
		Requested: requested,
		Generated: generated,
	})
}

// EmitAnswersCollected reports a successful answer call.
func (e *EventEmitter) EmitAnswersCollected(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	arenaRunID string,
	backend domain.Backend,
	questions, answers int,
) {
	e.emit(ctx, wfCtx, arenaRunID, events.TypeAnswersCollected, string(backend.Role), answersCollectedEvent{
		Backend:   backend.Name,
		Role:      backend.Role,
		Questions: questions,
		Answers:   answers,
	})
}

// EmitBackendFailed reports a backend whose answers were replaced by sentinels.
func (e *EventEmitter) EmitBackendFailed(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	arenaRunID string,
	failure domain.BackendFailure,
	questions int,
) {
	e.emit(ctx, wfCtx, arenaRunID, events.TypeBackendFailed, string(failure.Role), backendFailedEvent{
		BackendFailure: failure,
		Questions:      questions,
	})
}

func (e *EventEmitter) emit(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	arenaRunID, eventType, discriminator string,
	payload any,
) {
	raw, err := json.Marshal(payload)
	if err != nil {
		activity.SafeLogError(ctx, "failed to marshal event", "event_type", eventType, "error", err)
		return
	}

	e.base.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.NewString(),
		Type:           eventType,
		Source:         eventSource,
		Version:        eventVersion,
		Timestamp:      e.now().UTC(),
		IdempotencyKey: IdempotencyKey(wfCtx, arenaRunID, eventType, discriminator),
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		ArenaRunID:     arenaRunID,
		Payload:        raw,
	}, eventType)
}
