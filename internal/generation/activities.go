package generation

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/llm"
	"github.com/ahrav/go-arena/internal/llm/retry"
	"github.com/ahrav/go-arena/pkg/activity"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// QuestionsInput is the GenerateQuestions activity input.
type QuestionsInput struct {
	ArenaRunID        string `json:"arena_run_id" validate:"required"`
	DocumentContent   string `json:"document_content" validate:"required"`
	NumQuestions      int    `json:"num_questions" validate:"min=1,max=100"`
	QuestionDirection string `json:"question_direction,omitempty"`
}

// Validate checks the activity input.
func (in *QuestionsInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// QuestionsOutput carries the generated question set in backend order.
type QuestionsOutput struct {
	Questions []string `json:"questions"`
	Backend   string   `json:"backend"`
}

// AnswersInput is the CollectAnswers activity input. Backends are addressed
// by role; the worker holds their endpoints and credentials.
type AnswersInput struct {
	ArenaRunID      string             `json:"arena_run_id" validate:"required"`
	Role            domain.BackendRole `json:"role" validate:"required,oneof=A B"`
	Questions       []string           `json:"questions" validate:"required,min=1"`
	DocumentContent string             `json:"document_content" validate:"required"`
}

// Validate checks the activity input.
func (in *AnswersInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// AnswersOutput carries one backend's answers. When the backend call failed,
// Answers holds a sentinel per question and Failure is set.
type AnswersOutput struct {
	Role    domain.BackendRole     `json:"role"`
	Answers []domain.AnswerRecord  `json:"answers"`
	Failure *domain.BackendFailure `json:"failure,omitempty"`
}

// Config wires Activities.
type Config struct {
	BackendA       domain.Backend
	BackendB       domain.Backend
	QuestionPolicy retry.Policy
	AnswerPolicy   retry.Policy
}

// Activities implements the arena generation activities.
type Activities struct {
	activity.BaseActivities
	backends  map[domain.BackendRole]domain.Backend
	questions *arena.QuestionGenerator
	answers   *arena.AnswerCollector
	events    *EventEmitter
}

// NewActivities validates both backends and builds the activities over client.
func NewActivities(base activity.BaseActivities, client llm.Generator, cfg Config) (*Activities, error) {
	if cfg.BackendA.Role != domain.RoleA || cfg.BackendB.Role != domain.RoleB {
		return nil, fmt.Errorf("%w: backends must hold roles A and B", domain.ErrInvalidBackend)
	}
	for _, b := range []domain.Backend{cfg.BackendA, cfg.BackendB} {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.QuestionPolicy.MaxAttempts == 0 {
		cfg.QuestionPolicy = retry.DefaultPolicy()
	}
	if cfg.AnswerPolicy.MaxAttempts == 0 {
		cfg.AnswerPolicy = retry.DefaultPolicy()
	}

	return &Activities{
		BaseActivities: base,
		backends: map[domain.BackendRole]domain.Backend{
			domain.RoleA: cfg.BackendA,
			domain.RoleB: cfg.BackendB,
		},
		questions: arena.NewQuestionGenerator(client, cfg.QuestionPolicy),
		answers:   arena.NewAnswerCollector(client, cfg.BackendA, cfg.BackendB, cfg.AnswerPolicy),
		events:    NewEventEmitter(base),
	}, nil
}

// GenerateQuestions asks backend A for the shared question set. An empty set
// is a successful result. Every failure is non-retryable: validation errors
// carry type Validation and backend failures type Backend.
func (a *Activities) GenerateQuestions(ctx context.Context, input QuestionsInput) (*QuestionsOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable(ErrorTypeValidation, err, "invalid questions input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	backend := a.backends[domain.RoleA]
	activity.SafeLog(ctx, "generating questions",
		"workflow_id", wfCtx.WorkflowID,
		"arena_run_id", input.ArenaRunID,
		"backend", backend.Name,
		"requested", input.NumQuestions)
	a.RecordHeartbeat(ctx, "questions")

	questions, err := a.questions.GenerateQuestions(ctx, backend, input.DocumentContent,
		input.NumQuestions, input.QuestionDirection)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nonRetryable(ErrorTypeCancelled, ctxErr, "question generation cancelled")
		}
		activity.SafeLogError(ctx, "question generation failed",
			"arena_run_id", input.ArenaRunID,
			"backend", backend.Name,
			"error", err)
		return nil, backendFailure(err)
	}

	a.events.EmitQuestionsGenerated(ctx, wfCtx, input.ArenaRunID, backend, input.NumQuestions, len(questions))
	return &QuestionsOutput{Questions: questions, Backend: backend.Name}, nil
}

// CollectAnswers asks the backend holding input.Role to answer the question
// list. A failed backend call is not an activity error: the output carries
// sentinel answers and a Failure so the other backend's results survive.
func (a *Activities) CollectAnswers(ctx context.Context, input AnswersInput) (*AnswersOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, nonRetryable(ErrorTypeValidation, err, "invalid answers input")
	}
	backend, ok := a.backends[input.Role]
	if !ok {
		return nil, nonRetryable(ErrorTypeValidation, ErrUnknownRole, fmt.Sprintf("no backend for role %q", input.Role))
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "collecting answers",
		"workflow_id", wfCtx.WorkflowID,
		"arena_run_id", input.ArenaRunID,
		"backend", backend.Name,
		"questions", len(input.Questions))
	a.RecordHeartbeat(ctx, string(input.Role))

	answers, failure := a.answers.CollectSettled(ctx, backend, input.Questions, input.DocumentContent)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nonRetryable(ErrorTypeCancelled, ctxErr, "answer collection cancelled")
	}

	if failure != nil {
		activity.SafeLogWarn(ctx, "backend failed to answer",
			"arena_run_id", input.ArenaRunID,
			"backend", backend.Name,
			"error", failure.Message)
		a.events.EmitBackendFailed(ctx, wfCtx, input.ArenaRunID, *failure, len(input.Questions))
	} else {
		a.events.EmitAnswersCollected(ctx, wfCtx, input.ArenaRunID, backend, len(input.Questions), len(answers))
	}

	return &AnswersOutput{Role: input.Role, Answers: answers, Failure: failure}, nil
}

