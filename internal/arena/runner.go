// Package arena implements the arena evaluation pipeline: question
// generation against backend A, concurrent answer collection from both
// backends, alignment of the answers by question, blind left/right
// randomization, and the judgment session the operator works through.
package arena

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/llm"
	"github.com/ahrav/go-arena/internal/llm/retry"
)

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	BackendA domain.Backend
	BackendB domain.Backend

	// QuestionPolicy and AnswerPolicy default to a single attempt.
	QuestionPolicy retry.Policy
	AnswerPolicy   retry.Policy

	// Randomizer defaults to one seeded from the current time.
	Randomizer *Randomizer

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Runner executes one arena run end to end in process.
type Runner struct {
	backendA   domain.Backend
	backendB   domain.Backend
	questions  *QuestionGenerator
	answers    *AnswerCollector
	randomizer *Randomizer
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// NewRunner validates both backends and builds a runner over client.
func NewRunner(client llm.Generator, cfg RunnerConfig) (*Runner, error) {
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
	for name, p := range map[string]retry.Policy{"questions": cfg.QuestionPolicy, "answers": cfg.AnswerPolicy} {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s retry policy: %w", name, err)
		}
	}
	if cfg.Randomizer == nil {
		cfg.Randomizer = NewRandomizer(uint64(time.Now().UnixNano()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return &Runner{
		backendA:   cfg.BackendA,
		backendB:   cfg.BackendB,
		questions:  NewQuestionGenerator(client, cfg.QuestionPolicy),
		answers:    NewAnswerCollector(client, cfg.BackendA, cfg.BackendB, cfg.AnswerPolicy),
		randomizer: cfg.Randomizer,
		now:        cfg.Now,
		newID:      cfg.NewID,
		logger:     slog.Default().With("component", "arena_runner"),
	}, nil
}

// Run executes the pipeline for input.
//
// A question generation failure aborts the run with a *RunError. Zero
// generated questions is not an error: the run is returned with no units.
// An answer collection failure on one backend is recorded on the run's
// Failures and its answers are replaced by sentinels.
func (r *Runner) Run(ctx context.Context, input domain.ArenaInput) (*domain.ArenaRun, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	run := &domain.ArenaRun{
		ID:        r.newID(),
		BackendA:  r.backendA,
		BackendB:  r.backendB,
		CreatedAt: r.now().UTC(),
	}
	logger := r.logger.With("run_id", run.ID)

	questions, err := r.questions.GenerateQuestions(ctx, r.backendA, input.DocumentContent,
		input.NumQuestions, input.QuestionDirection)
	if err != nil {
		logger.ErrorContext(ctx, "question generation failed", "backend", r.backendA.Name, "error", err)
		return nil, &RunError{Stage: StageQuestions, Backend: r.backendA.Name, Err: err}
	}
	run.Questions = domain.QuestionSet(questions)

	if len(questions) == 0 {
		logger.InfoContext(ctx, "backend returned no questions; run is empty")
		run.Units = []domain.ComparisonUnit{}
		return run, nil
	}

	answersA, answersB, failures := r.answers.CollectAnswers(ctx, questions, input.DocumentContent)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run.Failures = failures
	run.Units = r.randomizer.Randomize(Reconcile(questions, answersA, answersB, r.backendA, r.backendB))

	logger.InfoContext(ctx, "arena run ready",
		"questions", len(questions),
		"degraded", run.Degraded())
	return run, nil
}
