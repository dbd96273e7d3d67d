package workflow

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/generation"
)

// Application error types returned by ArenaWorkflow.
const (
	ErrorTypeValidation = "Validation"
	ErrorTypeRunFailure = "RunFailure"
)

// DefaultActivityTimeout bounds each backend activity when the input leaves
// ActivityTimeout unset.
const DefaultActivityTimeout = 5 * time.Minute

// ArenaWorkflowInput starts one arena run. Backends identify the two sides
// for naming and sentinels; their credentials stay on the worker.
type ArenaWorkflowInput struct {
	Input    domain.ArenaInput `json:"input"`
	BackendA domain.Backend    `json:"backend_a"`
	BackendB domain.Backend    `json:"backend_b"`

	// Seed fixes the left/right assignment. Nil draws one as a side effect.
	Seed *uint64 `json:"seed,omitempty"`

	ActivityTimeout time.Duration `json:"activity_timeout,omitempty"`
}

// Validate checks the request and both backend identities.
func (in *ArenaWorkflowInput) Validate() error {
	if err := in.Input.Validate(); err != nil {
		return err
	}
	if in.BackendA.Role != domain.RoleA || in.BackendB.Role != domain.RoleB {
		return fmt.Errorf("%w: backends must hold roles A and B", domain.ErrInvalidBackend)
	}
	for _, b := range []domain.Backend{in.BackendA, in.BackendB} {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	if in.ActivityTimeout < 0 {
		return fmt.Errorf("%w: negative activity timeout", domain.ErrInvalidInput)
	}
	return nil
}

// ArenaWorkflow generates questions on backend A, collects answers from both
// backends in parallel, aligns them by question and randomizes presentation.
//
// A question generation failure fails the workflow with a RunFailure
// application error. A backend that fails to answer is recorded on the run's
// Failures and contributes sentinel answers.
func ArenaWorkflow(ctx workflow.Context, in ArenaWorkflowInput) (*domain.ArenaRun, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "arena.v", workflow.DefaultVersion, currentVersion)

	if err := in.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid arena request", ErrorTypeValidation, err)
	}

	timeout := in.ActivityTimeout
	if timeout == 0 {
		timeout = DefaultActivityTimeout
	}
	// Backend calls retry inside the activities under their retry.Policy.
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	logger := workflow.GetLogger(ctx)

	var runID string
	if err := workflow.SideEffect(ctx, func(workflow.Context) any {
		return uuid.NewString()
	}).Get(&runID); err != nil {
		return nil, err
	}

	seed, err := runSeed(ctx, in.Seed)
	if err != nil {
		return nil, err
	}

	run := &domain.ArenaRun{
		ID:        runID,
		BackendA:  in.BackendA,
		BackendB:  in.BackendB,
		CreatedAt: workflow.Now(ctx).UTC(),
	}

	var acts *generation.Activities
	var questions generation.QuestionsOutput
	err = workflow.ExecuteActivity(ctx, acts.GenerateQuestions, generation.QuestionsInput{
		ArenaRunID:        runID,
		DocumentContent:   in.Input.DocumentContent,
		NumQuestions:      in.Input.NumQuestions,
		QuestionDirection: in.Input.QuestionDirection,
	}).Get(ctx, &questions)
	if err != nil {
		if temporal.IsCanceledError(err) {
			return nil, err
		}
		logger.Error("question generation failed", "arena_run_id", runID, "backend", in.BackendA.Name, "error", err)
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("arena run failed at %s (%s)", arena.StageQuestions, in.BackendA.Name),
			ErrorTypeRunFailure,
			err,
		)
	}

	qs := questions.Questions
	if qs == nil {
		qs = []string{}
	}
	run.Questions = domain.QuestionSet(qs)
	if len(qs) == 0 {
		logger.Info("backend returned no questions; run is empty", "arena_run_id", runID)
		run.Units = []domain.ComparisonUnit{}
		return run, nil
	}

	// Both activities are scheduled before either is awaited.
	futureA := workflow.ExecuteActivity(ctx, acts.CollectAnswers, generation.AnswersInput{
		ArenaRunID: runID, Role: domain.RoleA, Questions: qs, DocumentContent: in.Input.DocumentContent,
	})
	futureB := workflow.ExecuteActivity(ctx, acts.CollectAnswers, generation.AnswersInput{
		ArenaRunID: runID, Role: domain.RoleB, Questions: qs, DocumentContent: in.Input.DocumentContent,
	})

	answersA, failA, err := awaitAnswers(ctx, futureA, in.BackendA, qs)
	if err != nil {
		return nil, err
	}
	answersB, failB, err := awaitAnswers(ctx, futureB, in.BackendB, qs)
	if err != nil {
		return nil, err
	}
	for _, f := range []*domain.BackendFailure{failA, failB} {
		if f != nil {
			run.Failures = append(run.Failures, *f)
		}
	}

	units := arena.Reconcile(qs, answersA, answersB, in.BackendA, in.BackendB)
	run.Units = arena.NewRandomizer(seed).Randomize(units)

	if err := run.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("assembled run is invalid", ErrorTypeRunFailure, err)
	}

	logger.Info("arena run ready",
		"arena_run_id", runID,
		"questions", len(qs),
		"degraded", run.Degraded())
	return run, nil
}

// awaitAnswers resolves one CollectAnswers future. An activity that failed
// outright (timeout, worker loss) is treated like a failed backend call.
func awaitAnswers(
	ctx workflow.Context,
	f workflow.Future,
	backend domain.Backend,
	questions []string,
) ([]domain.AnswerRecord, *domain.BackendFailure, error) {
	var out generation.AnswersOutput
	err := f.Get(ctx, &out)
	if err == nil {
		return out.Answers, out.Failure, nil
	}
	if temporal.IsCanceledError(err) {
		return nil, nil, err
	}

	workflow.GetLogger(ctx).Warn("answer activity failed; substituting sentinels",
		"backend", backend.Name,
		"error", err)
	msg := err.Error()
	var actErr *temporal.ActivityError
	if errors.As(err, &actErr) && actErr.Unwrap() != nil {
		msg = actErr.Unwrap().Error()
	}
	return arena.FailedAnswers(backend, questions, msg), &domain.BackendFailure{
		Role:    backend.Role,
		Backend: backend.Name,
		Message: msg,
	}, nil
}

func runSeed(ctx workflow.Context, fixed *uint64) (uint64, error) {
	if fixed != nil {
		return *fixed, nil
	}
	var seed uint64
	err := workflow.SideEffect(ctx, func(workflow.Context) any {
		return rand.Uint64()
	}).Get(&seed)
	return seed, err
}
