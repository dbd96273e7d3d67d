package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/domain"
)

// Starter is the part of client.Client the pipeline needs.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow any, args ...any) (client.WorkflowRun, error)
}

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	TaskQueue string
	BackendA  domain.Backend
	BackendB  domain.Backend

	// Seed, when set, fixes presentation for every run.
	Seed *uint64

	ActivityTimeout time.Duration
}

// Pipeline runs arenas as ArenaWorkflow executions and waits for the result.
// It has the same contract as arena.Runner.Run.
type Pipeline struct {
	client Starter
	cfg    PipelineConfig
	logger *slog.Logger
}

// NewPipeline returns a pipeline that starts workflows through c.
func NewPipeline(c Starter, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		client: c,
		cfg:    cfg,
		logger: slog.Default().With("component", "temporal_pipeline"),
	}
}

// Run starts an ArenaWorkflow for input and blocks until it completes.
// Workflow failures are translated back to the in-process error contract:
// invalid requests match domain.ErrInvalidInput and question generation
// failures are *arena.RunError.
func (p *Pipeline) Run(ctx context.Context, input domain.ArenaInput) (*domain.ArenaRun, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	workflowID := "arena-" + uuid.NewString()
	logger := p.logger.With("workflow_id", workflowID)

	wr, err := p.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: p.cfg.TaskQueue,
	}, ArenaWorkflow, ArenaWorkflowInput{
		Input:           input,
		BackendA:        p.cfg.BackendA,
		BackendB:        p.cfg.BackendB,
		Seed:            p.cfg.Seed,
		ActivityTimeout: p.cfg.ActivityTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("starting arena workflow: %w", err)
	}
	logger.InfoContext(ctx, "arena workflow started", "task_queue", p.cfg.TaskQueue)

	var run domain.ArenaRun
	if err := wr.Get(ctx, &run); err != nil {
		logger.ErrorContext(ctx, "arena workflow failed", "error", err)
		return nil, p.translate(err)
	}
	return &run, nil
}

func (p *Pipeline) translate(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return err
	}
	switch appErr.Type() {
	case ErrorTypeValidation:
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	case ErrorTypeRunFailure:
		return &arena.RunError{Stage: arena.StageQuestions, Backend: p.cfg.BackendA.Name, Err: err}
	default:
		return err
	}
}
