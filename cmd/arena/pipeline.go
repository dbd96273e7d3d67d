package main

import (
	"context"
	"fmt"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/config"
	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/worker"
	"github.com/ahrav/go-arena/internal/workflow"
)

type pipeline interface {
	Run(ctx context.Context, input domain.ArenaInput) (*domain.ArenaRun, error)
}

// buildPipeline returns the in-process runner, or a Temporal-backed pipeline
// when useTemporal is set. cleanup releases the client either way.
func buildPipeline(cfg *config.Config, useTemporal bool) (p pipeline, cleanup func(), err error) {
	a, err := cfg.BackendA()
	if err != nil {
		return nil, nil, err
	}
	b, err := cfg.BackendB()
	if err != nil {
		return nil, nil, err
	}

	if useTemporal {
		c, err := worker.Dial(cfg.Temporal, nil)
		if err != nil {
			return nil, nil, err
		}
		return workflow.NewPipeline(c, workflow.PipelineConfig{
			TaskQueue: cfg.Temporal.TaskQueue,
			BackendA:  a,
			BackendB:  b,
			Seed:      cfg.Randomization.Seed,
		}), c.Close, nil
	}

	client, err := worker.InitializeLLMClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	rc := arena.RunnerConfig{
		BackendA:       a,
		BackendB:       b,
		QuestionPolicy: cfg.Retry.Questions,
		AnswerPolicy:   cfg.Retry.Answers,
	}
	if seed := cfg.Randomization.Seed; seed != nil {
		rc.Randomizer = arena.NewRandomizer(*seed)
	}
	runner, err := arena.NewRunner(client, rc)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("building runner: %w", err)
	}
	return runner, func() { _ = client.Close() }, nil
}
