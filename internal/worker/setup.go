package worker

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-arena/internal/config"
	"github.com/ahrav/go-arena/internal/generation"
	"github.com/ahrav/go-arena/internal/llm"
	"github.com/ahrav/go-arena/pkg/activity"
	"github.com/ahrav/go-arena/pkg/events"
)

// InitializeLLMClient builds the structured generation client from cfg.
func InitializeLLMClient(cfg *config.Config) (*llm.Client, error) {
	c, err := llm.NewClient(cfg.LLM())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return c, nil
}

// InitializeActivities resolves both backends from cfg and builds the
// generation activities. A nil sink logs events through slog.
func InitializeActivities(cfg *config.Config, gen llm.Generator, sink events.EventSink) (*generation.Activities, error) {
	a, err := cfg.BackendA()
	if err != nil {
		return nil, err
	}
	b, err := cfg.BackendB()
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = events.NewLogEventSink(slog.Default())
	}

	return generation.NewActivities(activity.NewBaseActivities(sink), gen, generation.Config{
		BackendA:       a,
		BackendB:       b,
		QuestionPolicy: cfg.Retry.Questions,
		AnswerPolicy:   cfg.Retry.Answers,
	})
}

// Dial connects to the Temporal frontend named in cfg.
func Dial(cfg config.Temporal, logger *slog.Logger) (client.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dialing temporal at %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

// New creates a worker on cfg's task queue with everything registered.
func New(c client.Client, cfg config.Temporal, acts *generation.Activities) sdkworker.Worker {
	w := sdkworker.New(c, cfg.TaskQueue, sdkworker.Options{})
	RegisterAll(w, acts)
	return w
}
