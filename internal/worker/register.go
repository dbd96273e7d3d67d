// Package worker wires the arena workflow and its activities into a
// Temporal worker.
package worker

import (
	"github.com/ahrav/go-arena/internal/generation"
	"github.com/ahrav/go-arena/internal/workflow"
)

// Registry is the registration subset shared by sdk workers and the test
// workflow environment.
type Registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

// RegisterAll registers ArenaWorkflow and the generation activities. Call it
// once during startup, before the worker starts polling.
func RegisterAll(r Registry, acts *generation.Activities) {
	r.RegisterWorkflow(workflow.ArenaWorkflow)

	r.RegisterActivity(acts.GenerateQuestions)
	r.RegisterActivity(acts.CollectAnswers)
}
