package arena

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/llm"
	"github.com/ahrav/go-arena/internal/llm/retry"
)

// AnswerCollector asks both backends to answer the same question list.
type AnswerCollector struct {
	client   llm.Generator
	backendA domain.Backend
	backendB domain.Backend
	policy   retry.Policy
	logger   *slog.Logger
}

// NewAnswerCollector creates a collector for the two arena backends.
func NewAnswerCollector(client llm.Generator, backendA, backendB domain.Backend, policy retry.Policy) *AnswerCollector {
	return &AnswerCollector{
		client:   client,
		backendA: backendA,
		backendB: backendB,
		policy:   policy,
		logger:   slog.Default().With("component", "answer_collector"),
	}
}

// Collect asks one backend to answer questions. Records come back in the
// backend's order, which need not match questions.
func (c *AnswerCollector) Collect(
	ctx context.Context,
	backend domain.Backend,
	questions []string,
	content string,
) ([]domain.AnswerRecord, error) {
	req := llm.StructuredRequest{
		Backend:      backend,
		SystemPrompt: answerSystemPrompt(content),
		UserPrompt:   answerUserPrompt(questions),
		Schema:       llm.AnswerListSchema,
	}

	res, err := retry.Do(ctx, c.policy, "collect_answers", func(ctx context.Context) (*llm.StructuredResult, error) {
		return c.client.Generate(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	list, err := llm.Decode[llm.AnswerList](res)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AnswerRecord, 0, len(list.Questions))
	for _, qa := range list.Questions {
		out = append(out, domain.AnswerRecord{Question: qa.Question, Answer: qa.Answer})
	}
	return out, nil
}

// CollectAnswers queries both backends concurrently. A backend that fails
// contributes a sentinel answer for every question plus a BackendFailure
// entry; it never aborts the other backend.
func (c *AnswerCollector) CollectAnswers(
	ctx context.Context,
	questions []string,
	content string,
) (answersA, answersB []domain.AnswerRecord, failures []domain.BackendFailure) {
	var (
		wg           sync.WaitGroup
		failA, failB *domain.BackendFailure
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		answersA, failA = c.CollectSettled(ctx, c.backendA, questions, content)
	}()
	go func() {
		defer wg.Done()
		answersB, failB = c.CollectSettled(ctx, c.backendB, questions, content)
	}()
	wg.Wait()

	for _, f := range []*domain.BackendFailure{failA, failB} {
		if f != nil {
			failures = append(failures, *f)
		}
	}
	return answersA, answersB, failures
}

// CollectSettled is Collect for one backend with failure substitution: a
// failed call yields a sentinel answer per question and a BackendFailure.
func (c *AnswerCollector) CollectSettled(
	ctx context.Context,
	backend domain.Backend,
	questions []string,
	content string,
) ([]domain.AnswerRecord, *domain.BackendFailure) {
	answers, err := c.Collect(ctx, backend, questions, content)
	return c.settle(ctx, backend, questions, answers, err)
}

// settle substitutes sentinel answers when a backend call failed.
func (c *AnswerCollector) settle(
	ctx context.Context,
	backend domain.Backend,
	questions []string,
	answers []domain.AnswerRecord,
	err error,
) ([]domain.AnswerRecord, *domain.BackendFailure) {
	if err == nil {
		return answers, nil
	}

	c.logger.WarnContext(ctx, "backend failed to answer; substituting sentinels",
		"backend", backend.Name,
		"role", backend.Role,
		"questions", len(questions),
		"error", fmt.Errorf("%w: %w", ErrPartialBackendFailure, err))

	return FailedAnswers(backend, questions, err.Error()), &domain.BackendFailure{
		Role:    backend.Role,
		Backend: backend.Name,
		Message: err.Error(),
	}
}

// FailedAnswers builds the sentinel answer set for a backend whose call
// failed with the given error text.
func FailedAnswers(backend domain.Backend, questions []string, errText string) []domain.AnswerRecord {
	msg := CallFailedAnswer(backend.Name, errText)
	out := make([]domain.AnswerRecord, len(questions))
	for i, q := range questions {
		out[i] = domain.AnswerRecord{Question: q, Answer: msg}
	}
	return out
}

// CallFailedAnswer is the sentinel text for a failed backend call.
func CallFailedAnswer(backendName, errText string) string {
	return fmt.Sprintf("%s call failed. Error: %s", backendName, errText)
}

// MissingAnswer is the sentinel text for a question a backend did not answer.
func MissingAnswer(backendName string) string {
	return fmt.Sprintf("%s failed to answer this question.", backendName)
}
