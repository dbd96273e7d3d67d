package arena

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/llm"
	"github.com/ahrav/go-arena/internal/llm/retry"
)

// QuestionGenerator elicits the shared question set from backend A.
type QuestionGenerator struct {
	client llm.Generator
	policy retry.Policy
	logger *slog.Logger
}

// NewQuestionGenerator creates a generator that calls client under policy.
func NewQuestionGenerator(client llm.Generator, policy retry.Policy) *QuestionGenerator {
	return &QuestionGenerator{
		client: client,
		policy: policy,
		logger: slog.Default().With("component", "question_generator"),
	}
}

// GenerateQuestions asks backend for count questions about content. The
// result keeps the backend's order and is truncated to count; it may be
// shorter, including empty. Any client failure is returned unchanged.
func (g *QuestionGenerator) GenerateQuestions(
	ctx context.Context,
	backend domain.Backend,
	content string,
	count int,
	direction string,
) ([]string, error) {
	if count < domain.MinQuestions {
		return nil, fmt.Errorf("%w: question count %d", domain.ErrInvalidInput, count)
	}

	req := llm.StructuredRequest{
		Backend:      backend,
		SystemPrompt: questionSystemPrompt(count, direction),
		UserPrompt:   questionUserPrompt(content),
		Schema:       llm.QuestionListSchema,
	}

	res, err := retry.Do(ctx, g.policy, "generate_questions", func(ctx context.Context) (*llm.StructuredResult, error) {
		return g.client.Generate(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	list, err := llm.Decode[llm.QuestionList](res)
	if err != nil {
		return nil, err
	}

	questions := list.Questions
	if len(questions) > count {
		g.logger.WarnContext(ctx, "backend returned more questions than requested",
			"backend", backend.Name,
			"requested", count,
			"returned", len(questions))
		questions = questions[:count]
	}
	if questions == nil {
		questions = []string{}
	}
	return questions, nil
}
