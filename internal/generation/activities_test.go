package generation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/llm"
	"github.com/ahrav/go-arena/pkg/activity"
	"github.com/ahrav/go-arena/pkg/events"
)

var (
	backendA = domain.Backend{Role: domain.RoleA, Name: "Alpha", Endpoint: "http://a.local/v1", Model: "a", Credential: "key-a"}
	backendB = domain.Backend{Role: domain.RoleB, Name: "Beta", Endpoint: "http://b.local/v1", Model: "b"}
)

type fakeReply struct {
	raw string
	err error
}

// fakeGenerator answers by backend name and schema.
type fakeGenerator struct {
	questions fakeReply
	answers   map[string]fakeReply
	calls     atomic.Int32
	lastReq   atomic.Pointer[llm.StructuredRequest]
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.StructuredRequest) (*llm.StructuredResult, error) {
	g.calls.Add(1)
	g.lastReq.Store(&req)
	r := g.questions
	if req.Schema == llm.AnswerListSchema {
		r = g.answers[req.Backend.Name]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llm.StructuredResult{Raw: r.raw}, nil
}

// capturingSink records every appended envelope.
type capturingSink struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (s *capturingSink) Append(_ context.Context, e events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *capturingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestActivities(t *testing.T, gen llm.Generator) (*Activities, *capturingSink) {
	t.Helper()
	sink := &capturingSink{}
	acts, err := NewActivities(activity.NewBaseActivities(sink), gen, Config{BackendA: backendA, BackendB: backendB})
	require.NoError(t, err)
	return acts, sink
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestNewActivities_RejectsBadBackends(t *testing.T) {
	base := activity.NewBaseActivities(nil)

	_, err := NewActivities(base, &fakeGenerator{}, Config{BackendA: backendB, BackendB: backendA})
	assert.ErrorIs(t, err, domain.ErrInvalidBackend)

	bad := backendB
	bad.Model = ""
	_, err = NewActivities(base, &fakeGenerator{}, Config{BackendA: backendA, BackendB: bad})
	assert.ErrorIs(t, err, domain.ErrInvalidBackend)
}

func TestGenerateQuestions(t *testing.T) {
	gen := &fakeGenerator{questions: fakeReply{raw: mustJSON(t, map[string]any{"questions": []string{"q1", "q2", "q3"}})}}
	acts, sink := newTestActivities(t, gen)

	out, err := acts.GenerateQuestions(context.Background(), QuestionsInput{
		ArenaRunID:      "run-1",
		DocumentContent: "Some document.",
		NumQuestions:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2"}, out.Questions)
	assert.Equal(t, "Alpha", out.Backend)
	assert.Equal(t, "key-a", gen.lastReq.Load().Backend.Credential)

	require.Len(t, sink.events, 1)
	e := sink.events[0]
	assert.Equal(t, events.TypeQuestionsGenerated, e.Type)
	assert.Equal(t, "run-1", e.ArenaRunID)
	assert.JSONEq(t, `{"backend":"Alpha","requested":2,"generated":2}`, string(e.Payload))
}

func TestGenerateQuestions_Empty(t *testing.T) {
	gen := &fakeGenerator{questions: fakeReply{raw: `{"questions":[]}`}}
	acts, _ := newTestActivities(t, gen)

	out, err := acts.GenerateQuestions(context.Background(), QuestionsInput{ArenaRunID: "r", DocumentContent: "d", NumQuestions: 5})
	require.NoError(t, err)
	assert.Empty(t, out.Questions)
	assert.NotNil(t, out.Questions)
}

func TestGenerateQuestions_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    QuestionsInput
		reply    fakeReply
		wantType string
		wantCall bool
	}{
		{
			name:     "missing document",
			input:    QuestionsInput{ArenaRunID: "r", NumQuestions: 1},
			wantType: ErrorTypeValidation,
		},
		{
			name:     "too many questions",
			input:    QuestionsInput{ArenaRunID: "r", DocumentContent: "d", NumQuestions: 101},
			wantType: ErrorTypeValidation,
		},
		{
			name:     "missing run id",
			input:    QuestionsInput{DocumentContent: "d", NumQuestions: 1},
			wantType: ErrorTypeValidation,
		},
		{
			name:     "backend failure",
			input:    QuestionsInput{ArenaRunID: "r", DocumentContent: "d", NumQuestions: 1},
			reply:    fakeReply{err: errors.New("connection refused")},
			wantType: ErrorTypeBackend,
			wantCall: true,
		},
		{
			name:     "malformed reply",
			input:    QuestionsInput{ArenaRunID: "r", DocumentContent: "d", NumQuestions: 1},
			reply:    fakeReply{raw: `not json`},
			wantType: ErrorTypeBackend,
			wantCall: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{questions: tt.reply}
			acts, sink := newTestActivities(t, gen)

			_, err := acts.GenerateQuestions(context.Background(), tt.input)
			require.Error(t, err)

			var appErr *temporal.ApplicationError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantType, appErr.Type())
			assert.True(t, appErr.NonRetryable())
			assert.Equal(t, tt.wantCall, gen.calls.Load() > 0)
			assert.Empty(t, sink.events)
		})
	}
}

func TestCollectAnswers(t *testing.T) {
	questions := []string{"q1", "q2"}
	gen := &fakeGenerator{answers: map[string]fakeReply{
		"Beta": {raw: mustJSON(t, map[string]any{"questions": []map[string]string{
			{"question": "q2", "answer": "two"},
			{"question": "q1", "answer": "one"},
		}})},
	}}
	acts, sink := newTestActivities(t, gen)

	out, err := acts.CollectAnswers(context.Background(), AnswersInput{
		ArenaRunID:      "run-1",
		Role:            domain.RoleB,
		Questions:       questions,
		DocumentContent: "doc",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Failure)
	assert.Equal(t, domain.RoleB, out.Role)
	assert.Equal(t, []domain.AnswerRecord{{Question: "q2", Answer: "two"}, {Question: "q1", Answer: "one"}}, out.Answers)
	assert.Equal(t, []string{events.TypeAnswersCollected}, sink.types())
}

// TestCollectAnswers_BackendFailure checks a failed call comes back as data,
// not as an activity error.
func TestCollectAnswers_BackendFailure(t *testing.T) {
	questions := []string{"q1", "q2", "q3"}
	gen := &fakeGenerator{answers: map[string]fakeReply{"Beta": {err: errors.New("connection refused")}}}
	acts, sink := newTestActivities(t, gen)

	out, err := acts.CollectAnswers(context.Background(), AnswersInput{
		ArenaRunID:      "run-1",
		Role:            domain.RoleB,
		Questions:       questions,
		DocumentContent: "doc",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, domain.BackendFailure{Role: domain.RoleB, Backend: "Beta", Message: "connection refused"}, *out.Failure)
	require.Len(t, out.Answers, 3)
	for i, a := range out.Answers {
		assert.Equal(t, questions[i], a.Question)
		assert.Equal(t, arena.CallFailedAnswer("Beta", "connection refused"), a.Answer)
	}

	require.Equal(t, []string{events.TypeBackendFailed}, sink.types())
	assert.Contains(t, string(sink.events[0].Payload), `"message":"connection refused"`)
}

func TestCollectAnswers_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input AnswersInput
	}{
		{"no questions", AnswersInput{ArenaRunID: "r", Role: domain.RoleA, DocumentContent: "d"}},
		{"bad role", AnswersInput{ArenaRunID: "r", Role: "C", Questions: []string{"q"}, DocumentContent: "d"}},
		{"no document", AnswersInput{ArenaRunID: "r", Role: domain.RoleA, Questions: []string{"q"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			acts, _ := newTestActivities(t, gen)

			_, err := acts.CollectAnswers(context.Background(), tt.input)
			var appErr *temporal.ApplicationError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, ErrorTypeValidation, appErr.Type())
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, gen.calls.Load())
		})
	}
}

func TestCollectAnswers_Cancelled(t *testing.T) {
	gen := &fakeGenerator{answers: map[string]fakeReply{"Alpha": {err: context.Canceled}}}
	acts, sink := newTestActivities(t, gen)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := acts.CollectAnswers(ctx, AnswersInput{ArenaRunID: "r", Role: domain.RoleA, Questions: []string{"q"}, DocumentContent: "d"})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrorTypeCancelled, appErr.Type())
	assert.Empty(t, sink.events)
}

func TestIdempotencyKey_StableAcrossAttempts(t *testing.T) {
	first := activity.WorkflowContext{WorkflowID: "wf", RunID: "r1", Attempt: 1}
	second := activity.WorkflowContext{WorkflowID: "wf", RunID: "r1", Attempt: 2}
	assert.Equal(t,
		IdempotencyKey(first, "run-1", events.TypeAnswersCollected, "A"),
		IdempotencyKey(second, "run-1", events.TypeAnswersCollected, "A"))
	assert.NotEqual(t,
		IdempotencyKey(first, "run-1", events.TypeAnswersCollected, "A"),
		IdempotencyKey(first, "run-1", events.TypeAnswersCollected, "B"))
}
