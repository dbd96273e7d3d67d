package export

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-arena/internal/domain"
)

// fakeStore records saves and fails the first failN calls.
type fakeStore struct {
	mu      sync.Mutex
	failN   int32
	calls   atomic.Int32
	saved   map[string]domain.ArenaJudgmentRecord
	lastOp  domain.Operator
	saveErr error
}

func newFakeStore(failN int32) *fakeStore {
	return &fakeStore{failN: failN, saved: map[string]domain.ArenaJudgmentRecord{}, saveErr: errors.New("disk full")}
}

func (s *fakeStore) SaveJudgments(_ context.Context, records []domain.ArenaJudgmentRecord, op domain.Operator) error {
	if s.calls.Add(1) <= s.failN {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.saved[r.ID] = r
	}
	s.lastOp = op
	return nil
}

func (s *fakeStore) Close() error { return nil }

var exportTime = time.UnixMilli(1714564800123)

func newTestExporter(s *fakeStore) *Exporter {
	return NewExporter(s).WithClock(func() time.Time { return exportTime })
}

func judgedRun() *domain.ArenaRun {
	return &domain.ArenaRun{
		ID:        "run-1",
		BackendA:  domain.Backend{Role: domain.RoleA, Name: "Alpha", Model: "m"},
		BackendB:  domain.Backend{Role: domain.RoleB, Name: "Beta", Model: "m"},
		Questions: domain.QuestionSet{"q0", "q1", "q2", "q3", "q4"},
		Units: []domain.ComparisonUnit{
			{Question: "q0", AnswerLeft: "a0", AnswerRight: "b0", LeftIsBackendA: true, Judgment: domain.JudgmentA},
			{Question: "q1", AnswerLeft: "b1", AnswerRight: "a1", LeftIsBackendA: false, Judgment: domain.JudgmentA},
			{Question: "q2", AnswerLeft: "b2", AnswerRight: "a2", LeftIsBackendA: false, Judgment: domain.JudgmentB},
			{Question: "q3", AnswerLeft: "a3", AnswerRight: "b3", LeftIsBackendA: true, Judgment: domain.JudgmentBoth},
			{Question: "q4", AnswerLeft: "a4", AnswerRight: "b4", LeftIsBackendA: true, Judgment: domain.JudgmentNeither},
		},
	}
}

// TestResolve_LabelsByBackendIdentity verifies presentation-side judgments
// resolve to the backend shown on that side.
func TestResolve_LabelsByBackendIdentity(t *testing.T) {
	records := Resolve(judgedRun())
	require.Len(t, records, 5)

	want := []string{"Alpha", "Beta", "Alpha", "Both are good", "Neither is good"}
	for i, r := range records {
		assert.Equal(t, want[i], r.JudgmentLabel, "unit %d", i)
		assert.Equal(t, "a"+string(rune('0'+i)), r.AnswerFromA)
		assert.Equal(t, "b"+string(rune('0'+i)), r.AnswerFromB)
		assert.Equal(t, "Alpha", r.BackendAName)
		assert.Equal(t, "Beta", r.BackendBName)
	}
	assert.Equal(t, "run-1-0", records[0].ID)
	assert.Equal(t, "run-1-4", records[4].ID)
}

func TestResolve_Unset(t *testing.T) {
	run := judgedRun()
	run.Units[2].Judgment = domain.JudgmentUnset
	assert.Equal(t, domain.LabelNoJudgment, Resolve(run)[2].JudgmentLabel)
}

func TestResolveAndExport_Incomplete(t *testing.T) {
	s := newFakeStore(0)
	run := judgedRun()
	run.Units[4].Judgment = domain.JudgmentUnset

	_, err := newTestExporter(s).ResolveAndExport(context.Background(), run, domain.Operator{})

	assert.ErrorIs(t, err, ErrIncompleteJudgment)
	assert.Equal(t, int32(0), s.calls.Load(), "no side effects")
}

func TestResolveAndExport_InvalidOperator(t *testing.T) {
	s := newFakeStore(0)
	_, err := newTestExporter(s).ResolveAndExport(context.Background(), judgedRun(), domain.Operator{Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidOperator)
	assert.Equal(t, int32(0), s.calls.Load())
}

// TestResolveAndExport_RetryAfterPersistenceFailure verifies a failed write
// leaves the run untouched and a retry produces the same records once.
func TestResolveAndExport_RetryAfterPersistenceFailure(t *testing.T) {
	s := newFakeStore(1)
	e := newTestExporter(s)
	run := judgedRun()
	before := run.Clone()
	op := domain.Operator{Name: "Ada", Email: "ada@example.com"}

	_, err := e.ResolveAndExport(context.Background(), run, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, s.saveErr)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "run-1", pe.RunID)
	assert.Equal(t, before, run, "run is not modified by a failed export")
	assert.Empty(t, s.saved)

	res, err := e.ResolveAndExport(context.Background(), run, op)
	require.NoError(t, err)
	assert.Len(t, s.saved, 5)
	assert.Equal(t, Resolve(before), res.Records)
	assert.Equal(t, op, s.lastOp)

	_, err = e.ResolveAndExport(context.Background(), run, op)
	require.NoError(t, err)
	assert.Len(t, s.saved, 5, "re-export upserts the same ids")
}

func TestResolveAndExport_CSV(t *testing.T) {
	res, err := newTestExporter(newFakeStore(0)).ResolveAndExport(context.Background(), judgedRun(),
		domain.Operator{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	lines := strings.Split(res.CSV, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "operatorName,operatorEmail,question,answer_model_a,answer_model_b,judgment,model_a_name,model_b_name", lines[0])
	assert.Equal(t, `"Ada","ada@example.com","q1","a1","b1","Beta","Alpha","Beta"`, lines[2])
	assert.Equal(t, "arena_judgments_1714564800123.csv", res.Filename)
}

func TestResolveAndExport_EmptyRun(t *testing.T) {
	s := newFakeStore(0)
	res, err := newTestExporter(s).ResolveAndExport(context.Background(), &domain.ArenaRun{ID: "empty"}, domain.Operator{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, strings.Join(Header, ","), res.CSV)
	assert.Equal(t, int32(0), s.calls.Load())
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"quotes and double space", `He said "hi"  there`, `"He said ""hi"" there"`},
		{"empty", "", `""`},
		{"trim", "  padded\t", `"padded"`},
		{"comma kept inside quotes", "a, b", `"a, b"`},
		{"newline preserved", "line1\nline2", "\"line1\nline2\""},
		{"many spaces", "a     b", `"a b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
