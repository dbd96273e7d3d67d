package tui

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/export"
)

type fakeStore struct {
	failN int32
	calls atomic.Int32
}

func (s *fakeStore) SaveJudgments(context.Context, []domain.ArenaJudgmentRecord, domain.Operator) error {
	if s.calls.Add(1) <= s.failN {
		return errors.New("database is locked")
	}
	return nil
}

func (s *fakeStore) Close() error { return nil }

func newTestModel(t *testing.T, n int, store *fakeStore) (Model, *arena.Session) {
	t.Helper()
	a := domain.Backend{Role: domain.RoleA, Name: "Alpha", Endpoint: "http://a.local", Model: "a"}
	b := domain.Backend{Role: domain.RoleB, Name: "Beta", Endpoint: "http://b.local", Model: "b"}
	qs := make([]string, n)
	for i := range qs {
		qs[i] = string(rune('A'+i)) + "?"
	}
	sess := arena.NewSession(&domain.ArenaRun{
		ID:        "run-1",
		BackendA:  a,
		BackendB:  b,
		Questions: qs,
		Units:     arena.Reconcile(qs, nil, nil, a, b),
		CreatedAt: time.Unix(0, 0).UTC(),
	})
	m := NewModel(context.Background(), sess, export.NewExporter(store), domain.Operator{Name: "Ada"})
	return m, sess
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, c := m.Update(msg)
		m = next.(Model)
		cmd = c
	}
	return m, cmd
}

func TestModel_JudgeKeys(t *testing.T) {
	m, sess := newTestModel(t, 4, &fakeStore{})

	m, _ = press(t, m, "1", "b", "3", "n")

	snap := sess.Snapshot()
	assert.Equal(t, domain.JudgmentA, snap.Units[0].Judgment)
	assert.Equal(t, domain.JudgmentB, snap.Units[1].Judgment)
	assert.Equal(t, domain.JudgmentBoth, snap.Units[2].Judgment)
	assert.Equal(t, domain.JudgmentNeither, snap.Units[3].Judgment)
	assert.True(t, sess.IsComplete())
	assert.Contains(t, m.View(), "4/4 judged")
}

func TestModel_Navigation(t *testing.T) {
	m, sess := newTestModel(t, 3, &fakeStore{})

	m, _ = press(t, m, "right", "right", "right")
	assert.Equal(t, 2, sess.CurrentIndex())
	m, _ = press(t, m, "left", "p")
	assert.Equal(t, 0, sess.CurrentIndex())
	assert.Contains(t, m.View(), "Q1. A?")
}

func TestModel_ExportIncomplete(t *testing.T) {
	store := &fakeStore{}
	m, _ := newTestModel(t, 2, store)

	m, cmd := press(t, m, "1", "e")
	assert.Nil(t, cmd)
	assert.ErrorIs(t, m.err, export.ErrIncompleteJudgment)
	assert.Equal(t, int32(0), store.calls.Load())
}

// TestModel_ExportRetry verifies a persistence failure keeps the model open
// and a second export succeeds and quits.
func TestModel_ExportRetry(t *testing.T) {
	store := &fakeStore{failN: 1}
	m, _ := newTestModel(t, 1, store)

	m, cmd := press(t, m, "3", "e")
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.ErrorIs(t, m.err, export.ErrPersistence)
	assert.Nil(t, m.Result())
	assert.Contains(t, m.View(), "press e to retry")

	m, cmd = press(t, m, "e")
	require.NotNil(t, cmd)
	next, quit := m.Update(cmd())
	m = next.(Model)
	require.NotNil(t, m.Result())
	assert.Len(t, m.Result().Records, 1)
	assert.Equal(t, domain.LabelBoth, m.Result().Records[0].JudgmentLabel)
	require.NotNil(t, quit)
	assert.IsType(t, tea.QuitMsg{}, quit())
}

func TestModel_EmptyRun(t *testing.T) {
	m, _ := newTestModel(t, 0, &fakeStore{})
	assert.Contains(t, m.View(), "No questions were generated")

	m, _ = press(t, m, "1")
	assert.ErrorIs(t, m.err, arena.ErrEmptySession)
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, 1, &fakeStore{})
	m, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
}
