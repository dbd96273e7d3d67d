package arena

import (
	"fmt"
	"sync"

	"github.com/ahrav/go-arena/internal/domain"
)

// Session is a sequential cursor over the comparison units of one run.
//
// The operator records one judgment per unit; recording advances the cursor
// until the last unit, and navigation is clamped to the valid range. A
// complete session stays editable until it is exported. Session is safe for
// concurrent use.
type Session struct {
	mu     sync.Mutex
	run    *domain.ArenaRun
	cursor int
}

// NewSession starts a session at the first unit. The run is copied.
func NewSession(run *domain.ArenaRun) *Session {
	if run == nil {
		run = &domain.ArenaRun{}
	}
	return &Session{run: run.Clone()}
}

// RestoreSession rebuilds a session from its serialized state. An
// out-of-range cursor is clamped.
func RestoreSession(state domain.SessionState) (*Session, error) {
	if state.Run == nil {
		return nil, fmt.Errorf("%w: missing run", domain.ErrInvalidRun)
	}
	if err := state.Run.Validate(); err != nil {
		return nil, err
	}
	s := &Session{run: state.Run.Clone()}
	s.cursor = s.clamp(state.CurrentIndex)
	return s, nil
}

// Len returns the number of units.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.run.Units)
}

// RecordJudgment stores j on the current unit, overwriting any earlier
// judgment, then advances the cursor unless it is on the last unit.
func (s *Session) RecordJudgment(j domain.Judgment) error {
	if !j.IsTerminal() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidJudgment, j)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.run.Units)
	if n == 0 {
		return ErrEmptySession
	}
	s.run.Units[s.cursor].Judgment = j
	if s.cursor < n-1 {
		s.cursor++
	}
	return nil
}

// MoveTo sets the cursor to index clamped to [0, N-1] and returns the new index.
func (s *Session) MoveTo(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = s.clamp(index)
	return s.cursor
}

// Next moves one unit forward, stopping at the last unit.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = s.clamp(s.cursor + 1)
	return s.cursor
}

// Previous moves one unit back, stopping at the first unit.
func (s *Session) Previous() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = s.clamp(s.cursor - 1)
	return s.cursor
}

// CurrentIndex returns the cursor position.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Current returns the unit under the cursor; false when the run has no units.
func (s *Session) Current() (domain.ComparisonUnit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.run.Units) == 0 {
		return domain.ComparisonUnit{}, false
	}
	return s.run.Units[s.cursor], true
}

// IsComplete re-scans every unit; true when all carry a judgment.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.IsComplete()
}

// Progress returns how many units are judged out of the total.
func (s *Session) Progress() (judged, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.JudgedCount(), len(s.run.Units)
}

// State returns a serializable copy of the session.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionState{Run: s.run.Clone(), CurrentIndex: s.cursor}
}

// Snapshot returns a deep copy of the run with its current judgments.
func (s *Session) Snapshot() *domain.ArenaRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.Clone()
}

// clamp bounds i to the unit range; callers hold mu.
func (s *Session) clamp(i int) int {
	n := len(s.run.Units)
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
