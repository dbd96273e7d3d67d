// Package export resolves a fully judged arena run back into backend
// identities, persists the judgments and renders the tabular download.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/store"
)

// Result is the outcome of a successful export.
type Result struct {
	Records  []domain.ArenaJudgmentRecord `json:"records"`
	CSV      string                       `json:"csv"`
	Filename string                       `json:"filename"`
}

// Exporter persists resolved judgments through a store it does not own.
type Exporter struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewExporter returns an exporter writing to s.
func NewExporter(s store.Store) *Exporter {
	return &Exporter{
		store:  s,
		now:    time.Now,
		logger: slog.Default().With("component", "exporter"),
	}
}

// WithClock overrides the clock used for the export filename.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// Resolve maps each unit's presentation-side judgment back to backend
// identity. A and B name the backend shown on that side; Both and Neither map
// to fixed labels; an unset judgment maps to LabelNoJudgment.
func Resolve(run *domain.ArenaRun) []domain.ArenaJudgmentRecord {
	records := make([]domain.ArenaJudgmentRecord, 0, len(run.Units))
	for i, u := range run.Units {
		records = append(records, domain.ArenaJudgmentRecord{
			ID:            fmt.Sprintf("%s-%d", run.ID, i),
			Question:      u.Question,
			AnswerFromA:   u.AnswerFromA(),
			AnswerFromB:   u.AnswerFromB(),
			BackendAName:  run.BackendA.Name,
			BackendBName:  run.BackendB.Name,
			JudgmentLabel: label(u, run.BackendA.Name, run.BackendB.Name),
		})
	}
	return records
}

func label(u domain.ComparisonUnit, nameA, nameB string) string {
	leftName, rightName := nameB, nameA
	if u.LeftIsBackendA {
		leftName, rightName = nameA, nameB
	}
	switch u.Judgment {
	case domain.JudgmentA:
		return leftName
	case domain.JudgmentB:
		return rightName
	case domain.JudgmentBoth:
		return domain.LabelBoth
	case domain.JudgmentNeither:
		return domain.LabelNeither
	default:
		return domain.LabelNoJudgment
	}
}

// ResolveAndExport requires a complete run, writes every record in one store
// transaction and returns the records with their CSV rendering.
//
// An incomplete run returns ErrIncompleteJudgment without touching the store.
// A store failure returns a *PersistenceError; the run is not modified and
// the same call may be retried. A run without units exports a header-only CSV
// and skips the store.
func (e *Exporter) ResolveAndExport(ctx context.Context, run *domain.ArenaRun, op domain.Operator) (*Result, error) {
	if run == nil {
		return nil, fmt.Errorf("%w: nil run", domain.ErrInvalidRun)
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if !run.IsComplete() {
		judged := run.JudgedCount()
		return nil, fmt.Errorf("%w: %d of %d judged", ErrIncompleteJudgment, judged, len(run.Units))
	}

	records := Resolve(run)
	logger := e.logger.With("run_id", run.ID, "records", len(records))

	if len(records) > 0 {
		if err := e.store.SaveJudgments(ctx, records, op); err != nil {
			logger.ErrorContext(ctx, "export persistence failed", "error", err)
			return nil, &PersistenceError{RunID: run.ID, Err: err}
		}
	}

	res := &Result{
		Records:  records,
		CSV:      WriteCSV(records, op),
		Filename: Filename(e.now()),
	}
	logger.InfoContext(ctx, "run exported", "filename", res.Filename)
	return res, nil
}
