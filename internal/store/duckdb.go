package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/ahrav/go-arena/internal/domain"
)

// schemaDDL holds the arena_judgments table definition.
//
//go:embed schema.sql
var schemaDDL string

const upsertJudgmentSQL = `INSERT OR REPLACE INTO arena_judgments
	(id, question, answer_model_a, answer_model_b, model_a_name, model_b_name, judgment, operator_name, operator_email, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// EnsureSchema applies the schema DDL to the provided database connection.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("duckdb: db is nil")
	}
	_, err := db.ExecContext(ctx, schemaDDL)
	return err
}

// DuckDBStore writes judgments to an embedded DuckDB database file.
type DuckDBStore struct {
	mu     sync.Mutex
	path   string
	db     *sql.DB
	closed bool
	now    func() time.Time
	logger *slog.Logger
}

var _ Store = (*DuckDBStore)(nil)

// OpenDuckDB opens (creating if needed) the database at path and applies
// the schema. An empty path opens an in-memory database.
func OpenDuckDB(ctx context.Context, path string, opts ...Option) (*DuckDBStore, error) {
	o := buildOptions(opts)
	s := &DuckDBStore{
		path:   path,
		now:    o.now,
		logger: slog.Default().With("component", "duckdb_store", "path", path),
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("duckdb: create directory: %w", err)
		}
	}
	if _, err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveJudgments upserts every record in a single transaction.
func (s *DuckDBStore) SaveJudgments(ctx context.Context, records []domain.ArenaJudgmentRecord, op domain.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	if err := s.save(ctx, db, records, op); err != nil {
		s.logger.WarnContext(ctx, "save failed; invalidating connection", "error", err)
		s.invalidate()
		return fmt.Errorf("duckdb: save judgments: %w", err)
	}
	s.logger.DebugContext(ctx, "judgments saved", "count", len(records))
	return nil
}

func (s *DuckDBStore) save(ctx context.Context, db *sql.DB, records []domain.ArenaJudgmentRecord, op domain.Operator) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertJudgmentSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	createdAt := s.now().UTC()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Question, r.AnswerFromA, r.AnswerFromB,
			r.BackendAName, r.BackendBName, r.JudgmentLabel,
			op.Name, op.Email, createdAt,
		); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// ensureOpen returns the live connection, reopening it after invalidation.
// Callers hold mu except during construction.
func (s *DuckDBStore) ensureOpen(ctx context.Context) (*sql.DB, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open("duckdb", s.path)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("duckdb: apply schema: %w", err)
	}
	s.db = db
	return db, nil
}

// invalidate drops the connection so the next call reconnects.
func (s *DuckDBStore) invalidate() {
	if s.db == nil {
		return
	}
	_ = s.db.Close()
	s.db = nil
}

// Close releases the database. Further writes return ErrClosed.
func (s *DuckDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
