// Package store persists resolved arena judgments.
//
// Two backends are provided: an embedded DuckDB file (the default) and
// MongoDB. Both write every record of an export in one transaction using
// insert-or-replace semantics keyed by record id, so retrying a failed
// export never duplicates rows. A failed write invalidates the underlying
// connection and the next call reconnects.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-arena/internal/domain"
)

// Supported providers.
const (
	ProviderDuckDB = "duckdb"
	ProviderMongo  = "mongo"
)

var (
	// ErrUnknownProvider is returned by Open for an unsupported provider.
	ErrUnknownProvider = errors.New("unknown store provider")

	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("store closed")
)

// Store is the persistence boundary of the exporter.
type Store interface {
	// SaveJudgments writes all records atomically, stamping each with the
	// operator and the store's clock.
	SaveJudgments(ctx context.Context, records []domain.ArenaJudgmentRecord, op domain.Operator) error
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Provider string `yaml:"provider" validate:"required,oneof=duckdb mongo"`

	// Path is the DuckDB database file. Empty opens an in-memory database.
	Path string `yaml:"path"`

	// URI, Database and Collection configure MongoDB.
	URI        string `yaml:"uri" validate:"required_if=Provider mongo"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks provider-specific requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	return nil
}

// Option customizes a store.
type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

func buildOptions(opts []Option) storeOptions {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open builds the store selected by cfg.Provider.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	switch cfg.Provider {
	case ProviderDuckDB:
		return OpenDuckDB(ctx, cfg.Path, opts...)
	case ProviderMongo:
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return OpenMongo(ctx, MongoConfig{
			URI:        cfg.URI,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		}, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
