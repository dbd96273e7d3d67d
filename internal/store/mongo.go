package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ahrav/go-arena/internal/domain"
)

const (
	defaultMongoDatabase   = "arena"
	defaultMongoCollection = "arena_judgments"
	mongoConnectTimeout    = 10 * time.Second
)

// MongoConfig addresses the judgments collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// mongoJudgment is the stored document: the record plus operator and timestamp.
type mongoJudgment struct {
	domain.ArenaJudgmentRecord `bson:",inline"`

	OperatorName  string    `bson:"operator_name"`
	OperatorEmail string    `bson:"operator_email"`
	CreatedAt     time.Time `bson:"created_at"`
}

// MongoStore writes judgments to a MongoDB collection. Transactions require
// a replica set or sharded deployment.
type MongoStore struct {
	mu     sync.Mutex
	cfg    MongoConfig
	client *mongo.Client
	closed bool
	now    func() time.Time
	logger *slog.Logger
}

var _ Store = (*MongoStore)(nil)

// OpenMongo connects and pings the server.
func OpenMongo(ctx context.Context, cfg MongoConfig, opts ...Option) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = defaultMongoDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultMongoCollection
	}
	o := buildOptions(opts)
	s := &MongoStore{
		cfg:    cfg,
		now:    o.now,
		logger: slog.Default().With("component", "mongo_store", "database", cfg.Database),
	}
	if _, err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveJudgments replaces or inserts every record inside one transaction.
func (s *MongoStore) SaveJudgments(ctx context.Context, records []domain.ArenaJudgmentRecord, op domain.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	// save ends its session before returning, so invalidate never
	// disconnects a client with a live session.
	if err := s.save(ctx, client, records, op); err != nil {
		s.logger.WarnContext(ctx, "save failed; invalidating connection", "error", err)
		s.invalidate(ctx)
		return fmt.Errorf("mongo: save judgments: %w", err)
	}
	return nil
}

func (s *MongoStore) save(ctx context.Context, client *mongo.Client, records []domain.ArenaJudgmentRecord, op domain.Operator) error {
	coll := client.Database(s.cfg.Database).Collection(s.cfg.Collection)
	createdAt := s.now().UTC()

	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, r := range records {
			doc := mongoJudgment{
				ArenaJudgmentRecord: r,
				OperatorName:        op.Name,
				OperatorEmail:       op.Email,
				CreatedAt:           createdAt,
			}
			if _, err := coll.ReplaceOne(sc, bson.M{"_id": r.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
				return nil, fmt.Errorf("record %s: %w", r.ID, err)
			}
		}
		return nil, nil
	})
	return err
}

func (s *MongoStore) ensureOpen(ctx context.Context) (*mongo.Client, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.client != nil {
		return s.client, nil
	}
	cctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(s.cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	s.client = client
	return client, nil
}

func (s *MongoStore) invalidate(ctx context.Context) {
	if s.client == nil {
		return
	}
	_ = s.client.Disconnect(ctx)
	s.client = nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(context.Background())
	s.client = nil
	return err
}
