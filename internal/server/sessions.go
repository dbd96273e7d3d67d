package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-arena/internal/domain"
)

var (
	// ErrSessionNotFound is returned for unknown or expired run ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionConflict is returned when concurrent writers keep
	// invalidating an update.
	ErrSessionConflict = errors.New("session updated concurrently")
)

// SessionStore keeps in-progress judgment sessions between requests.
//
// Update applies fn to the stored state and saves the result atomically with
// respect to every other Update of the same run, across processes sharing
// the store. fn may run more than once and must not have side effects.
type SessionStore interface {
	Save(ctx context.Context, state domain.SessionState) error
	Load(ctx context.Context, runID string) (domain.SessionState, error)
	Update(ctx context.Context, runID string, fn func(*domain.SessionState) error) (domain.SessionState, error)
	Delete(ctx context.Context, runID string) error
}

// maxUpdateAttempts bounds compare-and-swap retries in RedisSessionStore.Update.
const maxUpdateAttempts = 16

// MemorySessionStore holds sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemorySessionStore returns an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]byte)}
}

// Save stores an encoded copy so callers cannot alias stored state.
func (m *MemorySessionStore) Save(_ context.Context, state domain.SessionState) error {
	id, data, err := encodeSession(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = data
	return nil
}

func (m *MemorySessionStore) Load(_ context.Context, runID string) (domain.SessionState, error) {
	m.mu.RLock()
	data, ok := m.sessions[runID]
	m.mu.RUnlock()
	if !ok {
		return domain.SessionState{}, fmt.Errorf("%w: %s", ErrSessionNotFound, runID)
	}
	return decodeSession(data)
}

// Update runs fn under the store's write lock.
func (m *MemorySessionStore) Update(_ context.Context, runID string, fn func(*domain.SessionState) error) (domain.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.sessions[runID]
	if !ok {
		return domain.SessionState{}, fmt.Errorf("%w: %s", ErrSessionNotFound, runID)
	}
	state, err := decodeSession(data)
	if err != nil {
		return domain.SessionState{}, err
	}
	if err := fn(&state); err != nil {
		return domain.SessionState{}, err
	}
	id, next, err := encodeSession(state)
	if err != nil {
		return domain.SessionState{}, err
	}
	if id != runID {
		return domain.SessionState{}, fmt.Errorf("%w: update changed run id %s to %s", domain.ErrInvalidRun, runID, id)
	}
	m.sessions[runID] = next
	return state, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, runID)
	return nil
}

// redisClient is the subset of *redis.Client used by RedisSessionStore.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

const redisKeyPrefix = "arena:session:"

// compareAndSwapSession replaces KEYS[1] with ARGV[2] only while it still
// holds ARGV[1]. ARGV[3] is the TTL in milliseconds, 0 for none.
// Returns 1 on success, 0 on a lost race and -1 for a missing key.
const compareAndSwapSession = `
local current = redis.call('GET', KEYS[1])
if not current then
	return -1
end
if current ~= ARGV[1] then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`

// RedisSessionStore keeps sessions in Redis as JSON with a sliding TTL, so
// any API replica can serve any run.
type RedisSessionStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisSessionStore wraps client. A zero ttl keeps sessions forever.
func NewRedisSessionStore(client redisClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// DialRedis connects and pings a Redis server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, state domain.SessionState) error {
	id, data, err := encodeSession(state)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKeyPrefix+id, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis save session %s: %w", id, err)
	}
	return nil
}

func (r *RedisSessionStore) Load(ctx context.Context, runID string) (domain.SessionState, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, fmt.Errorf("%w: %s", ErrSessionNotFound, runID)
	}
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("redis load session %s: %w", runID, err)
	}
	return decodeSession(data)
}

// Update reads the session, applies fn and writes it back with a
// compare-and-swap script, retrying when another writer got there first.
func (r *RedisSessionStore) Update(ctx context.Context, runID string, fn func(*domain.SessionState) error) (domain.SessionState, error) {
	key := redisKeyPrefix + runID
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		current, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return domain.SessionState{}, fmt.Errorf("%w: %s", ErrSessionNotFound, runID)
		}
		if err != nil {
			return domain.SessionState{}, fmt.Errorf("redis load session %s: %w", runID, err)
		}
		state, err := decodeSession([]byte(current))
		if err != nil {
			return domain.SessionState{}, err
		}
		if err := fn(&state); err != nil {
			return domain.SessionState{}, err
		}
		id, next, err := encodeSession(state)
		if err != nil {
			return domain.SessionState{}, err
		}
		if id != runID {
			return domain.SessionState{}, fmt.Errorf("%w: update changed run id %s to %s", domain.ErrInvalidRun, runID, id)
		}

		res, err := r.client.Eval(ctx, compareAndSwapSession, []string{key},
			current, string(next), r.ttl.Milliseconds()).Int64()
		if err != nil {
			return domain.SessionState{}, fmt.Errorf("redis update session %s: %w", runID, err)
		}
		switch res {
		case 1:
			return state, nil
		case -1:
			return domain.SessionState{}, fmt.Errorf("%w: %s", ErrSessionNotFound, runID)
		}
		if err := ctx.Err(); err != nil {
			return domain.SessionState{}, err
		}
	}
	return domain.SessionState{}, fmt.Errorf("%w: %s after %d attempts", ErrSessionConflict, runID, maxUpdateAttempts)
}

func (r *RedisSessionStore) Delete(ctx context.Context, runID string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+runID).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", runID, err)
	}
	return nil
}

func encodeSession(state domain.SessionState) (string, []byte, error) {
	if state.Run == nil || state.Run.ID == "" {
		return "", nil, fmt.Errorf("%w: session without run id", domain.ErrInvalidRun)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", nil, fmt.Errorf("encode session: %w", err)
	}
	return state.Run.ID, data, nil
}

func decodeSession(data []byte) (domain.SessionState, error) {
	var state domain.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.SessionState{}, fmt.Errorf("decode session: %w", err)
	}
	return state, nil
}
