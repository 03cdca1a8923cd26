package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shul-site/backend/internal/cart"
	"github.com/shul-site/backend/internal/checkout"
)

var (
	// ErrSessionNotFound is returned for unknown or expired cart sessions.
	ErrSessionNotFound = errors.New("cart session not found")
	// ErrSessionBusy is returned when another request holds the session lock for too long.
	ErrSessionBusy = errors.New("cart session is busy, try again")
)

// Session is the shared cart state that the catalog view and the cart panel both act on.
type Session struct {
	ID        string            `json:"id"`
	Catalog   string            `json:"catalog"`
	Lines     []cart.StoredLine `json:"lines"`
	Note      string            `json:"note"`
	Outcome   checkout.Outcome  `json:"outcome"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store keeps sessions for a limited time. Lock excludes every other holder of
// the same session id, across all processes sharing the store, until unlock is called.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, id string) (unlock func(), err error)
}

// MemoryStore is a single-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
	locks    *keyedMutex
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// NewMemoryStore creates an in-process store; sessions expire ttl after their last write.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, sessions: make(map[string]memoryEntry), locks: newKeyedMutex()}
}

func (m *MemoryStore) Lock(_ context.Context, id string) (func(), error) {
	return m.locks.Lock(id), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.now().After(e.expiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	s := e.session
	s.Lines = append([]cart.StoredLine(nil), e.session.Lines...)
	return &s, nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Lines = append([]cart.StoredLine(nil), s.Lines...)
	m.sessions[s.ID] = memoryEntry{session: cp, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, e := range m.sessions {
		if now.After(e.expiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

const (
	redisKeyPrefix  = "cart:session:"
	redisLockPrefix = "cart:lock:"

	// lockTTL outlives a PayPal capture (bounded by PAYPAL_TIMEOUT_SEC) so a
	// held lock never lapses mid-approval; it only frees sessions of crashed holders.
	lockTTL  = 2 * time.Minute
	lockWait = 45 * time.Second
	lockPoll = 50 * time.Millisecond
)

// releaseLock deletes the lock only if it still carries our token.
const releaseLock = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisStore keeps sessions as JSON strings with a TTL, shared by every server instance.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+s.ID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Lock takes the per-session lock shared by every server instance (SET NX with a
// random token). It polls until the lock frees, ctx ends or lockWait passes.
func (r *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	key := redisLockPrefix + id
	token := uuid.NewString()
	deadline := time.NewTimer(lockWait)
	defer deadline.Stop()
	poll := time.NewTicker(lockPoll)
	defer poll.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				_ = r.client.Eval(releaseCtx, releaseLock, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrSessionBusy
		case <-poll.C:
		}
	}
}
