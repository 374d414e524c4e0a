package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/iliyamo/auth-user-service/internal/utils"
)

// ErrInvalidState is returned for a state that was never issued, has
// expired or was already used.
var ErrInvalidState = errors.New("invalid oauth state")

// StateStore keeps the PKCE verifier for each outstanding login.  Every
// state can be consumed once.
type StateStore interface {
	Save(ctx context.Context, state, verifier string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (string, error)
}

// NewState returns a fresh random state value and PKCE verifier.
func NewState() (state, verifier string, err error) {
	state, err = utils.RandomHex(16)
	if err != nil {
		return "", "", err
	}
	return state, oauth2.GenerateVerifier(), nil
}

// RedisStateStore shares states between instances.
type RedisStateStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStateStore(rdb *redis.Client) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, prefix: "oauth-state:"}
}

func (s *RedisStateStore) Save(ctx context.Context, state, verifier string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.prefix+state, verifier, ttl).Err(); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// Consume reads and deletes the state atomically.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrInvalidState
	}
	v, err := s.rdb.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("consume oauth state: %w", err)
	}
	return v, nil
}

// MemoryStateStore is the single-instance fallback used when Redis is
// unavailable.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryState
	now     func() time.Time
}

type memoryState struct {
	verifier string
	expires  time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: map[string]memoryState{}, now: time.Now}
}

func (s *MemoryStateStore) Save(_ context.Context, state, verifier string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// drop expired entries so abandoned logins don't accumulate
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = memoryState{verifier: verifier, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[state]
	if !ok {
		return "", ErrInvalidState
	}
	delete(s.entries, state)
	if s.now().After(e.expires) {
		return "", ErrInvalidState
	}
	return e.verifier, nil
}
