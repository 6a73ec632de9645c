package relay

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"voice-softphone/pkg/utils"
)

// Slots limits every identity to one live call, across relay instances when Redis backed.
// A slot is held by a call sid; releasing with a sid that no longer holds it is a no-op.
type Slots interface {
	Acquire(ctx context.Context, userID, callSID string) (bool, error)
	Release(ctx context.Context, userID, callSID string) error
}

type RedisSlots struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSlots keys slots as prefix+userID. ttl bounds how long a slot
// outlives a relay that died mid-call.
func NewRedisSlots(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSlots {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &RedisSlots{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisSlots) Acquire(ctx context.Context, userID, callSID string) (bool, error) {
	return utils.AcquireLease(ctx, s.rdb, s.prefix+userID, callSID, s.ttl)
}

func (s *RedisSlots) Release(ctx context.Context, userID, callSID string) error {
	return utils.ReleaseLease(ctx, s.rdb, s.prefix+userID, callSID)
}

type MemorySlots struct {
	mu      sync.Mutex
	holders map[string]string
}

func NewMemorySlots() *MemorySlots { return &MemorySlots{holders: make(map[string]string)} }

func (s *MemorySlots) Acquire(_ context.Context, userID, callSID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.holders[userID]; ok && cur != callSID {
		return false, nil
	}
	s.holders[userID] = callSID
	return true, nil
}

func (s *MemorySlots) Release(_ context.Context, userID, callSID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holders[userID] == callSID {
		delete(s.holders, userID)
	}
	return nil
}
