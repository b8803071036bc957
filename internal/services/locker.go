package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

// Locker serializes mutations of a single entity. Unlock must be called
// exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func EntityLockKey(kind types.Kind, id uuid.UUID) string {
	return fmt.Sprintf("indoormap:lock:%s:%s", kind, id)
}

type memoryLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker returns an in-process keyed lock. It only serializes
// callers inside one process.
func NewMemoryLocker() Locker {
	return &memoryLocker{slots: map[string]*lockSlot{}}
}

func (l *memoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot, false)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { l.release(key, slot, true) }) }, nil
}

func (l *memoryLocker) release(key string, slot *lockSlot, held bool) {
	if held {
		<-slot.ch
	}
	l.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another holder is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	log   *logger.Logger
	rdb   goredis.Cmdable
	ttl   time.Duration
	retry time.Duration
}

// NewRedisLocker takes SET NX PX locks so every replica sharing the database
// also shares entity locks. ttl bounds how long a crashed holder blocks others.
func NewRedisLocker(log *logger.Logger, rdb goredis.Cmdable, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{
		log:   log.With("service", "RedisLocker"),
		rdb:   rdb,
		ttl:   ttl,
		retry: 25 * time.Millisecond,
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := lockToken()
	if err != nil {
		return nil, err
	}
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && err != goredis.Nil {
				l.log.Warn("lock release failed", "key", key, "error", err)
			}
		})
	}, nil
}

func lockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
