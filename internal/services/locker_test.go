package services

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/indoormap-backend/internal/data/repos/testutil"
	types "github.com/yungbote/indoormap-backend/internal/domain"
)

func TestMemoryLockerSerializes(t *testing.T) {
	l := NewMemoryLocker()
	key := EntityLockKey(types.KindChokePoint, uuid.New())

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), key)
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("holders at once: want=1 got=%d", peak)
	}
	if n := len(l.(*memoryLocker).slots); n != 0 {
		t.Fatalf("slots after release: want=0 got=%d", n)
	}
}

func TestMemoryLockerHonorsContext(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); err == nil {
		t.Fatalf("second Lock: want context error")
	}
	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	again()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedisLocker(testutil.Logger(t), rdb, time.Second)
	key := EntityLockKey(types.KindFloorMap, uuid.New())
	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, key); err == nil {
		t.Fatalf("contended Lock: want timeout")
	}
	unlock()
	if n, _ := rdb.Exists(context.Background(), key).Result(); n != 0 {
		t.Fatalf("key after unlock: want gone got exists=%d", n)
	}
}
