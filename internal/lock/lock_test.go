package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"infinity_stones/internal/errs"
)

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "s1")
			if err != nil {
				t.Error(err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxSeen.Load())
	}
	if len(l.keys) != 0 {
		t.Fatalf("keys left: %d", len(l.keys))
	}
}

func TestLocalContextCancel(t *testing.T) {
	l := NewLocal()

	unlock, err := l.Lock(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "s1"); !errors.Is(err, errs.ErrSessionBusy) {
		t.Fatalf("err = %v, want ErrSessionBusy", err)
	}

	// другой ключ не ждет
	other, err := l.Lock(context.Background(), "s2")
	if err != nil {
		t.Fatal(err)
	}
	other()
}

func TestLocalUnlockIdempotent(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	unlock()
	unlock()

	again, err := l.Lock(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	again()
}

func TestRedisReleaseOnce(t *testing.T) {
	// сервера нет, каждая попытка снять аренду пишет предупреждение
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRedis(client, time.Second, zap.New(core))
	unlock := r.release(keyPrefix+"s1", "token")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock()
		}()
	}
	wg.Wait()
	unlock()

	if n := logs.FilterMessage("redis unlock failed").Len(); n != 1 {
		t.Fatalf("unlock attempts = %d, want 1", n)
	}
}
