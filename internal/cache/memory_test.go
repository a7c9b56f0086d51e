package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemoryStore().WithClock(clock.now)

	if err := m.Set(ctx, ResetKey("abc"), []byte("user-1"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := m.Get(ctx, ResetKey("abc"))
	if err != nil || string(got) != "user-1" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	clock.t = clock.t.Add(time.Hour)
	if _, err := m.Get(ctx, ResetKey("abc")); !errors.Is(err, ErrMiss) {
		t.Errorf("expired Get err = %v, want ErrMiss", err)
	}
}

func TestMemoryStoreGetDelSpendsOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.Set(ctx, VerificationKey("tok"), []byte("u"), time.Minute)

	if _, err := m.GetDel(ctx, VerificationKey("tok")); err != nil {
		t.Fatalf("first GetDel: %v", err)
	}
	if _, err := m.GetDel(ctx, VerificationKey("tok")); !errors.Is(err, ErrMiss) {
		t.Errorf("second GetDel err = %v, want ErrMiss", err)
	}
}

func TestMemoryStoreIncrWindow(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemoryStore().WithClock(clock.now)
	key := RateKey("10.0.0.1", "login")

	for i := int64(1); i <= 3; i++ {
		n, _ := m.Incr(ctx, key, time.Minute)
		if n != i {
			t.Fatalf("Incr #%d = %d", i, n)
		}
	}
	ttl, _ := m.TTL(ctx, key)
	if ttl != time.Minute {
		t.Errorf("TTL = %v, want the window to stay anchored at first hit", ttl)
	}

	clock.t = clock.t.Add(time.Minute)
	if n, _ := m.Incr(ctx, key, time.Minute); n != 1 {
		t.Errorf("after window Incr = %d, want 1", n)
	}
}
