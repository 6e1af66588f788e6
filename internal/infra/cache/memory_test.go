package cache

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryOnceRunsOnce(t *testing.T) {
	c := NewMemory()
	calls := 0
	for i := 0; i < 3; i++ {
		if err := c.Once("k", time.Minute, func() error { calls++; return nil }); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("ожидали 1 вызов, получили %d", calls)
	}
}

func TestMemoryOnceRetriesAfterError(t *testing.T) {
	c := NewMemory()
	boom := errors.New("boom")
	if err := c.Once("k", time.Minute, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("ожидали ошибку функции, получили %v", err)
	}
	calls := 0
	if err := c.Once("k", time.Minute, func() error { calls++; return nil }); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if calls != 1 {
		t.Fatalf("ожидали повторный вызов после ошибки")
	}
}

func TestMemoryOnceExpires(t *testing.T) {
	c := NewMemory()
	current := time.Now()
	c.now = func() time.Time { return current }
	calls := 0
	_ = c.Once("k", time.Minute, func() error { calls++; return nil })
	current = current.Add(2 * time.Minute)
	_ = c.Once("k", time.Minute, func() error { calls++; return nil })
	if calls != 2 {
		t.Fatalf("ожидали 2 вызова после истечения TTL, получили %d", calls)
	}
}

func TestMemoryGetMissing(t *testing.T) {
	c := NewMemory()
	if _, err := c.Get("absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}
