package cache

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound возвращается при чтении отсутствующего или истёкшего ключа.
var ErrNotFound = errors.New("ключ не найден")

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache — реализация domain.Cache на карте в памяти. Используется в
// тестах и в запусках без Redis; содержимое теряется на рестарте.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory создаёт кэш в памяти.
func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Once выполняет функцию, если ключ ещё не задан.
func (c *MemoryCache) Once(key string, ttl time.Duration, fn func() error) error {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && (entry.expiresAt.IsZero() || c.now().Before(entry.expiresAt)) {
		c.mu.Unlock()
		return nil
	}
	c.entries[key] = memoryEntry{value: []byte("1"), expiresAt: c.expiry(ttl)}
	c.mu.Unlock()

	if err := fn(); err != nil {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Set задаёт значение.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: append([]byte(nil), value...), expiresAt: c.expiry(ttl)}
	return nil
}

// Get возвращает значение.
func (c *MemoryCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, ErrNotFound
	}
	return entry.value, nil
}

func (c *MemoryCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}
