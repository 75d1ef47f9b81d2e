package middleware

import (
	"context"
	"log/slog" // Use the new logger
	"sync"

	"github.com/gofiber/fiber/v2"
)

// IdempotencyStore caches responses by Idempotency-Key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (status int, body []byte, found bool, err error)
	Put(ctx context.Context, key string, status int, body []byte) error
}

// MemoryIdempotencyStore is used when no database is configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]cachedResponse
}

type cachedResponse struct {
	status int
	body   []byte
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]cachedResponse)}
}

func (m *MemoryIdempotencyStore) Get(_ context.Context, key string) (int, []byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e.status, e.body, ok, nil
}

func (m *MemoryIdempotencyStore) Put(_ context.Context, key string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		m.entries[key] = cachedResponse{status: status, body: body}
	}
	return nil
}

// keyLocks serializes requests sharing a key. Entries are dropped once the
// last holder releases them, so the map only holds keys in flight.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// acquire blocks until key is free and returns its release func.
func (k *keyLocks) acquire(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyLocks) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// Idempotency replays the first response for a repeated Idempotency-Key so a
// cashier double-click never records the same payment twice. Server errors
// are not cached and may be retried.
func Idempotency(store IdempotencyStore) fiber.Handler {
	return idempotency(store, newKeyLocks())
}

func idempotency(store IdempotencyStore, inflight *keyLocks) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Get Key from Header
		key := c.Get("Idempotency-Key")

		// If no key, skip (silently, or you can log at Debug level)
		if key == "" {
			return c.Next()
		}

		// A second request racing the first waits its turn
		release := inflight.acquire(key)
		defer release()

		// 2. Check if key exists
		status, body, found, err := store.Get(c.Context(), key)
		if err != nil {
			slog.Error("❌ Failed to read Idempotency Key", "error", err, "key", key)
		} else if found {
			slog.Info("🛑 Idempotency Hit! Returning cached response", "key", key)
			c.Set("X-Idempotency-Hit", "true")
			c.Set("Content-Type", "application/json")
			return c.Status(status).Send(body)
		}

		// 3. Run the Handler
		if err := c.Next(); err != nil {
			return err
		}

		// 4. Save the Result
		resStatus := c.Response().StatusCode()
		if resStatus >= 500 {
			return nil
		}
		resBody := append([]byte(nil), c.Response().Body()...) // fasthttp reuses the buffer

		if err := store.Put(c.Context(), key, resStatus, resBody); err != nil {
			slog.Error("❌ Failed to save Idempotency Key", "error", err, "key", key)
		} else {
			slog.Info("💾 Idempotency Key Saved", "key", key)
		}

		return nil
	}
}
