package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process dedup guard with the same semantics as
// the Redis-backed one. Used in development and tests; claims are lost
// on restart and not shared between instances.
type MemoryStore struct {
	mu          sync.Mutex
	items       map[string]*memoryItem
	dedupWindow time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

type memoryItem struct {
	value      string
	expireTime time.Time
}

// NewMemoryStore creates a new in-memory dedup store
func NewMemoryStore(dedupWindow time.Duration) *MemoryStore {
	store := &MemoryStore{
		items:       make(map[string]*memoryItem),
		dedupWindow: dedupWindow,
		done:        make(chan struct{}),
	}

	go store.cleanupExpired()

	return store
}

// ClaimUpload claims a content hash, returning false if an unexpired
// claim already exists.
func (ms *MemoryStore) ClaimUpload(ctx context.Context, contentHash string, callID string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := dedupKey(contentHash)
	if item, exists := ms.items[key]; exists && time.Now().Before(item.expireTime) {
		return false, nil
	}

	ms.items[key] = &memoryItem{
		value:      callID,
		expireTime: time.Now().Add(ms.dedupWindow),
	}
	return true, nil
}

// ReleaseUpload drops a claim so the same content can be uploaded again
func (ms *MemoryStore) ReleaseUpload(ctx context.Context, contentHash string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.items, dedupKey(contentHash))
	return nil
}

// Close stops the cleanup goroutine. Mirrors the Redis client surface
// so either backend can be shut down the same way.
func (ms *MemoryStore) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
	})
	return nil
}

// cleanupExpired periodically removes expired claims until Close
func (ms *MemoryStore) cleanupExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ms.done:
			return
		case <-ticker.C:
			ms.mu.Lock()
			now := time.Now()
			for key, item := range ms.items {
				if now.After(item.expireTime) {
					delete(ms.items, key)
				}
			}
			ms.mu.Unlock()
		}
	}
}
