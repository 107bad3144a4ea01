// Package authstate holds the client's "am I logged in" hint. The server
// remains the authority; this only decides what the views render.
package authstate

import (
	"context"
	"sync"

	"learningTrackerAPI/internal/localstore"
	"learningTrackerAPI/internal/logger"
)

// Key is the local storage key holding "true" or "false".
const Key = "isAuthenticated"

type Holder struct {
	store *localstore.Store
	log   logger.Logger

	mu    sync.RWMutex
	value bool
}

// New reads the persisted flag. Unreadable storage counts as logged out.
func New(store *localstore.Store, log logger.Logger) *Holder {
	h := &Holder{store: store, log: log.Named("authstate")}
	h.value = h.read()
	return h
}

func (h *Holder) read() bool {
	v, _, err := h.store.Get(Key)
	if err != nil {
		h.log.Warnw("failed to read auth flag", "err", err)
		return false
	}
	return v == "true"
}

func (h *Holder) IsAuthenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value
}

// Set updates the flag in memory and in local storage.
func (h *Holder) Set(authenticated bool) error {
	h.mu.Lock()
	h.value = authenticated
	h.mu.Unlock()

	v := "false"
	if authenticated {
		v = "true"
	}
	return h.store.Set(Key, v)
}

// Sync re-reads the persisted flag and reports the current value.
func (h *Holder) Sync() bool {
	v := h.read()
	h.mu.Lock()
	h.value = v
	h.mu.Unlock()
	return v
}

// Watch calls fn with the new value whenever another writer flips the flag.
func (h *Holder) Watch(ctx context.Context, fn func(bool)) error {
	last := h.IsAuthenticated()
	var mu sync.Mutex

	return h.store.Watch(ctx, func() {
		v := h.Sync()

		mu.Lock()
		changed := v != last
		last = v
		mu.Unlock()

		if changed {
			fn(v)
		}
	})
}
