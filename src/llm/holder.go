package llm

import "sync"

// Holder is a single-slot, swappable reference to the active provider.
// The orchestration service owns the holder; providers are replaced via
// Swap under the lock, never by direct mutation from call sites.
type Holder struct {
	mu       sync.RWMutex
	provider Provider
}

// NewHolder creates a holder seeded with the given provider.
func NewHolder(provider Provider) *Holder {
	return &Holder{provider: provider}
}

// Get returns the active provider.
func (h *Holder) Get() Provider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.provider
}

// Swap installs a new provider and returns the previous one.
func (h *Holder) Swap(provider Provider) Provider {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := h.provider
	h.provider = provider
	return previous
}
