// Package hooks provides named, ordered middleware chains. A chain doubles
// as an event emitter: handlers registered under a name run strictly
// sequentially in registration order, and the first failing handler aborts
// the rest of the chain.
package hooks

import (
	"context"
	"sync"
)

// Handler is one link of a chain. It may mutate the event it receives;
// returning an error aborts the remainder of the chain.
type Handler[T any] func(ctx context.Context, event T) error

// Hooks manages the chains for a set of named extension points.
type Hooks[T any] struct {
	mu     sync.RWMutex
	chains map[string][]Handler[T]
}

// New creates an empty hook set.
func New[T any]() *Hooks[T] {
	return &Hooks[T]{chains: make(map[string][]Handler[T])}
}

// On registers a handler at the end of the named chain.
func (h *Hooks[T]) On(name string, fn Handler[T]) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chains[name] = append(h.chains[name], fn)
}

// Emit runs the named chain sequentially, each handler awaited before the
// next. The first error stops the chain and is returned.
func (h *Hooks[T]) Emit(ctx context.Context, name string, event T) error {
	h.mu.RLock()
	chain := h.chains[name]
	h.mu.RUnlock()

	for _, fn := range chain {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of handlers registered under the name.
func (h *Hooks[T]) Count(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chains[name])
}
