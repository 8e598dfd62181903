package identity

import (
	"context"
	"sort"
	"sync"

	"github.com/iconicplus/shell/internal/shared/types"
)

// Listener receives session-change events. A nil record means signed out.
// Declared as an alias so consumers can state the same signature in their
// own narrow interfaces without importing this package.
type Listener = func(*types.SessionRecord)

// Provider is the identity-provider surface the core consumes.
type Provider interface {
	// CurrentSession returns the active session, or nil when signed out.
	CurrentSession(ctx context.Context) (*types.SessionRecord, error)

	// OnSessionChange registers a listener for session changes and returns
	// a disposer. Disposal is idempotent and stops further deliveries.
	OnSessionChange(fn Listener) func()

	// SignOut revokes the active session with the provider.
	SignOut(ctx context.Context) error
}

// emitter fans session-change events out to registered listeners.
// Events are delivered sequentially in registration order.
type emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func (e *emitter) subscribe(fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[int]Listener)
	}
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

func (e *emitter) emit(rec *types.SessionRecord) {
	e.mu.Lock()
	fns := make([]Listener, 0, len(e.listeners))
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	// Map iteration order is random; deliver in registration order
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, e.listeners[id])
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(rec)
	}
}
