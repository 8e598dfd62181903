// Package lifecycle enforces the conversation floor: an authenticated user
// always has at least one conversation session to land in.
package lifecycle

import (
	"sync"

	"go.uber.org/zap"

	"github.com/iconicplus/shell/internal/infrastructure/logging"
	"github.com/iconicplus/shell/internal/shared/types"
)

// SessionCreator is the store slice the policy drives.
type SessionCreator interface {
	Len() int
	Create() *types.ChatSession
}

// UserSource reports whether a user is signed in.
type UserSource interface {
	SignedIn() bool
}

// Policy watches the store and auth state and creates a replacement session
// whenever a signed-in user would otherwise face an empty collection. It is
// explicitly subscribed by the owning core; nothing runs until Attach.
type Policy struct {
	mu       sync.Mutex
	creating bool
	store    SessionCreator
	users    UserSource
	logger   *logging.Logger

	disposeMu sync.Mutex
	disposers []func()
}

// NewPolicy creates the lifecycle policy.
func NewPolicy(store SessionCreator, users UserSource, logger *logging.Logger) *Policy {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Policy{store: store, users: users, logger: logger}
}

// Subscriber registers a plain change callback and returns a disposer.
// Both the store and the auth controller satisfy it through adapters.
type Subscriber interface {
	Subscribe(fn func()) func()
}

// Attach subscribes the policy to the given change sources and runs an
// initial check. Detach undoes it.
func (p *Policy) Attach(sources ...Subscriber) {
	p.disposeMu.Lock()
	for _, src := range sources {
		p.disposers = append(p.disposers, src.Subscribe(p.Check))
	}
	p.disposeMu.Unlock()

	p.Check()
}

// Detach removes all subscriptions registered by Attach.
func (p *Policy) Detach() {
	p.disposeMu.Lock()
	disposers := p.disposers
	p.disposers = nil
	p.disposeMu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
}

// Check creates one session when a signed-in user has none. The creating
// flag collapses the re-entrant notification the create itself triggers,
// so a burst of empty-state events still yields exactly one session.
func (p *Policy) Check() {
	p.mu.Lock()
	if p.creating {
		p.mu.Unlock()
		return
	}
	if !p.users.SignedIn() || p.store.Len() > 0 {
		p.mu.Unlock()
		return
	}
	p.creating = true
	p.mu.Unlock()

	sess := p.store.Create()
	p.logger.Info("Created replacement conversation", zap.String("session_id", sess.ID))

	p.mu.Lock()
	p.creating = false
	p.mu.Unlock()
}
