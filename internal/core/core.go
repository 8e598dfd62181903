// Package core assembles the shell state: navigation, auth, and the
// conversation store, wired together behind one explicit context object.
// Nothing here is process-global; callers construct a Core, bootstrap it,
// and close it.
package core

import (
	"context"
	"sort"
	"sync"

	"github.com/iconicplus/shell/internal/domain/auth"
	"github.com/iconicplus/shell/internal/domain/lifecycle"
	"github.com/iconicplus/shell/internal/domain/navigation"
	"github.com/iconicplus/shell/internal/domain/session"
	"github.com/iconicplus/shell/internal/infrastructure/logging"
	"github.com/iconicplus/shell/internal/infrastructure/monitoring"
	"github.com/iconicplus/shell/internal/providers/identity"
	"github.com/iconicplus/shell/internal/shared/types"
)

// State is a consistent snapshot of everything the presentation layer
// renders. Snapshots are value copies; mutating one never touches the core.
type State struct {
	User            *types.User         `json:"user"`
	Mode            types.Mode          `json:"mode"`
	Sessions        []types.ChatSession `json:"sessions"`
	ActiveSessionID string              `json:"active_session_id"`
	OverlayOpen     bool                `json:"overlay_open"`
}

// Stats aggregates per-component statistics.
type Stats struct {
	Auth     types.AuthStats    `json:"auth"`
	Sessions types.SessionStats `json:"sessions"`
	Mode     types.Mode         `json:"mode"`
}

// Core owns the shell state components and fans their changes out to
// subscribers as full State snapshots.
type Core struct {
	nav    *navigation.Controller
	store  *session.Store
	auth   *auth.Controller
	policy *lifecycle.Policy
	logger *logging.Logger

	subMu       sync.Mutex
	subNextID   int
	subscribers map[int]func(State)

	closeOnce sync.Once
	disposers []func()
}

// New wires a core over the given storage and identity provider.
func New(kv session.KV, provider identity.Provider, logger *logging.Logger, metrics *monitoring.Metrics) *Core {
	if logger == nil {
		logger = logging.NewNop()
	}

	c := &Core{
		logger:      logger,
		subscribers: make(map[int]func(State)),
	}

	c.nav = navigation.NewController().WithObserver(func(types.Mode) { c.publish() })
	c.store = session.NewStore(kv, c.nav, logger.Named("session"))
	c.auth = auth.NewController(provider, c.nav, logger.Named("auth"))
	if metrics != nil {
		c.store.WithMetrics(metrics)
		c.auth.WithMetrics(metrics)
	}
	c.policy = lifecycle.NewPolicy(c.store, c.auth, logger.Named("lifecycle"))

	c.disposers = append(c.disposers,
		c.store.Subscribe(func() { c.publish() }),
		c.auth.Subscribe(func(*types.User) { c.publish() }),
	)
	return c
}

// Bootstrap restores persisted sessions, resolves the current identity, and
// attaches the lifecycle policy. Call once before serving.
func (c *Core) Bootstrap(ctx context.Context) {
	c.store.Restore()
	c.auth.Bootstrap(ctx)
	c.policy.Attach(c.store, authSource{c.auth})
	c.logger.Info("Shell core ready")
}

// Close detaches the lifecycle policy and stops following the identity
// provider. Idempotent.
func (c *Core) Close() {
	c.closeOnce.Do(func() {
		c.policy.Detach()
		c.auth.Close()
		for _, dispose := range c.disposers {
			dispose()
		}
	})
}

// State returns a snapshot of the current shell state.
func (c *Core) State() State {
	return State{
		User:            c.auth.User(),
		Mode:            c.nav.Mode(),
		Sessions:        c.store.Sessions(),
		ActiveSessionID: c.store.ActiveID(),
		OverlayOpen:     c.nav.OverlayOpen(),
	}
}

// Stats returns aggregated component statistics.
func (c *Core) Stats() Stats {
	return Stats{
		Auth:     c.auth.Stats(),
		Sessions: c.store.Stats(),
		Mode:     c.nav.Mode(),
	}
}

// Subscribe registers a snapshot callback fired after every state change.
// The disposer is idempotent.
func (c *Core) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	subID := c.subNextID
	c.subNextID++
	c.subscribers[subID] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subscribers, subID)
			c.subMu.Unlock()
		})
	}
}

// CreateSession starts a new conversation and makes it active.
func (c *Core) CreateSession() *types.ChatSession {
	return c.store.Create()
}

// DeleteSession removes a conversation by id.
func (c *Core) DeleteSession(id string) bool {
	return c.store.Delete(id)
}

// SelectSession makes a conversation active and switches to chat mode.
func (c *Core) SelectSession(id string) bool {
	return c.store.Select(id)
}

// AppendMessage appends a message to a conversation.
func (c *Core) AppendMessage(id string, msg types.ChatMessage) bool {
	return c.store.AppendMessage(id, msg)
}

// RenameSession retitles a conversation.
func (c *Core) RenameSession(id, title string) bool {
	return c.store.Rename(id, title)
}

// SetGroupMode flips the group-conversation flag on a conversation.
func (c *Core) SetGroupMode(id string, on bool) bool {
	return c.store.SetGroupMode(id, on)
}

// GetSession retrieves one conversation by id.
func (c *Core) GetSession(id string) (*types.ChatSession, bool) {
	return c.store.Get(id)
}

// SwitchMode moves the shell to the given navigation mode.
func (c *Core) SwitchMode(mode types.Mode) bool {
	if !mode.Valid() {
		return false
	}
	c.nav.SwitchTo(mode)
	return true
}

// SetOverlayOpen toggles the mobile navigation overlay.
func (c *Core) SetOverlayOpen(open bool) {
	c.nav.SetOverlayOpen(open)
	c.publish()
}

// SignOut clears the local auth state and resets navigation to chat.
func (c *Core) SignOut(ctx context.Context) {
	c.auth.SignOut(ctx)
}

// User returns the authenticated user, or nil.
func (c *Core) User() *types.User {
	return c.auth.User()
}

// Validate reports internal consistency problems. Used by health checks.
func (c *Core) Validate() error {
	return c.store.Validate()
}

// publish snapshots the state and delivers it to subscribers in
// registration order.
func (c *Core) publish() {
	c.subMu.Lock()
	ids := make([]int, 0, len(c.subscribers))
	for subID := range c.subscribers {
		ids = append(ids, subID)
	}
	sort.Ints(ids)
	fns := make([]func(State), 0, len(ids))
	for _, subID := range ids {
		fns = append(fns, c.subscribers[subID])
	}
	c.subMu.Unlock()

	if len(fns) == 0 {
		return
	}
	snapshot := c.State()
	for _, fn := range fns {
		fn(snapshot)
	}
}

// authSource adapts the auth controller's typed subscription to the plain
// change-callback shape the lifecycle policy consumes.
type authSource struct {
	auth *auth.Controller
}

func (a authSource) Subscribe(fn func()) func() {
	return a.auth.Subscribe(func(*types.User) { fn() })
}
