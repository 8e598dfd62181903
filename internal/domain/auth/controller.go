package auth

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/iconicplus/shell/internal/infrastructure/logging"
	"github.com/iconicplus/shell/internal/infrastructure/monitoring"
	"github.com/iconicplus/shell/internal/shared/types"
)

// Provider is the slice of the identity surface the controller needs.
type Provider interface {
	CurrentSession(ctx context.Context) (*types.SessionRecord, error)
	OnSessionChange(fn func(*types.SessionRecord)) func()
	SignOut(ctx context.Context) error
}

// ModeSwitcher moves the shell to a navigation mode on auth transitions.
type ModeSwitcher interface {
	SwitchTo(mode types.Mode)
}

// Controller tracks the authenticated user by projecting provider session
// records. It holds at most one user at a time; every provider event
// replaces the projection wholesale.
type Controller struct {
	mu       sync.RWMutex
	user     *types.User
	provider Provider
	nav      ModeSwitcher
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	unwatch  func()

	subMu       sync.Mutex
	subNextID   int
	subscribers map[int]func(*types.User)
}

// NewController creates an auth controller over the given provider.
func NewController(provider Provider, nav ModeSwitcher, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		provider:    provider,
		nav:         nav,
		logger:      logger,
		subscribers: make(map[int]func(*types.User)),
	}
}

// WithMetrics adds metrics tracking to the controller.
func (c *Controller) WithMetrics(metrics *monitoring.Metrics) *Controller {
	c.metrics = metrics
	return c
}

// Bootstrap queries the provider for the current session, projects it, and
// begins following provider session changes. A provider error or malformed
// record yields the signed-out state rather than a startup failure.
func (c *Controller) Bootstrap(ctx context.Context) {
	rec, err := c.provider.CurrentSession(ctx)
	if err != nil {
		c.logger.Warn("Identity provider unavailable at startup", zap.Error(err))
	}
	c.apply(rec)

	c.mu.Lock()
	if c.unwatch == nil {
		c.unwatch = c.provider.OnSessionChange(c.apply)
	}
	c.mu.Unlock()
}

// apply projects a provider record into the user slot and notifies.
func (c *Controller) apply(rec *types.SessionRecord) {
	user, err := ProjectUser(rec)
	if err != nil {
		c.logger.Warn("Malformed session record, treating as signed out", zap.Error(err))
		user = nil
	}

	c.mu.Lock()
	prev := c.user
	c.user = user
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetUserSignedIn(user != nil)
		switch {
		case prev == nil && user != nil:
			c.metrics.RecordAuthEvent("signed_in")
		case prev != nil && user == nil:
			c.metrics.RecordAuthEvent("signed_out")
		}
	}
	if user != nil {
		c.logger.Info("User signed in", zap.String("user_id", user.ID), zap.String("provider", string(user.Provider)))
	} else if prev != nil {
		c.logger.Info("User signed out")
	}
	c.notify(user)
}

// SignOut clears the local user state and resets navigation to chat mode.
// The provider call runs after the local clear; its failure is logged but
// never blocks the local sign-out.
func (c *Controller) SignOut(ctx context.Context) {
	c.apply(nil)
	if c.nav != nil {
		c.nav.SwitchTo(types.ModeChat)
	}

	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Warn("Provider sign-out failed, local state already cleared", zap.Error(err))
	}
}

// User returns a copy of the authenticated user, or nil when signed out.
func (c *Controller) User() *types.User {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.user == nil {
		return nil
	}
	cp := *c.user
	return &cp
}

// SignedIn reports whether a user is currently authenticated.
func (c *Controller) SignedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil
}

// Stats returns auth controller statistics.
func (c *Controller) Stats() types.AuthStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := types.AuthStats{SignedIn: c.user != nil}
	if c.user != nil {
		id := c.user.ID
		stats.UserID = &id
	}
	return stats
}

// Subscribe registers a callback invoked with the projected user after every
// auth transition; nil means signed out. The disposer is idempotent.
func (c *Controller) Subscribe(fn func(*types.User)) func() {
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

// Close stops following provider session changes.
func (c *Controller) Close() {
	c.mu.Lock()
	unwatch := c.unwatch
	c.unwatch = nil
	c.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
}

func (c *Controller) notify(user *types.User) {
	c.subMu.Lock()
	ids := make([]int, 0, len(c.subscribers))
	for subID := range c.subscribers {
		ids = append(ids, subID)
	}
	sort.Ints(ids)
	fns := make([]func(*types.User), 0, len(ids))
	for _, subID := range ids {
		fns = append(fns, c.subscribers[subID])
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}
