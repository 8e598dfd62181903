package navigation

import (
	"sync"

	"github.com/iconicplus/shell/internal/shared/types"
)

// Controller holds the current navigation mode and the transient
// mobile-overlay flag.
type Controller struct {
	mu          sync.RWMutex
	mode        types.Mode
	overlayOpen bool
	observer    func(types.Mode)
}

// NewController creates a controller starting in chat mode.
func NewController() *Controller {
	return &Controller{mode: types.ModeChat}
}

// WithObserver registers a single observer invoked after every mode
// switch. Intended for the root core to fan state changes out.
func (c *Controller) WithObserver(fn func(types.Mode)) *Controller {
	c.mu.Lock()
	c.observer = fn
	c.mu.Unlock()
	return c
}

// Mode returns the current mode.
func (c *Controller) Mode() types.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SwitchTo sets the mode unconditionally and closes the mobile overlay.
func (c *Controller) SwitchTo(mode types.Mode) {
	c.mu.Lock()
	c.mode = mode
	c.overlayOpen = false
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer(mode)
	}
}

// SetOverlayOpen toggles the transient mobile-navigation overlay.
func (c *Controller) SetOverlayOpen(open bool) {
	c.mu.Lock()
	c.overlayOpen = open
	c.mu.Unlock()
}

// OverlayOpen reports whether the mobile-navigation overlay is open.
func (c *Controller) OverlayOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overlayOpen
}
