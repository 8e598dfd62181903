// Package navigation owns the top-level mode of the shell.
//
// The controller holds exactly one active mode at a time. Switching is
// unconditional (any mode is reachable from any mode) and also closes the
// transient mobile-overlay flag so a stale overlay never survives a mode
// change. Pre-authentication gating to the login view is the presentation
// layer's responsibility; the controller does not special-case it.
package navigation
