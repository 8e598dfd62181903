// Package http exposes the shell core over a REST surface. Every mutation
// goes through the core, so the WebSocket state stream observes it.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iconicplus/shell/internal/core"
	"github.com/iconicplus/shell/internal/infrastructure/logging"
	"github.com/iconicplus/shell/internal/providers/identity"
	"github.com/iconicplus/shell/internal/shared/types"
)

// TokenSetter is implemented by providers whose login flow happens outside
// this process and hands back an access token.
type TokenSetter interface {
	SetToken(token string)
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	core   *core.Core
	local  *identity.Local // nil unless the local email provider is active
	tokens TokenSetter     // nil unless the provider accepts external tokens
	logger *logging.Logger
}

// NewHandlers creates the handler set. local may be nil when identity is
// served by a remote provider; the credential endpoints then return 404.
// tokens may be nil when the provider has no external login flow.
func NewHandlers(c *core.Core, local *identity.Local, tokens TokenSetter, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{core: c, local: local, tokens: tokens, logger: logger}
}

// Root handles GET /
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "iconicplus-shell",
		"version": "1.0.0",
		"status":  "running",
	})
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	if err := h.core.Validate(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// State handles GET /state
func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.core.State())
}

// Stats handles GET /stats
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.core.Stats())
}

// ListSessions handles GET /sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions":          h.core.State().Sessions,
		"active_session_id": h.core.State().ActiveSessionID,
	})
}

// CreateSession handles POST /sessions
func (h *Handlers) CreateSession(c *gin.Context) {
	sess := h.core.CreateSession()
	c.JSON(http.StatusCreated, sess)
}

// GetSession handles GET /sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	sess, ok := h.core.GetSession(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// DeleteSession handles DELETE /sessions/:id
func (h *Handlers) DeleteSession(c *gin.Context) {
	if !h.core.DeleteSession(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deleted":           true,
		"active_session_id": h.core.State().ActiveSessionID,
	})
}

// SelectSession handles POST /sessions/:id/select
func (h *Handlers) SelectSession(c *gin.Context) {
	if !h.core.SelectSession(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_session_id": c.Param("id")})
}

// AppendMessage handles POST /sessions/:id/messages
func (h *Handlers) AppendMessage(c *gin.Context) {
	var msg types.ChatMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message: " + err.Error()})
		return
	}
	if msg.Role != types.RoleUser && msg.Role != types.RoleModel {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be user or model"})
		return
	}

	if !h.core.AppendMessage(c.Param("id"), msg) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"appended": true})
}

type renameRequest struct {
	Title string `json:"title" binding:"required"`
}

// RenameSession handles PUT /sessions/:id/title
func (h *Handlers) RenameSession(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}

	if !h.core.RenameSession(c.Param("id"), req.Title) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"renamed": true})
}

type groupModeRequest struct {
	Enabled bool `json:"enabled"`
}

// SetGroupMode handles PUT /sessions/:id/group
func (h *Handlers) SetGroupMode(c *gin.Context) {
	var req groupModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if !h.core.SetGroupMode(c.Param("id"), req.Enabled) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_mode": req.Enabled})
}

type modeRequest struct {
	Mode types.Mode `json:"mode" binding:"required"`
}

// SwitchMode handles POST /mode
func (h *Handlers) SwitchMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode required"})
		return
	}

	if !h.core.SwitchMode(req.Mode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mode: " + string(req.Mode)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode})
}

type overlayRequest struct {
	Open bool `json:"open"`
}

// SetOverlay handles POST /overlay
func (h *Handlers) SetOverlay(c *gin.Context) {
	var req overlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	h.core.SetOverlayOpen(req.Open)
	c.JSON(http.StatusOK, gin.H{"overlay_open": req.Open})
}

// CurrentUser handles GET /auth/user
func (h *Handlers) CurrentUser(c *gin.Context) {
	user := h.core.User()
	if user == nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// Register handles POST /auth/register
func (h *Handlers) Register(c *gin.Context) {
	if h.local == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "local accounts not enabled"})
		return
	}

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	if err := h.local.Register(req.Email, req.Password, req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"registered": true})
}

// Login handles POST /auth/login
func (h *Handlers) Login(c *gin.Context) {
	if h.local == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "local accounts not enabled"})
		return
	}

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	if _, err := h.local.Login(req.Email, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": h.core.User()})
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// InstallToken handles POST /auth/token. An external login flow (OAuth
// redirect handled by the front-end) posts the resulting access token here;
// the provider's change stream then signs the user in.
func (h *Handlers) InstallToken(c *gin.Context) {
	if h.tokens == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "external token login not enabled"})
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}

	h.tokens.SetToken(req.Token)
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

// SignOut handles POST /auth/signout
func (h *Handlers) SignOut(c *gin.Context) {
	h.core.SignOut(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"signed_out": true})
}
