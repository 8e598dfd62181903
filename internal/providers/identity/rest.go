package identity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/iconicplus/shell/internal/infrastructure/logging"
	"github.com/iconicplus/shell/internal/infrastructure/resilience"
	"github.com/iconicplus/shell/internal/shared/types"
)

// ClientConfig configures the hosted identity provider client.
type ClientConfig struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
}

// Client speaks to a hosted gotrue-style auth service. The session-change
// stream is synthesized by polling the /user endpoint and diffing against
// the last observed session.
type Client struct {
	http    *resty.Client
	breaker *resilience.Breaker
	poll    time.Duration
	logger  *logging.Logger

	mu    sync.Mutex
	token string
	last  *types.SessionRecord

	em       emitter
	stop     chan struct{}
	stopOnce sync.Once
}

// userResponse is the provider's /user payload.
type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
	AppMetadata struct {
		Provider string `json:"provider"`
	} `json:"app_metadata"`
}

// NewClient creates a hosted identity client and starts its change poller.
func NewClient(cfg ClientConfig, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	// Retry policy lives in the collaborator's transport, not in the core
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetBaseURL(cfg.BaseURL).
		SetTimeout(15*time.Second).
		SetRetryCount(retryClient.RetryMax).
		SetRetryWaitTime(retryClient.RetryWaitMin).
		SetRetryMaxWaitTime(retryClient.RetryWaitMax).
		SetHeader("User-Agent", "IconicPlus-Shell/1.0")
	if cfg.APIKey != "" {
		restyClient.SetHeader("apikey", cfg.APIKey)
	}
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 30 * time.Second
	}

	// The breaker keeps the poll loop from hammering a dead auth service
	breaker := resilience.New("identity", resilience.Settings{
		Timeout:   2 * poll,
		TripAfter: 3,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Identity circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	c := &Client{
		http:    restyClient,
		breaker: breaker,
		poll:    poll,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	go c.watch()
	return c
}

// SetToken installs the access token produced by an external login flow
// and immediately re-evaluates the session so listeners hear about it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.refresh(context.Background())
}

// CurrentSession fetches the session for the installed token. A missing or
// rejected token is reported as signed out, not as an error.
func (c *Client) CurrentSession(ctx context.Context) (*types.SessionRecord, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	var user userResponse
	var resp *resty.Response
	err := c.breaker.Do(func() error {
		var reqErr error
		resp, reqErr = c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetResult(&user).
			Get("/user")
		return reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("identity provider query failed: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("identity provider query failed: status %d", resp.StatusCode())
	}

	provider := types.AuthProvider(user.AppMetadata.Provider)
	if provider == "" {
		provider = types.ProviderEmail
	}

	return &types.SessionRecord{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.UserMetadata.FullName,
		AvatarURL: user.UserMetadata.AvatarURL,
		Provider:  provider,
		Token:     token,
	}, nil
}

// OnSessionChange registers a listener; the returned disposer stops
// further deliveries and is safe to call more than once.
func (c *Client) OnSessionChange(fn Listener) func() {
	return c.em.subscribe(fn)
}

// SignOut revokes the session upstream and clears the local token. The
// token is cleared even when the upstream call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.last = nil
	c.mu.Unlock()

	c.em.emit(nil)

	if token == "" {
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Post("/logout")
	if err != nil {
		return fmt.Errorf("identity provider sign-out failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("identity provider sign-out failed: status %d", resp.StatusCode())
	}
	return nil
}

// Close stops the change poller.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) watch() {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.refresh(context.Background())
		}
	}
}

// refresh re-queries the session and emits an event when it changed.
func (c *Client) refresh(ctx context.Context) {
	rec, err := c.CurrentSession(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("Session poll failed", zap.Error(err))
		}
		return
	}

	c.mu.Lock()
	changed := sessionChanged(c.last, rec)
	c.last = rec
	c.mu.Unlock()

	if changed {
		c.em.emit(rec)
	}
}

func sessionChanged(prev, next *types.SessionRecord) bool {
	if prev == nil && next == nil {
		return false
	}
	if prev == nil || next == nil {
		return true
	}
	return prev.UserID != next.UserID || prev.Token != next.Token
}
