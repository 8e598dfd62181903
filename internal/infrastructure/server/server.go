// Package server wires the shell core into an HTTP surface: REST routes,
// the WebSocket state stream, and the metrics endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/iconicplus/shell/internal/api/http"
	"github.com/iconicplus/shell/internal/api/middleware"
	"github.com/iconicplus/shell/internal/api/ws"
	"github.com/iconicplus/shell/internal/core"
	"github.com/iconicplus/shell/internal/infrastructure/config"
	"github.com/iconicplus/shell/internal/infrastructure/logging"
	"github.com/iconicplus/shell/internal/infrastructure/monitoring"
	"github.com/iconicplus/shell/internal/infrastructure/tracing"
	"github.com/iconicplus/shell/internal/providers/identity"
	"github.com/iconicplus/shell/internal/providers/storage"
)

// Server owns the HTTP listener and the shell core behind it.
type Server struct {
	router   *gin.Engine
	httpSrv  *http.Server
	core     *core.Core
	identity identity.Provider
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: false,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, fmt.Errorf("invalid log config: %w", err)
		}
	}

	logger.Info("Initializing IconicPlus shell core",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Path),
	)

	metrics := monitoring.NewMetrics()

	kv, err := storage.NewFileKV(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	// A configured identity URL selects the hosted provider; otherwise the
	// in-process email provider serves development and tests
	var (
		provider identity.Provider
		local    *identity.Local
		tokens   apihttp.TokenSetter
	)
	if cfg.Identity.URL != "" {
		client := identity.NewClient(identity.ClientConfig{
			BaseURL:      cfg.Identity.URL,
			APIKey:       cfg.Identity.APIKey,
			PollInterval: time.Duration(cfg.Identity.PollInterval) * time.Second,
		}, logger.Named("identity"))
		provider = client
		tokens = client
		logger.Info("Using hosted identity provider", zap.String("url", cfg.Identity.URL))
	} else {
		local = identity.NewLocal()
		provider = local
		logger.Info("Using in-process identity provider")
	}

	shellCore := core.New(kv, provider, logger.Named("core"), metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracing.New("shell", logger.Logger)))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(shellCore, local, tokens, logger.Named("http"))
	wsHandler := ws.NewHandler(shellCore, logger.Named("ws"), metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/state", handlers.State)
	router.GET("/stats", handlers.Stats)

	router.GET("/sessions", handlers.ListSessions)
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.DeleteSession)
	router.POST("/sessions/:id/select", handlers.SelectSession)
	router.POST("/sessions/:id/messages", handlers.AppendMessage)
	router.PUT("/sessions/:id/title", handlers.RenameSession)
	router.PUT("/sessions/:id/group", handlers.SetGroupMode)

	router.POST("/mode", handlers.SwitchMode)
	router.POST("/overlay", handlers.SetOverlay)

	router.GET("/auth/user", handlers.CurrentUser)
	router.POST("/auth/register", handlers.Register)
	router.POST("/auth/login", handlers.Login)
	router.POST("/auth/token", handlers.InstallToken)
	router.POST("/auth/signout", handlers.SignOut)

	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized")

	return &Server{
		router:   router,
		core:     shellCore,
		identity: provider,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Core exposes the shell core, mainly for tests.
func (s *Server) Core() *core.Core {
	return s.core
}

// Run bootstraps the core and serves until the context is canceled, then
// drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.core.Bootstrap(ctx)

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Close releases the core and the identity provider.
func (s *Server) Close() error {
	s.logger.Info("Shutting down shell core")
	s.core.Close()

	if closer, ok := s.identity.(interface{ Close() }); ok {
		closer.Close()
	}
	s.logger.Sync()
	return nil
}
