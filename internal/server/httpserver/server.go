// Package httpserver exposes the bapvault HTTP API.
package httpserver

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bapkit/bapvault/internal/devicelink"
	"github.com/bapkit/bapvault/internal/limiter"
	"github.com/bapkit/bapvault/internal/linker"
	"github.com/bapkit/bapvault/internal/profile"
	"github.com/bapkit/bapvault/internal/registry"
	"github.com/bapkit/bapvault/internal/session"
	"github.com/bapkit/bapvault/internal/vault"
)

// Server wires services into HTTP handlers.
type Server struct {
	echo     *echo.Echo
	log      *zap.Logger
	links    registry.Registry
	backups  vault.Vault
	profiles profile.Service
	sessions *session.Manager
	linking  linker.Orchestrator
	tokens   devicelink.Service
	lim      limiter.Limiter

	// signinURL is where clients are sent when a post-link session
	// restoration fails.
	signinURL string
}

// Config collects the server's collaborators.
type Config struct {
	Log       *zap.Logger
	Links     registry.Registry
	Backups   vault.Vault
	Profiles  profile.Service
	Sessions  *session.Manager
	Linking   linker.Orchestrator
	Tokens    devicelink.Service
	Limiter   limiter.Limiter
	SigninURL string
}

// New constructs the server and registers all routes.
func New(cfg Config) *Server {
	s := &Server{
		echo:      echo.New(),
		log:       cfg.Log,
		links:     cfg.Links,
		backups:   cfg.Backups,
		profiles:  cfg.Profiles,
		sessions:  cfg.Sessions,
		linking:   cfg.Linking,
		tokens:    cfg.Tokens,
		lim:       cfg.Limiter,
		signinURL: cfg.SigninURL,
	}
	if s.signinURL == "" {
		s.signinURL = "/signin"
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(s.recoverPanic, s.requestLogger)
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/healthz", s.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/backup", s.handleBackupUpsert, s.requireAuth)
	e.GET("/backup", s.handleBackupFetch)
	e.GET("/backup/status", s.handleBackupStatus)

	e.POST("/users", s.handleUserCreate, s.requireAuth)
	e.GET("/users/:bapId", s.handleUserGet)
	e.GET("/users/by-address/:address", s.handleUserByAddress)
	e.POST("/users/profile", s.handleProfileUpdate, s.requireAuth)
	e.POST("/users/transfer-oauth", s.handleTransferOAuth, s.requireSession)
	e.POST("/users/disconnect", s.handleDisconnect, s.requireSession)

	e.GET("/auth/link-provider", s.handleLinkBegin, s.requireSession)
	e.GET("/auth/link-provider/callback", s.handleLinkCallback)
	e.POST("/auth/link-provider/switch", s.handleLinkSwitch)

	e.POST("/device-link/generate", s.handleDeviceLinkGenerate, s.requireAuth)
	e.POST("/device-link/validate", s.handleDeviceLinkValidate)

	e.POST("/member-export/generate", s.handleExportGenerate, s.requireSession)
	e.POST("/member-export/validate", s.handleExportValidate)
	e.POST("/member-export/download", s.handleExportDownload)
}

// Echo exposes the underlying router, for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start begins serving on addr and blocks.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(200, echo.Map{"status": "ok"})
}
