// Command bapvault-server starts the bapvault HTTP API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bapkit/bapvault/internal/devicelink"
	"github.com/bapkit/bapvault/internal/limiter"
	"github.com/bapkit/bapvault/internal/linker"
	"github.com/bapkit/bapvault/internal/oauth"
	"github.com/bapkit/bapvault/internal/profile"
	"github.com/bapkit/bapvault/internal/registry"
	"github.com/bapkit/bapvault/internal/server/httpserver"
	"github.com/bapkit/bapvault/internal/session"
	"github.com/bapkit/bapvault/internal/store"
	"github.com/bapkit/bapvault/internal/vault"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, dials the store, and starts the HTTP server.
func main() {
	// Flags
	addr := flag.String("addr", ":8080", "listen address")
	redisURL := flag.String("redis-url", "redis://localhost:6379/0", "Redis URL")
	jwtKey := flag.String("jwt-key", "", "HS256 session signing key (required)")
	sessionTTL := flag.Duration("session-ttl", 24*time.Hour, "session token TTL")
	baseURL := flag.String("base-url", "http://localhost:8080", "public base URL (OAuth redirects, device links)")
	signinURL := flag.String("signin-url", "/signin", "client sign-in URL for forced re-logins")

	googleID := flag.String("google-client-id", "", "Google OAuth client id")
	googleSecret := flag.String("google-client-secret", "", "Google OAuth client secret")
	githubID := flag.String("github-client-id", "", "GitHub OAuth client id")
	githubSecret := flag.String("github-client-secret", "", "GitHub OAuth client secret")
	twitterID := flag.String("twitter-client-id", "", "Twitter OAuth client id")
	twitterSecret := flag.String("twitter-client-secret", "", "Twitter OAuth client secret")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" {
		logger.Fatal("missing session signing key (--jwt-key)")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := store.NewRedisStore(ctx, *redisURL)
	if err != nil {
		logger.Fatal("store.NewRedisStore", zap.Error(err))
	}
	defer func() { _ = kv.Client.Close() }()

	// Services
	links := registry.New(kv)
	backups := vault.New(kv, links, nil)
	profiles := profile.New(kv, logger, nil)
	sessions := session.NewManager([]byte(*jwtKey), *sessionTTL, nil)
	lim := limiter.New(kv, 15*time.Minute, 5)
	providers := oauth.NewClient(map[oauth.Provider]oauth.Credentials{
		oauth.Google:  {ClientID: *googleID, ClientSecret: *googleSecret},
		oauth.GitHub:  {ClientID: *githubID, ClientSecret: *githubSecret},
		oauth.Twitter: {ClientID: *twitterID, ClientSecret: *twitterSecret},
	}, *baseURL+"/auth/link-provider/callback")
	linking := linker.New(kv, links, backups, profiles, sessions, providers, lim, logger)
	tokens := devicelink.New(kv, backups, *baseURL, nil)

	srv := httpserver.New(httpserver.Config{
		Log:       logger,
		Links:     links,
		Backups:   backups,
		Profiles:  profiles,
		Sessions:  sessions,
		Linking:   linking,
		Tokens:    tokens,
		Limiter:   lim,
		SigninURL: *signinURL,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.Start(*addr)
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
