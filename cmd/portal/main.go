package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"pecportal/internal/clubs"
	"pecportal/internal/config"
	"pecportal/internal/events"
	"pecportal/internal/feedback"
	transporthttp "pecportal/internal/http"
	"pecportal/internal/identity"
	"pecportal/internal/notices"
	"pecportal/internal/platform/database"
	"pecportal/internal/platform/logging"
	"pecportal/internal/platform/metrics"
	"pecportal/internal/platform/migrate"
	"pecportal/internal/platform/supabase"
	"pecportal/internal/portal"
	"pecportal/internal/profiles"
)

const (
	outboxKey       = "pecportal:outbox"
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	repos, cleanup, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repositories", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	m := metrics.New()

	var google *identity.OIDCAuthenticator
	if cfg.GoogleSignInEnabled() {
		google, err = identity.NewOIDCAuthenticator(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.GoogleAllowedDomains, cfg.GoogleAllowedEmails)
		if err != nil {
			logger.Error("google sign-in unavailable", "error", err)
			google = nil
		}
	}

	newProvider, err := buildIdentity(cfg, repos, google, logger)
	if err != nil {
		logger.Error("failed to initialize identity", "error", err)
		os.Exit(1)
	}

	outbox, closeOutbox := buildOutbox(ctx, cfg, logger)
	defer closeOutbox()

	writer := portal.NewRemoteWriter(repos.notices, repos.events, repos.clubs)
	clubSvc := clubs.NewService(repos.clubs, repos.profiles)
	opts := portal.Options{
		MaxRetries:  cfg.ProfileRetries,
		NoRetries:   cfg.ProfileRetries == 0,
		Backoff:     cfg.ProfileBackoff,
		SignupDelay: cfg.SignupDelay,
	}

	registry := portal.NewRegistry(func(clientID string) *portal.App {
		return portal.New(clientID, portal.Dependencies{
			Provider: newProvider(),
			Profiles: repos.profiles,
			Notices:  repos.notices,
			Events:   repos.events,
			Clubs:    clubSvc,
			Feedback: repos.feedback,
			Writer:   writer,
			Outbox:   outbox,
			Metrics:  m,
			Logger:   logger,
		}, opts)
	}, cfg.ClientIdleTTL, logger, m)
	defer registry.Close()

	replayer := portal.NewReplayer(outbox, writer, logger, m, registry)
	if cfg.OutboxInterval > 0 {
		go replayer.Run(ctx, cfg.OutboxInterval)
	}
	if cfg.ClientIdleTTL > 0 {
		go registry.RunJanitor(ctx, cfg.ClientIdleTTL/2)
	}

	deps := transporthttp.RouterDeps{Clients: registry, Metrics: m, Logger: logger, Ready: repos.ready}
	if google != nil {
		deps.Google = google
	}
	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("PEC portal listening", "addr", srv.Addr, "store", cfg.DataStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

type repositories struct {
	profiles profiles.Repository
	notices  notices.Repository
	events   events.Repository
	clubs    clubs.Repository
	feedback feedback.Repository
	// accounts is nil when the hosted backend owns identities.
	accounts identity.AccountStore
	api      *supabase.Client
	ready    func(ctx context.Context) error
}

func buildRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (repositories, func(), error) {
	switch {
	case cfg.UseInMemoryStore():
		logger.Info("using in-memory repositories")
		return repositories{
			profiles: profiles.NewInMemoryRepository(seedProfiles()),
			notices:  notices.NewInMemoryRepository(seedNotices()),
			events:   events.NewInMemoryRepository(seedEvents()),
			clubs:    clubs.NewInMemoryRepository(seedClubs(), seedRoster()),
			feedback: feedback.NewInMemoryRepository(),
			accounts: identity.NewInMemoryAccountStore(),
		}, nil, nil

	case cfg.UseHostedBackend():
		api := supabase.New(cfg.BackendURL, cfg.BackendAPIKey,
			supabase.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
		logger.Info("using hosted backend", "url", api.BaseURL())
		return repositories{
			profiles: profiles.NewRESTRepository(api),
			notices:  notices.NewRESTRepository(api),
			events:   events.NewRESTRepository(api),
			clubs:    clubs.NewRESTRepository(api),
			feedback: feedback.NewRESTRepository(api),
			api:      api,
		}, nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return repositories{}, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return repositories{}, nil, err
	}

	logger.Info("connected to postgres")
	return repositories{
		profiles: profiles.NewPostgresRepository(db),
		notices:  notices.NewPostgresRepository(db),
		events:   events.NewPostgresRepository(db),
		clubs:    clubs.NewPostgresRepository(db),
		feedback: feedback.NewPostgresRepository(db),
		accounts: identity.NewPostgresAccountStore(db),
		ready:    func(ctx context.Context) error { return database.Ping(ctx, db) },
	}, cleanup, nil
}

// buildIdentity returns the per-client provider constructor. Hosted mode talks
// to the backend's auth API; otherwise one LocalAuthority serves every client.
func buildIdentity(cfg config.Config, repos repositories, google *identity.OIDCAuthenticator, logger *slog.Logger) (func() identity.Provider, error) {
	if repos.api != nil {
		return func() identity.Provider { return identity.NewGoTrueClient(repos.api) }, nil
	}

	secret := []byte(cfg.BackendJWTKey)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		logger.Warn("SUPABASE_JWT_SECRET not set; sessions will not survive a restart")
	}
	tokens := identity.NewTokenIssuer(secret, "pecportal", accessTokenTTL, refreshTokenTTL)

	opts := []identity.LocalAuthorityOption{identity.WithProfileDelay(cfg.LocalProfileDelay)}
	if google != nil {
		opts = append(opts, identity.WithIDTokenVerifier(google))
	}
	authority := identity.NewLocalAuthority(repos.accounts, tokens, repos.profiles, logger, opts...)

	return func() identity.Provider { return identity.NewLocalProvider(authority) }, nil
}

// buildOutbox uses Redis when configured so queued writes survive restarts.
func buildOutbox(ctx context.Context, cfg config.Config, logger *slog.Logger) (portal.Outbox, func()) {
	if cfg.RedisAddr == "" {
		return portal.NewMemoryOutbox(), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, queuing retries in memory", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return portal.NewMemoryOutbox(), func() {}
	}

	logger.Info("using redis outbox", "addr", cfg.RedisAddr)
	return portal.NewRedisOutbox(client, outboxKey), func() { _ = client.Close() }
}
