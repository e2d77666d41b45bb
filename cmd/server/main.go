package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seanlumasag/job-application-tracker/internal/audit"
	"github.com/seanlumasag/job-application-tracker/internal/auth"
	"github.com/seanlumasag/job-application-tracker/internal/config"
	"github.com/seanlumasag/job-application-tracker/internal/httpapi"
	"github.com/seanlumasag/job-application-tracker/internal/logger"
	"github.com/seanlumasag/job-application-tracker/internal/ratelimit"
	"github.com/seanlumasag/job-application-tracker/internal/records"
	"github.com/seanlumasag/job-application-tracker/internal/store"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.AppEnv)

	// Secret problems must kill the process before it serves a single
	// request.
	key, err := auth.SigningKey(cfg.JWTSecret, cfg.PermissiveSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("jwt secret rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer closeStore()

	passwords, err := auth.NewPasswordHasher(auth.DefaultPasswordConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("password hasher init failed")
	}

	dispatcher, closeSink, err := buildAudit(cfg, st)
	if err != nil {
		log.Fatal().Err(err).Msg("audit init failed")
	}
	defer func() {
		dispatcher.Close()
		closeSink()
	}()

	tokens := auth.NewTokenManager(key, cfg.AccessTTL)
	authService := auth.NewService(st, tokens, passwords, auth.NewTOTPEngine(cfg.MFAIssuer), dispatcher, auth.ServiceConfig{
		RequireVerifiedEmail: cfg.RequireVerifiedEmail,
		ReturnTokens:         cfg.ReturnTokens,
		RefreshTokenTTL:      cfg.RefreshTTL,
		EmailVerificationTTL: cfg.VerificationTTL,
		PasswordResetTTL:     cfg.ResetTTL,
	})
	recordsService := records.NewService(st, st)

	limiter, closeLimiter := buildLimiter(cfg)
	defer closeLimiter()

	router := httpapi.NewRouter(authService, recordsService, tokens, limiter, dispatcher, log)
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

func buildAudit(cfg *config.Config, st store.Store) (*audit.Dispatcher, func(), error) {
	var sink audit.Sink
	closeSink := func() {}

	switch cfg.AuditSink {
	case "none":
		return nil, closeSink, nil
	case "json":
		sink = audit.NewJSONWriterSink(os.Stdout)
	case "nats":
		natsSink, err := audit.NewNATSSink(cfg.NATSURL, cfg.NATSAuditSubject)
		if err != nil {
			return nil, nil, err
		}
		sink = natsSink
		closeSink = natsSink.Close
	default:
		sink = audit.NewStoreSink(st)
	}

	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    true,
		BufferSize: cfg.AuditBufferSize,
		DropIfFull: true,
	}, sink)
	return dispatcher, closeSink, nil
}

func buildLimiter(cfg *config.Config) (ratelimit.Limiter, func()) {
	buckets := map[string]ratelimit.BucketConfig{
		"auth":      {Limit: cfg.AuthRateLimit, Window: cfg.AuthRateWindow},
		"sensitive": {Limit: cfg.SensitiveRateLimit, Window: cfg.SensitiveRateWindow},
	}
	if cfg.RateLimitBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return ratelimit.NewRedis(client, "rl", buckets), func() { _ = client.Close() }
	}
	return ratelimit.NewMemory(buckets), func() {}
}
