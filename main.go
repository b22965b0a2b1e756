package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/traillog/traillog/backend/go-services/handlers"
	"github.com/traillog/traillog/backend/go-services/internal/app"
	"github.com/traillog/traillog/backend/go-services/internal/config"
	"github.com/traillog/traillog/backend/go-services/internal/email"
	"github.com/traillog/traillog/backend/go-services/internal/oidc"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
	"github.com/traillog/traillog/backend/go-services/internal/restaurants"
	"github.com/traillog/traillog/backend/go-services/internal/sessions"
	"github.com/traillog/traillog/backend/go-services/internal/storage"
	"github.com/traillog/traillog/backend/go-services/internal/tokens"
	"github.com/traillog/traillog/backend/go-services/internal/trips"
	"github.com/traillog/traillog/backend/go-services/internal/users"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
	"github.com/traillog/traillog/backend/go-services/pkg/metrics"
	"github.com/traillog/traillog/backend/go-services/pkg/middleware"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The document store is mandatory: configuration and connection errors stop the process.
	backend, err := persistence.Open(ctx, persistence.Settings{
		URI:              cfg.MongoDB.URI,
		Database:         cfg.MongoDB.Database,
		CollectionSuffix: cfg.MongoDB.CollectionSuffix,
		Timeout:          cfg.MongoDB.Timeout,
	})
	if err != nil {
		logger.Fatalf("document store unavailable: %v", err)
	}
	defer func() { _ = backend.Close(context.Background()) }()

	stores, err := app.OpenMongoStores(ctx, backend)
	if err != nil {
		logger.Fatalf("failed to open stores: %v", err)
	}
	if cfg.Migration.OnStart {
		if _, err := app.Migrate(ctx, stores, cfg.Migration); err != nil {
			logger.Errorf("schema migration finished with errors: %v", err)
		}
	}

	checks := map[string]handlers.ReadinessCheck{"mongodb": backend.Ping}

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		} else {
			logger.Infof("connected to Redis %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		defer func() { _ = redisClient.Close() }()
	}

	// Sessions live in Redis when configured, otherwise in the document store.
	var sessionRepo sessions.Repository = sessions.NewStoreRepository(stores.Sessions)
	if redisClient != nil {
		sessionRepo = sessions.NewRedisRepository(redisClient, "")
	}
	blacklist := sessions.NewBlacklist(redisClient)

	var images trips.ImageStore
	if cfg.MinIO.Endpoint != "" {
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("image storage disabled: %v", err)
		} else {
			images = st
		}
	}

	issuer, err := tokens.NewIssuer(jwtConfig(cfg))
	if err != nil {
		logger.Fatalf("token issuer: %v", err)
	}
	verifiers := middleware.ChainVerifier{issuer}
	if cfg.OIDC.Issuer != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.OIDC)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifiers = append(verifiers, ver)
		}
	}

	userSvc := users.NewService(stores.Users, stores.Trips, email.NewSender(cfg.Email))
	if _, err := userSvc.Sentinel(ctx); err != nil {
		logger.Warnf("sentinel user not initialized: %v", err)
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	router := handlers.NewRouter(handlers.Deps{
		Users:       userSvc,
		Trips:       trips.NewService(stores.Trips, stores.Restaurants, userSvc, images),
		Restaurants: restaurants.NewService(stores.Restaurants),
		Sessions:    sessions.NewService(sessionRepo),
		Issuer:      issuer,
		Blacklist:   blacklist,
		Verifier:    verifiers,
		RefreshTTL:  cfg.JWT.RefreshTokenTTL,
		RateLimit:   rateLimit(cfg, redisClient),
		Checks:      checks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting traillog service on %s (env=%s)", srv.Addr, cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// jwtConfig fills in a random per-process secret outside production so local
// runs work without JWT_SECRET. Tokens then do not survive a restart.
func jwtConfig(cfg *config.Config) config.JWTConfig {
	jc := cfg.JWT
	if jc.Secret != "" || cfg.Server.Environment == "production" {
		return jc
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.Fatalf("generate jwt secret: %v", err)
	}
	jc.Secret = hex.EncodeToString(b)
	logger.Warnf("JWT_SECRET not set, using an ephemeral secret")
	return jc
}

func rateLimit(cfg *config.Config, client *redis.Client) gin.HandlerFunc {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	if cfg.RateLimit.UseRedis && client != nil {
		win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		return middleware.RedisRateLimitMiddleware(client, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
	}
	return middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}
