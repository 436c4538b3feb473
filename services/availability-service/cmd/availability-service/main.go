package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/studymatch/studymatch/libs/auth"
	"github.com/studymatch/studymatch/libs/config"
	"github.com/studymatch/studymatch/libs/db"
	"github.com/studymatch/studymatch/libs/httpx"
	"github.com/studymatch/studymatch/libs/identity"
	"github.com/studymatch/studymatch/libs/kafkax"
	otelx "github.com/studymatch/studymatch/libs/otel"
	"github.com/studymatch/studymatch/libs/runtime"
	"github.com/studymatch/studymatch/services/availability-service/internal/handlers"
	"github.com/studymatch/studymatch/services/availability-service/internal/manager"
	"github.com/studymatch/studymatch/services/availability-service/internal/outbox"
	"github.com/studymatch/studymatch/services/availability-service/internal/storage"
	"github.com/studymatch/studymatch/services/availability-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.LoadDotenv()

	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations.FS, "."); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	}

	outboxRepo := outbox.NewRepository(pool)
	slotRepo := storage.NewSlotRepository(pool, outboxRepo)
	slotManager := manager.New(slotRepo, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	jwtSecret := config.String("JWT_SECRET", "")
	var jwks *auth.JWKSClient
	if url := config.String("JWKS_URL", ""); url != "" {
		jwks = auth.NewJWKSClient(url, 10*time.Minute)
	}
	provider := identity.NewTokenVerifier(jwtSecret, jwks)

	availabilityHandler := handlers.NewAvailabilityHandler(slotManager, logger)
	api := http.NewServeMux()
	api.HandleFunc("/api/v1/availability", availabilityHandler.Slots)
	api.HandleFunc("/api/v1/availability/grid", availabilityHandler.Grid)
	api.HandleFunc("/api/v1/availability/slot", availabilityHandler.Slot)
	api.HandleFunc("/api/v1/availability/overlap", availabilityHandler.Overlap)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/", identity.Middleware(provider)(api))

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	limiter := rateLimitMiddleware(logger, rateLimit)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
		limiter,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// rateLimitMiddleware prefers the shared Redis window when REDIS_URL is set
// so limits hold across replicas, falling back to the in-process limiter.
func rateLimitMiddleware(logger *slog.Logger, perMinute int) httpx.Middleware {
	redisURL := config.String("REDIS_URL", "")
	if redisURL == "" {
		return httpx.NewRateLimiter(perMinute, time.Minute).Middleware()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL; using in-memory rate limiter", "err", err)
		return httpx.NewRateLimiter(perMinute, time.Minute).Middleware()
	}
	rdb := redis.NewClient(opts)
	return httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "rl:availability").
		Middleware(logger, true)
}
