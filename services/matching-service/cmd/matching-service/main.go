package main

import (
	"context"
	"net/http"
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
	"github.com/studymatch/studymatch/services/matching-service/internal/consumer"
	"github.com/studymatch/studymatch/services/matching-service/internal/handlers"
	"github.com/studymatch/studymatch/services/matching-service/internal/inbox"
	"github.com/studymatch/studymatch/services/matching-service/internal/scoring"
	"github.com/studymatch/studymatch/services/matching-service/internal/storage"
	"github.com/studymatch/studymatch/services/matching-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.LoadDotenv()

	service := config.String("SERVICE_NAME", "matching-service")
	port, err := config.Port("PORT", "8082")
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

	redisURL, err := config.RequiredString("REDIS_URL")
	if err != nil {
		panic(err)
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "err", err)
		panic(err)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	scheduleRepo := storage.NewScheduleRepository(pool)
	rankStore := scoring.NewRedisRankStore(rdb, "matches")
	scorer := scoring.New(scheduleRepo, rankStore, logger)

	inboxRepo := inbox.NewRepository(pool)
	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "matching-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "availability.slots.changed.v1"),
	}, func(ctx context.Context, ownerID string, slots []storage.SnapshotSlot) error {
		if err := scheduleRepo.ReplaceOwner(ctx, ownerID, slots); err != nil {
			return err
		}
		return scorer.Rescore(ctx, ownerID)
	})
	go eventConsumer.Run(ctx)

	jwtSecret := config.String("JWT_SECRET", "")
	var jwks *auth.JWKSClient
	if url := config.String("JWKS_URL", ""); url != "" {
		jwks = auth.NewJWKSClient(url, 10*time.Minute)
	}
	provider := identity.NewTokenVerifier(jwtSecret, jwks)

	matchesHandler := handlers.NewMatchesHandler(rankStore, scheduleRepo, logger)
	api := http.NewServeMux()
	api.HandleFunc("/api/v1/matches", matchesHandler.List)
	api.HandleFunc("/api/v1/matches/breakdown", matchesHandler.Breakdown)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/", identity.Middleware(provider)(api))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "matching")
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
