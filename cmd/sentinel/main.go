package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sentinelpay/sentinel/internal/alerts"
	"github.com/sentinelpay/sentinel/internal/attribution"
	"github.com/sentinelpay/sentinel/internal/config"
	"github.com/sentinelpay/sentinel/internal/explain"
	"github.com/sentinelpay/sentinel/internal/features"
	"github.com/sentinelpay/sentinel/internal/patterns"
	"github.com/sentinelpay/sentinel/internal/profile"
	"github.com/sentinelpay/sentinel/internal/risk"
	"github.com/sentinelpay/sentinel/internal/scoring"
	"github.com/sentinelpay/sentinel/internal/server"
	"github.com/sentinelpay/sentinel/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	shutdownTracing, err := initTracing()
	if err != nil {
		zapLogger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Profile store: durable Postgres when configured, otherwise in-memory,
	// with a Redis read-through cache in front when Redis is reachable.
	var store profile.Store
	if cfg.Postgres.DSN != "" {
		db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
		if err != nil {
			zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		store, err = profile.NewPostgresStore(db)
		if err != nil {
			zapLogger.Fatal("Failed to initialize profile store", zap.Error(err))
		}
	} else {
		zapLogger.Warn("no postgres DSN configured, profiles are in-memory only")
		store = profile.NewMemoryStore()
	}

	var lookup features.RiskLookup = features.NewStaticLookup()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("redis unreachable, caching disabled", zap.Error(err))
	} else {
		store = profile.NewCachedStore(store, redisClient, cfg.Redis.CacheTTL, zapLogger)
		lookup = features.NewCachedLookup(lookup, redisClient, cfg.Redis.CacheTTL*24, zapLogger)
	}

	model := scoring.Load(cfg.Scoring.ModelPath, zapLogger)
	classifier, err := scoring.NewClassifier(cfg.Scoring.Thresholds)
	if err != nil {
		zapLogger.Fatal("Invalid risk thresholds", zap.Error(err))
	}

	hub := server.NewHub(zapLogger)
	var publisher *alerts.Publisher
	if cfg.Kafka.Enabled {
		publisher = alerts.NewPublisher(cfg.Kafka.Brokers, zapLogger)
		defer publisher.Close()
	}
	var kafkaSink risk.AlertSink
	if publisher != nil {
		kafkaSink = publisher
	}

	svc := risk.NewService(
		store,
		features.NewExtractor(lookup),
		model,
		classifier,
		attribution.NewEngine(model, zapLogger),
		explain.NewComposer(zapLogger),
		patterns.NewDetector(patterns.Config{MaxBatch: cfg.Patterns.MaxBatch}, zapLogger),
		risk.CombineSinks(kafkaSink, hub),
		zapLogger,
	)

	srv := server.NewServer(zapLogger, svc, hub, cfg.Server)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		zapLogger.Error("Tracer shutdown failed", zap.Error(err))
	}
}

func initTracing() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
