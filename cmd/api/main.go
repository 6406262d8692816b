package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumify/internal/ai"
	"resumify/internal/api"
	"resumify/internal/api/middleware"
	"resumify/internal/auth"
	"resumify/internal/billing"
	"resumify/internal/config"
	"resumify/internal/database"
	"resumify/internal/resume"
	"resumify/internal/sanitize"
	"resumify/internal/storage"
	"resumify/internal/templates"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	log.Printf("api bootstrapped with db driver=%s host=%s port=%d db=%s",
		cfg.Database.Driver,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Printf("database connection ready")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	log.Printf("database migrated")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	log.Printf("storage ready, backend=%s", cfg.Uploads.Backend)

	var scanner api.Scanner
	if cfg.Clamd.Addr != "" {
		scanner = api.NewClamdScanner(cfg.Clamd.Addr)
		log.Printf("upload scanning enabled via clamd at %s", cfg.Clamd.Addr)
	}

	aiClient := ai.NewClient(cfg.AI, logger)
	if cfg.AI.ProbeOnStart && aiClient.Configured() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := aiClient.Ping(ctx); err != nil {
			logger.Warn("ai provider probe failed, bios will use the fallback", slog.Any("error", err))
		} else {
			logger.Info("ai provider reachable", slog.String("model", cfg.AI.Model))
		}
		cancel()
	}

	sessions, err := auth.NewSessionService(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		log.Fatalf("init sessions: %v", err)
	}

	sanitizer := sanitize.New()
	writer := ai.NewBioWriter(aiClient, logger)

	app := &api.App{
		Config:      cfg,
		DB:          db,
		Redis:       redisClient,
		Enqueuer:    asynqClient,
		Store:       store,
		Templates:   templates.MustLoad(),
		Sessions:    sessions,
		Revocations: middleware.NewRedisRevocationStore(redisClient),
		Sanitizer:   sanitizer,
		Writer:      writer,
		Generator:   resume.NewGenerator(db, writer, sanitizer),
		Resumes:     resume.NewService(db),
		Ledger:      billing.NewLedger(db),
		Scanner:     scanner,
		Logger:      logger,
	}

	address := fmt.Sprintf(":%d", cfg.API.Port)
	log.Printf("api listening on %s", address)

	router := api.NewRouter(app)
	api.RegisterRoutes(router, app)

	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
