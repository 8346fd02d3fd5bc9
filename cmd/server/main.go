package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/AnupamNeon/Chat-app/internal/blob"
	"github.com/AnupamNeon/Chat-app/internal/config"
	"github.com/AnupamNeon/Chat-app/internal/handler"
	"github.com/AnupamNeon/Chat-app/internal/realtime"
	"github.com/AnupamNeon/Chat-app/internal/repository"
	"github.com/AnupamNeon/Chat-app/internal/router"
	"github.com/AnupamNeon/Chat-app/internal/service"
	"github.com/AnupamNeon/Chat-app/internal/workerpool"
	"github.com/AnupamNeon/Chat-app/pkg/jwt"
	"github.com/AnupamNeon/Chat-app/pkg/response"
	"github.com/AnupamNeon/Chat-app/pkg/snowflake"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	response.SetDebug(cfg.App.Mode != "release")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	if err := repository.Migrate(ctx, db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	jwtService := jwt.NewService(cfg.JWT.SecretKey, cfg.JWT.Expire, cfg.App.Name)

	sfNode, err := snowflake.NewNode(cfg.App.NodeID)
	if err != nil {
		logger.Error("Failed to create snowflake node", "error", err)
		os.Exit(1)
	}

	blobStore, err := blob.NewLocalStore(cfg.Blob.Dir, cfg.Blob.BaseURL, cfg.Blob.MaxBytes)
	if err != nil {
		logger.Error("Failed to prepare upload dir", "error", err)
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	tokenRepo := repository.NewTokenRepository(redisClient)

	pool := workerpool.New(cfg.Realtime.Workers, cfg.Realtime.QueueSize, logger)
	defer pool.Shutdown()

	hub := realtime.NewHub(realtime.NewMemoryRegistry(), userRepo, pool, logger)
	if cfg.NATS.Enabled {
		bridge, err := realtime.NewNATSBridge(cfg.NATS, strconv.FormatInt(cfg.App.NodeID, 10), logger)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer bridge.Close()
		if err := bridge.Start(hub); err != nil {
			logger.Error("Failed to start NATS bridge", "error", err)
			os.Exit(1)
		}
		hub.SetBridge(bridge)
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}

	authService := service.NewAuthService(userRepo, tokenRepo, jwtService, blobStore, sfNode, cfg.Blob.UploadTimeout)
	messageService := service.NewMessageService(convRepo, userRepo, blobStore, hub, sfNode, cfg.Blob.UploadTimeout)
	userService := service.NewUserService(userRepo, convRepo, hub)

	authHandler := handler.NewAuthHandler(authService, cfg.JWT.Expire, cfg.App.Mode == "release")
	messageHandler := handler.NewMessageHandler(messageService)
	userHandler := handler.NewUserHandler(userService)
	realtimeHandler := handler.NewRealtimeHandler(authService, hub, cfg.Realtime, cfg.CORS.AllowedOrigins, logger)

	r := router.Setup(cfg, logger, authService, authHandler, messageHandler, userHandler, realtimeHandler, blobStore.Dir())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: r,
	}
	go func() {
		logger.Info("Server started", "addr", srv.Addr, "mode", cfg.App.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
	cancel()
	logger.Info("Server stopped")
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}

func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
