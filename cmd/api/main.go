package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"furniture-catalog/internal/config"
	"furniture-catalog/internal/database"
	"furniture-catalog/internal/logger"
	"furniture-catalog/internal/mailer"
	"furniture-catalog/internal/server"
	"furniture-catalog/internal/storage"
	"furniture-catalog/migrations"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// In-flight uploads get 30 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	done <- true
}

// connectRedis returns nil when Redis is disabled or unreachable, which turns
// rate limiting off.
func connectRedis(cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("Redis disabled, rate limiting off")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable, rate limiting off", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

func main() {
	cfg := config.Load()

	log, err := logger.NewWithFile(cfg.Server.Env, logger.FileOptions{
		Filename:   cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting furniture catalog API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	db := dbService.DB()

	log.Info("Database health check", zap.Any("health", dbService.Health()))

	if err := database.RunMigrations(db, migrations.FS, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	if cfg.IsDevelopment() {
		if err := database.GetMigrationStatus(db, migrations.FS); err != nil {
			log.Warn("Failed to read migration status", zap.Error(err))
		}
	}
	log.Info("Database migrations completed successfully")

	var storeOpts []storage.Option
	if !cfg.Uploads.CheckType {
		storeOpts = append(storeOpts, storage.WithoutTypeCheck())
	}
	uploadFS := afero.NewOsFs()
	blobs, err := storage.NewDiskStore(uploadFS, cfg.Uploads.Dir, storeOpts...)
	if err != nil {
		log.Fatal("Failed to prepare upload directory", zap.Error(err))
	}

	notifier := mailer.New(cfg.Mail, log)

	srv := server.NewServer(cfg, log, server.Dependencies{
		Database: dbService,
		Blobs:    blobs,
		UploadFS: uploadFS,
		Redis:    connectRedis(cfg.Redis, log),
		Notifier: notifier,
	})

	if err := srv.StartJobs(); err != nil {
		log.Fatal("Failed to start background jobs", zap.Error(err))
	}

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
