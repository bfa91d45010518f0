package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"furniture-catalog/internal/config"
	"furniture-catalog/internal/database"
	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/jobs"
	custommiddleware "furniture-catalog/internal/middleware"
	"furniture-catalog/internal/repository"
	"furniture-catalog/internal/service"
	"furniture-catalog/internal/storage"
	"furniture-catalog/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Dependencies are the external resources the server is built on
type Dependencies struct {
	Database *database.Service
	Blobs    storage.BlobStore
	// UploadFS holds the blob directory served under /uploads/
	UploadFS afero.Fs
	// Redis enables rate limiting on auth and contact routes when set
	Redis    *redis.Client
	Notifier service.Notifier
}

type Server struct {
	*http.Server
	config *config.Config
	logger  *zap.Logger
	deps    Dependencies
	sweeper *jobs.OrphanSweeper
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := deps.Database.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	uploads := http.StripPrefix("/uploads/", http.FileServer(afero.NewHttpFs(deps.UploadFS).Dir(cfg.Uploads.Dir)))
	router.Get("/uploads/*", func(w http.ResponseWriter, r *http.Request) {
		// no directory listings
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		uploads.ServeHTTP(w, r)
	})

	db := deps.Database.DB()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	productRepo := repository.NewProductRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	imageSetRepo := repository.NewImageSetRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, service.AuthOptions{
		SingleUser: cfg.Auth.SingleUser,
		TokenTTL:   time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
	})
	catalogService := service.NewCatalogService(catalogRepo, productRepo, attachmentRepo, deps.Blobs, logger)
	productService := service.NewProductService(productRepo, catalogRepo, attachmentRepo, deps.Blobs, logger)
	contactService := service.NewContactService(deps.Notifier, cfg.Mail.To, logger)

	// Mutations need an admin token
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	requireAdmin := custommiddleware.RequireAdmin(logger)
	admin := func(next http.Handler) http.Handler {
		return authMiddleware(requireAdmin(next))
	}

	maxMemory := cfg.Uploads.MaxMemory

	router.Group(func(r chi.Router) {
		if cfg.Uploads.MaxBodyBytes > 0 {
			r.Use(middleware.RequestSize(cfg.Uploads.MaxBodyBytes))
		}

		transport.NewAuthHandler(authService, logger).RegisterRoutes(r, rateLimit(cfg, deps.Redis, "auth", logger))
		transport.NewContactHandler(contactService, logger).RegisterRoutes(r, rateLimit(cfg, deps.Redis, "contact", logger))

		for _, kind := range domain.CatalogKinds {
			transport.NewCatalogHandler(kind, catalogService, maxMemory, logger).RegisterRoutes(r, admin)
		}

		transport.NewProductHandler(productService, maxMemory, logger).RegisterRoutes(r, admin)

		for _, kind := range domain.AttachmentKinds {
			attachmentService := service.NewAttachmentService(kind, attachmentRepo, productRepo, catalogRepo, deps.Blobs, logger)
			transport.NewAttachmentHandler(attachmentService, maxMemory, logger).RegisterRoutes(r, admin)
		}

		for _, placement := range []domain.Placement{domain.PlacementHomepage, domain.PlacementMobile} {
			imageSetService := service.NewImageSetService(placement, imageSetRepo, deps.Blobs, logger)
			transport.NewImageSetHandler(imageSetService, maxMemory, logger).RegisterRoutes(r, admin)
		}
	})

	// Every table holding image urls keeps its blobs out of the sweep
	sweeper := jobs.NewOrphanSweeper(deps.Blobs, cfg.Sweeper.Grace, logger,
		catalogRepo, productRepo, attachmentRepo, imageSetRepo)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		deps:    deps,
		sweeper: sweeper,
	}
}

// StartJobs schedules the orphaned image sweep
func (s *Server) StartJobs() error {
	return s.sweeper.Start(s.config.Sweeper.Schedule)
}

// rateLimit returns nil when Redis is not configured
func rateLimit(cfg *config.Config, client *redis.Client, scope string, logger *zap.Logger) func(http.Handler) http.Handler {
	if client == nil || cfg.Redis.RateLimit <= 0 {
		return nil
	}
	return custommiddleware.RateLimitMiddleware(client, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.Redis.RateLimit,
		Window:            cfg.Redis.RateWindow,
		KeyPrefix:         "ratelimit:" + scope,
	}, logger)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.sweeper.Stop(ctx)

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.deps.Database != nil {
		if err := s.deps.Database.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
