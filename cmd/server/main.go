package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/cors"

	"github.com/sketchstacker/server/internal/config"
	"github.com/sketchstacker/server/internal/gallery"
	"github.com/sketchstacker/server/internal/handlers"
	"github.com/sketchstacker/server/internal/manifest"
	"github.com/sketchstacker/server/internal/observability"
	"github.com/sketchstacker/server/internal/repository"
	"github.com/sketchstacker/server/internal/services"
	"github.com/sketchstacker/server/internal/storage"
)

const serviceName = "sketchstacker-server"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	telemetry, err := observability.Initialize(ctx, observability.Config{
		ServiceName:    serviceName,
		ServiceVersion: handlers.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	businessMetrics, err := observability.NewBusinessMetrics()
	if err != nil {
		log.Fatalf("Failed to create business metrics: %v", err)
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Fatalf("Failed to create HTTP metrics: %v", err)
	}

	// Initialize database and repository
	db, uploadRepo := openDatabase(cfg)
	defer db.Close()

	// Initialize object store
	var awsCfg aws.Config
	var store storage.ObjectStore
	switch cfg.Storage.Backend {
	case config.BackendS3:
		opts := storage.S3Options{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
		}
		awsCfg, err = storage.LoadAWSConfig(ctx, opts)
		if err != nil {
			log.Fatalf("Failed to load AWS configuration: %v", err)
		}
		s3Store, err := storage.NewS3Store(awsCfg, opts)
		if err != nil {
			log.Fatalf("Failed to initialize S3 store: %v", err)
		}
		store = s3Store
		log.Printf("Using S3 bucket %s", cfg.Storage.Bucket)
	default:
		localStore, err := storage.NewLocalStore(cfg.Storage.BasePath)
		if err != nil {
			log.Fatalf("Failed to initialize local store: %v", err)
		}
		store = localStore
		log.Printf("Using local store at %s", cfg.Storage.BasePath)
	}

	// Initialize services
	hub := services.NewWebSocketHub()
	go hub.Run()

	var invalidator manifest.Invalidator
	if cfg.CDN.DistributionID != "" {
		invalidator = manifest.NewCloudFrontInvalidator(awsCfg, cfg.CDN.DistributionID)
	}
	publisher := manifest.NewPublisher(store, cfg.Manifest.Key, invalidator, hub, businessMetrics)

	// The viewer reads the CDN copy when one is configured, the store otherwise
	var manifestClient gallery.ManifestClient
	if cfg.Manifest.SourceURL != "" {
		manifestClient = manifest.NewHTTPClient(cfg.Manifest.SourceURL, cfg.Manifest.FetchTimeout.Duration, businessMetrics)
	} else {
		manifestClient = manifest.NewStoreClient(store, cfg.Manifest.Key, businessMetrics)
	}

	sessionConfig := gallery.SessionConfig{
		BatchSize: cfg.Gallery.BatchSize,
		Exclude:   cfg.ExcludeList(),
		Location:  cfg.Location(),
	}
	sessions := services.NewSessionCache(cfg.Gallery.SessionTTL.Duration, cfg.Gallery.MaxSessions, func() *gallery.Session {
		return gallery.NewSession(manifestClient, sessionConfig)
	}, businessMetrics)
	defer sessions.Close()

	imageService := services.NewImageService()
	uploadService := services.NewUploadService(
		store,
		uploadRepo,
		imageService,
		services.NewHashService(),
		publisher,
		hub,
		businessMetrics,
		services.UploadConfig{
			MaxBytes:     cfg.MaxUploadBytes(),
			StorageClass: cfg.Storage.StorageClass,
			ManifestKey:  cfg.Manifest.Key,
			PublicURL:    cfg.PublicURL,
		},
	)

	// Viewers should see the current store contents even before the first upload
	if _, err := publisher.Publish(ctx); err != nil {
		observability.Warnf("Initial manifest publish failed: %v", err)
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, store)
	uploadHandler := handlers.NewUploadHandler(uploadService, cfg.MaxUploadBytes())
	manifestHandler := handlers.NewManifestHandler(publisher)
	viewerHandler := handlers.NewViewerHandler(
		sessions,
		store,
		imageService,
		cfg.PublicURL,
		cfg.Gallery.SessionTTL.Duration,
		cfg.Telemetry.Environment == "production",
	)
	wsHandler := handlers.NewWebSocketHandler(hub, originChecker(cfg.CORS.AllowedOrigins))

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.Middleware(httpMetrics, "/health", "/api/health"))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: cfg.CORS.AllowCredentials(),
			MaxAge:           300,
		}).Handler)
	}

	// Health and version
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)
	r.Get("/api/version", handlers.VersionHandler)

	// Viewer
	r.Get("/", viewerHandler.Page)
	r.Route("/api/gallery", func(r chi.Router) {
		r.Get("/", viewerHandler.Gallery)
		r.Delete("/", viewerHandler.Reset)
		r.Post("/next", viewerHandler.Next)
		r.Post("/all", viewerHandler.All)
		r.Post("/year", viewerHandler.Year)
		r.Post("/reload", viewerHandler.Reload)
	})
	r.Get("/api/thumbnails/*", viewerHandler.Thumbnail)
	r.Get("/ws", wsHandler.HandleConnection)

	// Uploads and publication
	r.Post("/api/upload", uploadHandler.Upload)
	r.Get("/api/uploads", uploadHandler.List)
	r.Get("/api/uploads/hash/{hash}", uploadHandler.FindByHash)
	r.Delete("/api/objects/*", uploadHandler.Delete)
	r.Post("/api/manifest/publish", manifestHandler.Publish)

	// Local objects are served directly when the public URL points back at this server
	if local, ok := store.(*storage.LocalStore); ok && strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
		prefix := strings.TrimSuffix(cfg.Storage.PublicBaseURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(local.BasePath()))))
	}

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for uploads
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	hub.Stop()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Printf("Telemetry shutdown: %v", err)
	}

	log.Println("Server exited")
}

func openDatabase(cfg *config.Config) (*sql.DB, repository.UploadRepo) {
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL database")
		db, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
		traced, err := observability.NewTraceDB(db, "postgresql")
		if err != nil {
			log.Fatalf("Failed to create database metrics: %v", err)
		}
		return db, repository.NewUploadRepositoryPostgres(traced)
	}

	log.Println("Using SQLite database")
	db, err := repository.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	traced, err := observability.NewTraceDB(db, "sqlite")
	if err != nil {
		log.Fatalf("Failed to create database metrics: %v", err)
	}
	return db, repository.NewUploadRepository(traced)
}

// originChecker allows same-host WebSocket upgrades plus the configured CORS origins
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
