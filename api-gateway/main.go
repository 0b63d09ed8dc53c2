package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	admin "gear-rental/admin-service/services"
	"gear-rental/api-gateway/clients"
	"gear-rental/api-gateway/handlers"
	"gear-rental/api-gateway/middleware"
	"gear-rental/api-gateway/routes"
	booking "gear-rental/booking-service/services"
	catalog "gear-rental/catalog-service/services"
	"gear-rental/shared/auth"
	"gear-rental/shared/cache"
	"gear-rental/shared/config"
	"gear-rental/shared/database"
	"gear-rental/shared/i18n"
	"gear-rental/shared/logger"
	"gear-rental/shared/storage"
	users "gear-rental/user-service/services"
)

func main() {
	cfg := config.Load()

	log, err := logger.Init(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := i18n.Initialize(cfg); err != nil {
		zap.S().Fatalf("Failed to initialize i18n: %v", err)
	}
	auth.Initialize(cfg)

	// Redis is required for the redis storage driver and optional otherwise,
	// where it only caches admin statistics.
	if err := cache.Initialize(cfg); err != nil {
		if cfg.Storage.Driver == "redis" {
			zap.S().Fatalf("Failed to initialize Redis: %v", err)
		}
		zap.S().Warnf("Redis unavailable, continuing without cache: %v", err)
	} else {
		defer cache.Close()
	}

	if cfg.Storage.Driver == "postgres" {
		if err := database.Initialize(cfg); err != nil {
			zap.S().Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()
	}

	store, err := storage.Open(cfg)
	if err != nil {
		zap.S().Fatalf("Failed to open storage: %v", err)
	}

	relay := clients.NewNotificationClient(cfg)
	defer relay.Close()

	catalogService := catalog.NewCatalogService(cfg, store, catalog.NewLoader(cfg))
	zap.S().Infof("Catalog loaded with %d base products", catalogService.Reload())

	bookingService := booking.NewBookingService(cfg, store, catalogService, relay)
	userService := users.NewUserService(cfg, store)
	leadService := admin.NewLeadService(cfg, store, relay)
	adminService := admin.NewAdminService(cfg, store, catalogService, bookingService, leadService, userService)

	handler := handlers.NewHandler(cfg, catalogService, bookingService, userService, leadService, adminService, relay)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.LanguageDetector(cfg))
	r.Use(middleware.RateLimit(cfg))

	routes.SetupRoutes(r, handler, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.APIGateway),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.S().Infof("API Gateway starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("API Gateway shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("API Gateway stopped: %v", err)
	}
}
