package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	booking "gear-rental/booking-service/services"
	catalog "gear-rental/catalog-service/services"
	"gear-rental/notification-service/handlers"
	"gear-rental/notification-service/services"
	"gear-rental/notification-service/workers"
	"gear-rental/shared/cache"
	"gear-rental/shared/config"
	"gear-rental/shared/database"
	"gear-rental/shared/i18n"
	"gear-rental/shared/logger"
	"gear-rental/shared/storage"
	users "gear-rental/user-service/services"
)

const serviceName = "notification-service"

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

	// Redis backs the job queue. Without it emails are sent inline.
	redisReady := true
	if err := cache.Initialize(cfg); err != nil {
		zap.S().Warnf("Redis unavailable, job queue disabled: %v", err)
		redisReady = false
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

	catalogService := catalog.NewCatalogService(cfg, store, catalog.NewLoader(cfg))
	bookingService := booking.NewBookingService(cfg, store, catalogService, nil)
	userService := users.NewUserService(cfg, store)

	notificationService := services.NewNotificationService(cfg, services.NewMailer(cfg))

	var jobManager *workers.JobManager
	if redisReady {
		jobManager = workers.NewJobManager(cfg, cache.Client, notificationService, bookingService, catalogService, userService)
		if err := jobManager.Start(); err != nil {
			zap.S().Fatalf("Failed to start job workers: %v", err)
		}
		notificationService.SetQueue(jobManager)
	}

	// gRPC health service
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Services.NotificationGRPC))
		if err != nil {
			zap.S().Fatalf("Failed to listen: %v", err)
		}
		zap.S().Infof("Notification Service gRPC server listening on port %d", cfg.Services.NotificationGRPC)
		if err := grpcServer.Serve(lis); err != nil {
			zap.S().Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handlers.NewHandler(cfg, notificationService).Register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Services.NotificationHTTP),
		Handler: r,
	}
	go func() {
		zap.S().Infof("Notification Service HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.S().Info("Notification Service shutting down...")
	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.S().Errorf("HTTP server shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	if jobManager != nil {
		jobManager.Stop()
	}
}
