package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apigateway/internal/access"
	"apigateway/internal/calllog"
	"apigateway/internal/config"
	"apigateway/internal/db"
	"apigateway/internal/health"
	"apigateway/internal/logging"
	"apigateway/internal/middleware"
	"apigateway/internal/proxy"
	"apigateway/internal/quota"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const welcomeBody = "<h1>Welcome to API gateway!</h1><p>This serves as the gateway to other micro-services</p>"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	// Initialize database
	database, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close()

	// Initialize quota counter
	counter, err := quota.NewCounter(cfg.RedisURL)
	if err != nil {
		logger.Fatal("quota store connection failed", zap.Error(err))
	}
	defer counter.Close()

	verifier := access.NewVerifier(database, counter, logger)
	callLogger := calllog.New(database, cfg.DBLog, logger)
	forwarder := proxy.NewForwarder(database, cfg.UpstreamTimeout, logger)
	handler := proxy.NewHandler(verifier, database, forwarder, callLogger, cfg.StrictRouting, logger)

	// Initialize router
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.CORS, middleware.RequestLogger(logger))

	router.HandleFunc("/", welcomeHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	handler.RegisterRoutes(router)
	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.HealthCheck {
		monitor := health.NewMonitor(database, cfg.HealthCheckInterval, logger)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	// Per-call deadlines live in the forwarder; a server write timeout
	// would cut off slow backends mid-response.
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("gateway listening",
			zap.String("addr", srv.Addr),
			zap.Bool("call_logging", cfg.DBLog),
			zap.Bool("health_check", cfg.HealthCheck),
			zap.Bool("strict_routing", cfg.StrictRouting),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}

func welcomeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(welcomeBody))
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	proxy.WriteError(w, http.StatusNotFound, "Not found")
}
