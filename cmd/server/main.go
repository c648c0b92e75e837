package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/rentnest/internal/featureflags"
	"github.com/yourorg/rentnest/internal/handler"
	"github.com/yourorg/rentnest/internal/infrastructure/logger"
	"github.com/yourorg/rentnest/internal/infrastructure/redis"
	"github.com/yourorg/rentnest/internal/notify"
	"github.com/yourorg/rentnest/internal/observability/metrics"
	"github.com/yourorg/rentnest/internal/observability/tracing"
	"github.com/yourorg/rentnest/internal/repository"
	"github.com/yourorg/rentnest/internal/security/audit"
	"github.com/yourorg/rentnest/internal/security/auth"
	"github.com/yourorg/rentnest/internal/security/middleware"
	"github.com/yourorg/rentnest/internal/security/ratelimit"
	"github.com/yourorg/rentnest/internal/service"
	"github.com/yourorg/rentnest/internal/worker"
	"github.com/yourorg/rentnest/pkg/config"
	"github.com/yourorg/rentnest/pkg/database"
)

func main() {
	// 1. Load configuration (.env is optional, real env wins)
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting RentNest server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set)
	shutdownTracing, err := tracing.Init(ctx, log, "rentnest", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect to Postgres and run migrations
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}
	db := pool.GetDB()

	// 5. Redis cache is optional: without it reads just hit Postgres
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, property cache disabled", slog.String("error", err.Error()))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// 6. Repositories
	userRepo := repository.NewPostgresUserRepository(db, log)
	propertyRepo := repository.NewPostgresPropertyRepository(db, log)
	applicationRepo := repository.NewPostgresApplicationRepository(db, log)
	allocationStore := repository.NewAllocationStore(db, log)

	// 7. Notification pipeline: queue publisher for email plus the live
	// websocket feed, fanned out
	flags := featureflags.New(map[string]bool{"live_feed": true})
	feedHandler := handler.NewFeedHandler(log, cfg.CORSAllowedOrigins, flags)

	notifiers := notify.Fanout{feedHandler}
	publisher, err := notify.NewPublisher(cfg.AMQPURL, cfg.NotifyExchange, log)
	if err != nil {
		log.Warn("message queue unavailable, email notifications disabled", slog.String("error", err.Error()))
	} else {
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	// 8. Security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "rentnest")
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMin, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 9. Services
	authService := service.NewAuthService(userRepo, tokenManager, time.Duration(cfg.TokenTTLHours)*time.Hour, log)
	propertyService := service.NewPropertyService(propertyRepo, redisClient, log)
	applicationService := service.NewApplicationService(
		applicationRepo, propertyRepo, userRepo, allocationStore, notifiers, auditLogger, log)
	auditorService := service.NewAuditorService(applicationRepo, propertyRepo, allocationStore, auditLogger, log)

	sweeper := worker.NewExpirySweeper(
		applicationRepo, log, cfg.SweepSchedule, time.Duration(cfg.SweepWindowDays)*24*time.Hour)

	// 10. Handlers
	authHandler := handler.NewAuthHandler(authService, rateLimiter, log)
	propertyHandler := handler.NewPropertyHandler(propertyService, log)
	applicationHandler := handler.NewApplicationHandler(applicationService, log)
	adminHandler := handler.NewAdminHandler(auditorService, sweeper, cfg.AdminToken, log)
	healthHandler := handler.NewHealthHandler(pool, redisClient, log)

	// 11. Routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	mux.HandleFunc("GET /api/properties", propertyHandler.List)
	mux.HandleFunc("POST /api/properties", propertyHandler.Create)
	mux.HandleFunc("GET /api/my/properties", propertyHandler.ListMine)
	mux.HandleFunc("GET /api/properties/{id}", propertyHandler.Get)
	mux.HandleFunc("PUT /api/properties/{id}", propertyHandler.Update)
	mux.HandleFunc("DELETE /api/properties/{id}", propertyHandler.Delete)
	mux.HandleFunc("GET /api/properties/{id}/applications", applicationHandler.ListByProperty)

	mux.HandleFunc("POST /api/applications", applicationHandler.Create)
	mux.HandleFunc("GET /api/applications/my", applicationHandler.ListMine)
	mux.HandleFunc("GET /api/applications/received", applicationHandler.ListReceived)
	mux.HandleFunc("GET /api/applications/stats", applicationHandler.Stats)
	mux.HandleFunc("GET /api/applications/{id}", applicationHandler.Get)
	mux.HandleFunc("PUT /api/applications/{id}", applicationHandler.Decide)
	mux.HandleFunc("PUT /api/applications/{id}/withdraw", applicationHandler.Withdraw)

	mux.HandleFunc("GET /api/admin/consistency", adminHandler.Diagnose)
	mux.HandleFunc("POST /api/admin/consistency/repair", adminHandler.Repair)
	mux.HandleFunc("POST /api/admin/sweep", adminHandler.Sweep)

	mux.Handle("GET /ws/feed", feedHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Admin-Token")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> validation -> JWT ->
	// rate limit -> audit -> CORS+routes, wrapped in tracing
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.SanitizeInputs(log)(
				middleware.ValidateJSONContentType(log)(
					middleware.JWTMiddleware(tokenManager, log)(
						middleware.RateLimitMiddleware(rateLimiter, log)(
							middleware.AuditMiddleware(auditLogger)(handlerWithCORS),
						),
					),
				),
			),
		),
		log,
	)
	traced := otelhttp.NewHandler(rootHandler, "rentnest.http")

	// 12. Start the expiry sweeper on its cron schedule
	go func() {
		if err := sweeper.Start(ctx); err != nil {
			log.Error("expiry sweeper failed to start", slog.String("error", err.Error()))
		}
	}()

	// 13. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      traced,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitPerMin),
		slog.String("sweep_schedule", cfg.SweepSchedule),
		slog.Int("sweep_window_days", cfg.SweepWindowDays),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop the sweeper
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
