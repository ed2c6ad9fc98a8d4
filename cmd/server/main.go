package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HammerMeetNail/splitsync/internal/config"
	"github.com/HammerMeetNail/splitsync/internal/database"
	"github.com/HammerMeetNail/splitsync/internal/handlers"
	"github.com/HammerMeetNail/splitsync/internal/logging"
	"github.com/HammerMeetNail/splitsync/internal/middleware"
	"github.com/HammerMeetNail/splitsync/internal/services"
	"github.com/HammerMeetNail/splitsync/internal/store"
	pgstore "github.com/HammerMeetNail/splitsync/internal/store/postgres"
	sqlitestore "github.com/HammerMeetNail/splitsync/internal/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{
			"env": cfg.Server.Environment,
		})
	}

	logger.Info("Starting SplitSync server...", map[string]interface{}{
		"mode": cfg.Sync.Mode,
	})

	// Open the authoritative store for the configured mode.
	var (
		st      store.Store
		checks  = map[string]handlers.HealthChecker{}
		redisDB *database.RedisDB
	)

	switch cfg.Sync.Mode {
	case config.ModeRemote:
		logger.Info("Connecting to PostgreSQL", map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
		})
		db, err := database.NewPostgresDB(cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		checks["postgres"] = db
		logger.Info("Connected to PostgreSQL")

		logger.Info("Running database migrations...")
		migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
		if err != nil {
			return fmt.Errorf("creating migrator: %w", err)
		}
		if err := migrator.Up(); err != nil {
			_ = migrator.Close()
			return fmt.Errorf("running migrations: %w", err)
		}
		_ = migrator.Close()
		logger.Info("Migrations completed")

		logger.Info("Connecting to Redis", map[string]interface{}{
			"addr": cfg.Redis.Addr(),
		})
		redisDB, err = database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisDB.Close() }()
		checks["redis"] = redisDB
		logger.Info("Connected to Redis")

		st = pgstore.New(pgstore.NewPoolAdapter(db.Pool), pgstore.NewRedisBus(redisDB.Client), logger)

	case config.ModeLocal:
		logger.Info("Opening local store", map[string]interface{}{
			"path": cfg.Local.Path,
		})
		sqliteDB, err := database.NewSQLiteDB(cfg.Local.Path)
		if err != nil {
			return fmt.Errorf("opening local store: %w", err)
		}
		defer func() { _ = sqliteDB.Close() }()
		checks["sqlite"] = sqliteDB

		localStore, err := sqlitestore.New(sqliteDB.DB, logger)
		if err != nil {
			return fmt.Errorf("initializing local store: %w", err)
		}
		st = localStore

	default:
		return fmt.Errorf("unknown sync mode %q", cfg.Sync.Mode)
	}
	defer func() { _ = st.Close() }()

	// Initialize services
	identityService := services.NewIdentityService(st)
	friendService := services.NewFriendService(st)
	groupService := services.NewGroupService(st, friendService)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(checks)
	userHandler := handlers.NewUserHandler(identityService)
	friendHandler := handlers.NewFriendHandler(friendService, identityService)
	groupHandler := handlers.NewGroupHandler(groupService)
	feedHandler := handlers.NewFeedHandler(st, friendService, groupService, identityService, logger)

	// Initialize middleware
	middleware.InitPrometheus()
	currentUser := middleware.NewCurrentUser(identityService)
	requestLogger := middleware.NewRequestLogger(logger)

	var mutationLimiter func(http.Handler) http.Handler = func(next http.Handler) http.Handler { return next }
	if redisDB != nil && cfg.Sync.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(
			redisDB.Client,
			cfg.Sync.RateLimit,
			time.Duration(cfg.Sync.RateLimitWindow)*time.Second,
			"ratelimit:mutations:",
			func(r *http.Request) string {
				if user := handlers.GetUserFromContext(r.Context()); user != nil {
					return user.ID.String()
				}
				return ""
			},
			true,
		)
		mutationLimiter = limiter.Middleware
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return mutationLimiter(h)
	}

	// Set up router
	mux := http.NewServeMux()

	// Health and metrics endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// User endpoints
	mux.Handle("POST /api/users", limited(userHandler.Register))
	mux.HandleFunc("GET /api/users/me", userHandler.Me)
	mux.Handle("PUT /api/users/me", limited(userHandler.UpdateMe))
	mux.HandleFunc("GET /api/users/search", userHandler.Search)

	// Friend endpoints
	mux.HandleFunc("GET /api/friends", friendHandler.ListFriends)
	mux.HandleFunc("GET /api/friends/requests", friendHandler.ListPending)
	mux.Handle("POST /api/friends/requests", limited(friendHandler.SendRequest))
	mux.Handle("PUT /api/friends/requests/{id}/respond", limited(friendHandler.Respond))

	// Group endpoints
	mux.Handle("POST /api/groups", limited(groupHandler.Create))
	mux.HandleFunc("GET /api/groups", groupHandler.List)
	mux.HandleFunc("GET /api/groups/{id}", groupHandler.Get)
	mux.Handle("DELETE /api/groups/{id}", limited(groupHandler.Delete))
	mux.Handle("POST /api/groups/{id}/invitations", limited(groupHandler.Invite))
	mux.HandleFunc("GET /api/groups/{id}/invitees", groupHandler.AvailableInvitees)
	mux.Handle("DELETE /api/groups/{id}/members/{userId}", limited(groupHandler.RemoveMember))
	mux.Handle("POST /api/groups/{id}/leave", limited(groupHandler.Leave))

	// Invitation endpoints
	mux.HandleFunc("GET /api/invitations", groupHandler.ListPendingInvitations)
	mux.Handle("PUT /api/invitations/{id}/respond", limited(groupHandler.RespondToInvitation))

	// Change feed (SSE)
	mux.Handle("GET /api/feed", middleware.TrackFeedStreams(http.HandlerFunc(feedHandler.Stream)))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = currentUser.Apply(handler)
	handler = middleware.Monitor(handler)
	handler = requestLogger.Apply(handler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// The SSE feed holds its connection open; no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
