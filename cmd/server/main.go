package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/credfort/credfort-backend/internal/api/middleware"
	"github.com/credfort/credfort-backend/internal/api/rest"
	"github.com/credfort/credfort-backend/internal/auth"
	"github.com/credfort/credfort-backend/internal/config"
	"github.com/credfort/credfort-backend/internal/pkg/logger"
	"github.com/credfort/credfort-backend/internal/repository"
	"github.com/credfort/credfort-backend/internal/service"
	"github.com/credfort/credfort-backend/internal/session"
	"github.com/credfort/credfort-backend/migrations"
)

func main() {
	appLog := logger.StdLogger()
	appLog.Info("credfort backend starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.SessionSecret == "" {
		log.Fatal("session_secret must be configured (CREDFORT_SESSION_SECRET)")
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer store.Close()

	if err := runMigrations(store); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	appLog.Info("database migrations completed")

	sessions, err := session.NewManager(store, cfg.SessionSecret, time.Duration(cfg.SessionTTLHours)*time.Hour, cfg.SessionSecure)
	if err != nil {
		log.Fatalf("failed to initialize session manager: %v", err)
	}

	policy := auth.DefaultPasswordPolicy()
	if cfg.PasswordMinLength > 0 {
		policy.MinLength = cfg.PasswordMinLength
	}
	hasher := auth.NewArgon2Hasher(auth.DefaultArgon2Params())
	lockout := auth.NewLockoutPolicy(store, time.Duration(cfg.LockoutWindowSec)*time.Second, cfg.LockoutThreshold)
	authSvc := service.NewAuthService(store, hasher, lockout, policy)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.SecureHeaders)
	router.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"credfort-backend"}`))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	authHandler := rest.NewAuthHandler(authSvc, sessions, policy, cfg.LoginRatePerMin, cfg.LoginRateBurst)
	authHandler.RegisterRoutes(router)

	cleanup := service.NewCleanupService(store, time.Hour, appLog)
	cleanup.Start(context.Background())
	defer cleanup.Stop()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler(router)

	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      corsHandler,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	go func() {
		appLog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("shutdown error", "err", err)
	}
}

func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return repository.NewPostgresRepository(cfg.DatabaseDSN)
	case "", "sqlite":
		return repository.NewSQLiteRepository(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

func runMigrations(store repository.Store) error {
	entries, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(entries)
	for _, name := range entries {
		sql, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return err
		}
		if err := store.RunMigrations(string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}
