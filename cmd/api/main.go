package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"jobtrail/application"
	"jobtrail/auth"
	"jobtrail/dashboard"
	"jobtrail/db"
	"jobtrail/migrations"

	"github.com/joho/godotenv"
)

type config struct {
	DatabaseURL    string
	JWTSecret      string
	Port           string
	DBMaxConns     int32
	MigrateOnStart bool
}

// loadConfig reads the process environment. A .env file, when present,
// fills variables that are not already set.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		DatabaseURL: strings.TrimSpace(getenv("DATABASE_URL")),
		JWTSecret:   getenv("JWT_SECRET"),
		Port:        strings.TrimSpace(getenv("PORT")),
		DBMaxConns:  10,
	}
	if cfg.DatabaseURL == "" {
		return config{}, errors.New("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return config{}, errors.New("config: JWT_SECRET is required")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if raw := strings.TrimSpace(getenv("DB_MAX_CONNS")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 {
			return config{}, fmt.Errorf("config: DB_MAX_CONNS must be a positive integer, got %q", raw)
		}
		cfg.DBMaxConns = int32(n)
	}
	if raw := strings.TrimSpace(getenv("MIGRATE_ON_START")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return config{}, fmt.Errorf("config: MIGRATE_ON_START must be a boolean, got %q", raw)
		}
		cfg.MigrateOnStart = v
	}
	return cfg, nil
}

func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := migrations.Apply(ctx, pool); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
		log.Printf("migrations applied")
	}

	server := &Server{
		authService:        auth.NewService(auth.NewRepository(pool), cfg.JWTSecret),
		applicationService: application.NewService(pool, application.NewRepository(pool)),
		dashboardService:   dashboard.NewService(dashboard.NewReader(pool)),
		db:                 pool,
	}

	log.Printf("jobtrail api config: port=%s db_max_conns=%d migrate_on_start=%t jwt_secret=%s",
		cfg.Port, cfg.DBMaxConns, cfg.MigrateOnStart, maskSecret(cfg.JWTSecret))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		log.Printf("shutdown complete")
	}
}
