package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/portacare/stepauth/core"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to yaml config, env-only when empty")
	flag.Parse()

	cfg := MustLoadConfig(configPath)
	logger := setupLogger(cfg.Env)

	directory := buildDirectory(cfg, logger)
	manager, err := core.NewManagerWithOptions(core.Options{
		Directory:     directory,
		Sender:        &core.LogSender{Logger: logger},
		JWTSecret:     cfg.JWTSecret,
		RedisAddr:     cfg.RedisAddr,
		CredentialTTL: cfg.CredentialTTL,
		RateLimit:     cfg.RateLimit,
		RateWindow:    cfg.RateWindow,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("init manager", slog.Any("error", err))
		os.Exit(1)
	}

	srv := &server{manager: manager, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Post("/auth/initiate", srv.handleInitiate)
	r.Post("/auth/verify-token", srv.handleVerifyToken)
	r.Post("/auth/elevate", srv.handleElevate)
	r.Post("/auth/request-action", srv.handleRequestAction)
	r.Post("/auth/confirm-action", srv.handleConfirmAction)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepLoop(ctx, manager, cfg.SweepInterval, logger)

	httpSrv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening",
		slog.String("address", cfg.Address),
		slog.Bool("redis", cfg.RedisAddr != ""))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// buildDirectory wires the patient registry. Outside local development
// this is where the real registry client goes; the seeded in-memory
// directory keeps the local flow end-to-end runnable.
func buildDirectory(cfg *Config, logger *slog.Logger) core.PatientDirectory {
	dir := core.NewMemoryDirectory()
	if cfg.Env == envLocal {
		p := dir.Add(core.Patient{
			Name:      "Anna Schmidt",
			Email:     "anna@example.de",
			Phone:     "+4915112345543",
			BirthDate: "1987-04-12",
			Address: core.Address{
				PostalCode: "10115",
				City:       "Berlin",
				Lines:      []string{"Invalidenstr. 44"},
			},
		})
		logger.Info("seeded demo patient", slog.String("patient_id", p.ID))
	}
	return dir
}

func sweepLoop(ctx context.Context, manager *core.Manager, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := manager.SweepExpired(ctx)
			if err != nil {
				logger.Warn("token sweep failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				logger.Debug("token sweep", slog.Int("removed", removed))
			}
		}
	}
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			id, _ := r.Context().Value(requestIDKey).(string)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", id),
				slog.Duration("took", time.Since(start)))
		})
	}
}
