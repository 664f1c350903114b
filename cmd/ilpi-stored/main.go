package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ilpi-dev/ilpi-store/internal/api"
	"github.com/ilpi-dev/ilpi-store/internal/config"
	"github.com/ilpi-dev/ilpi-store/internal/insights"
	"github.com/ilpi-dev/ilpi-store/internal/server"
	"github.com/ilpi-dev/ilpi-store/internal/vault"
	"github.com/ilpi-dev/ilpi-store/pkg/sdk"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "ilpi-stored:", err)
		os.Exit(1)
	}
	logger := cfg.App.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("ilpi-stored stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting ILPI store daemon", "backend", cfg.Storage.Backend, "sealed", cfg.Storage.MasterKey != "")

	// 1. Storage, store and controller
	facade, err := sdk.NewEmbedded(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer facade.Close()

	// Seed or migrate before accepting traffic
	env, err := facade.FetchAllData(ctx)
	if err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	logger.Info("store ready", "version", env.Version, "employees", len(env.Employees))

	// 2. TCP router
	router := server.NewRouter(facade, logger)
	if !cfg.Server.DisableTLS {
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			return fmt.Errorf("generate TLS certificate: %w", err)
		}
		router.SetCertificate(cert)
		logger.Info("TLS encryption enabled")
	} else {
		logger.Warn("TLS encryption disabled (ILPI_DISABLE_TLS=true)")
	}

	// 3. HTTP API
	var gen insights.Generator = insights.Unavailable{}
	if cfg.Insights.APIKey != "" {
		gemini, err := insights.NewGemini(ctx, cfg.Insights.APIKey, cfg.Insights.Model, cfg.Insights.Endpoint)
		if err != nil {
			return err
		}
		gen = gemini
	} else {
		logger.Info("insights disabled, GEMINI_API_KEY not set")
	}
	h := &api.Handler{
		API:      facade,
		Insights: insights.NewService(gen, logger),
	}

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})
	h.Register(r)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Start servers
	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP API listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("TCP router listening", "port", cfg.Server.Port)
		if err := router.Listen(cfg.Server.Port); err != nil {
			errCh <- fmt.Errorf("tcp server: %w", err)
		}
	}()

	// 5. Graceful shutdown
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	router.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	logger.Info("shutdown complete")
	return runErr
}
