// stealth-lock-agent is a resident loopback HTTP service that verifies
// local-account passwords and issues short-lived unlock tokens. It exists
// for desktop front ends that prefer a persistent endpoint over spawning
// the single-shot helper per attempt.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RisPNG/stealth-lock/internal/api"
	"github.com/RisPNG/stealth-lock/internal/config"
	"github.com/RisPNG/stealth-lock/internal/token"
	"github.com/RisPNG/stealth-lock/internal/verify"
)

var (
	version    = "1.0.0"
	configPath = flag.String("config", "", "Path to configuration file (default: OS-appropriate path)")
	listenAddr = flag.String("listen", "", "Override listen address (e.g., 127.0.0.1:7732)")
	devMode    = flag.Bool("dev", false, "Enable development mode")
)

func main() {
	flag.Parse()

	logLevel := slog.LevelInfo
	if *devMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	if *devMode {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}))
	}
	slog.SetDefault(logger)
	logger.Info("starting stealth-lock agent", "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	verifier := verify.New(cfg)
	issuer := token.NewIssuer(cfg.TokenSecret, cfg.TokenTTL())
	if cfg.TokenSecret == "" {
		logger.Warn("no token secret configured, using a per-process random secret")
	}

	apiServer := api.NewServer(verifier, issuer, cfg.AllowedOrigins, logger)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      apiServer,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("agent listening", "address", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down agent")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
