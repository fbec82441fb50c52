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

	"filedrop/auth"
	httpserver "filedrop/infrastructure/http/server"
	"filedrop/internal"
	"filedrop/repositories"
	"filedrop/runtime/workers"
	"filedrop/services"
	"filedrop/storage"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so that every defer (database close, HTTP
// shutdown) executes before the process exits.
func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := internal.NewLogger(config.LogLevel)

	for _, dir := range []string{config.UploadDir, config.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exitConfig, fmt.Errorf("storage dir %s: %w", dir, err)
		}
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Ensures the database lock is released and buffers are flushed.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories, stores and services
	sessionRepo := repositories.NewSessionRepository(db)
	deviceRepo := repositories.NewDeviceRepository(db)
	chunkStore := storage.NewDiskStore(config.TempDir, logger)
	artifactStore := storage.NewArtifactStore(config.UploadDir)

	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	ledger := services.NewLedgerService(sessionRepo, logger)
	assembler := services.NewAssemblerService(ledger, chunkStore, artifactStore, logger)
	transfers := services.NewTransferService(ledger, chunkStore, assembler, artifactStore, logger)
	reader := services.NewReaderService(ledger, artifactStore, logger)
	authService := services.NewAuthService(deviceRepo, tokens)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Background reclamation sweeper
	sweeper := workers.NewReclaimWorker(ledger, chunkStore, logger,
		config.SweepInterval, config.StaleThreshold)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweeper stopped", "err", err)
		}
	}()

	// 5. HTTP server
	api := httpserver.NewServer(transfers, ledger, reader, authService, tokens,
		logger, config.MaxChunkBytes)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: api.Handler(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return exitRuntime, fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return exitRuntime, fmt.Errorf("shutdown failed: %w", err)
		}
	}
	return exitOK, nil
}
