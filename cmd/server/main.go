package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openhomelab/smartserver/internal/api/rest"
	"github.com/openhomelab/smartserver/internal/api/websocket"
	"github.com/openhomelab/smartserver/internal/assoc"
	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/config"
	"github.com/openhomelab/smartserver/internal/storage"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Config loaded successfully")

	db, err := storage.NewPostgresClient(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}

	logger.Info("Database connected successfully")

	authService := auth.NewAuthService(db, cfg.Auth, logger)

	wsHub := websocket.NewHub(logger, authService)
	go wsHub.Run()

	supervisor := assoc.NewSupervisor(cfg.Assoc.Window, assoc.NewTimerScheduler(), wsHub, logger)
	assocService := assoc.NewService(db, db, supervisor, wsHub, logger)

	server := rest.NewServer(cfg, db, authService, assocService, wsHub, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("SmartServer started successfully",
		zap.Duration("assoc_window", cfg.Assoc.Window))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("SmartServer stopped successfully")
}
