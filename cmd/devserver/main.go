package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tenant-portal/internal/devserver"
	"tenant-portal/internal/shared/logger"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	fmt.Println("Tenant portal devserver - starting...")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	cfg, err := devserver.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load devserver configuration: %v", err)
	}
	logCfg := logger.Config{}
	if err := env.Parse(&logCfg); err != nil {
		log.Fatalf("Failed to load logger configuration: %v", err)
	}
	appLogger := logger.New(logCfg)

	store := devserver.NewStore(bcrypt.DefaultCost)
	if err := devserver.Seed(store, cfg.SeedPassword); err != nil {
		log.Fatalf("Failed to seed development data: %v", err)
	}

	srv, err := devserver.New(cfg, store, appLogger)
	if err != nil {
		log.Fatalf("Failed to create devserver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.RunDashboardPush(ctx)

	serverShutdown := make(chan error, 1)
	go func() {
		serverShutdown <- srv.Listen(cfg.Addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverShutdown:
		if err != nil {
			log.Fatalf("Devserver failed: %v", err)
		}
	case sig := <-quit:
		appLogger.Infof("Received shutdown signal: %v", sig)
		cancel()
		if err := srv.Shutdown(); err != nil {
			appLogger.Errorf("Devserver forced to shutdown: %v", err)
		}
	}
	fmt.Println("Devserver stopped.")
}
