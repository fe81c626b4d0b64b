package main

import (
	"context"
	systemLog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"charity-service/internal/app"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	application, err := app.New(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	// Start dependency health checks in background
	healthCtx, healthCancel := context.WithCancel(context.Background())
	defer healthCancel()
	go application.StartHealthChecks(healthCtx)

	go func() {
		if err := application.Run(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	healthCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		systemLog.Fatal("Server forced to shutdown:", err)
	}

	systemLog.Println("Server exited gracefully")
}
