package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/apresai/podcaster-async/internal/mcpserver"
	"github.com/apresai/podcaster-async/internal/observability"
)

func main() {
	logger := observability.InitLogger()
	logger.Info("Podcaster MCP Server starting...")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := mcpserver.DefaultConfig()

	srv, err := mcpserver.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
		os.Exit(0)
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
