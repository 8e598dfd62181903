package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/iconicplus/shell/internal/infrastructure/config"
	"github.com/iconicplus/shell/internal/infrastructure/server"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (env vars used when empty)")
	port := flag.String("port", "", "Override server port")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrDefault()
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
	}
	if err := srv.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
