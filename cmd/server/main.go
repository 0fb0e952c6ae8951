package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/termhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/termhost/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadOrDefault()

	// Flags override environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Server host")
	shell := flag.String("shell", cfg.Terminal.Shell, "Shell binary (default $SHELL)")
	home := flag.String("home", cfg.Terminal.Home, "Home directory for spawned shells")
	stateDir := flag.String("state-dir", cfg.State.Dir, "Directory for persisted session state (empty disables)")
	stateFormat := flag.String("state-format", cfg.State.Format, "State encoding: json, yaml or toml")
	autoRestart := flag.Bool("auto-restart", cfg.Terminal.AutoRestart, "Restart shells that exit unexpectedly")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.Terminal.Shell = *shell
	cfg.Terminal.Home = *home
	cfg.State.Dir = *stateDir
	cfg.State.Format = *stateFormat
	cfg.Terminal.AutoRestart = *autoRestart
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
	case err := <-errChan:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Close(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
}
