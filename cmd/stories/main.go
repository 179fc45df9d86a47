package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm/hxnav/internal/config"
	"github.com/pthm/hxnav/internal/kv"
	"github.com/pthm/hxnav/internal/logging"
	"github.com/pthm/hxnav/internal/server"
)

const version = "0.1.0"

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "check-config":
		if err := runCheckConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("stories version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`stories - Dicoding Stories web app

Usage:
  stories [command]

Commands:
  serve          Run the web server (default)
  check-config   Load and validate the configuration, then exit
  version        Print version
  help           Show this help

Configuration is read from $CONFIG_PATH or config.yaml, then from
STORIES_* environment variables, e.g.:

  STORIES_SERVER_ADDR=:9000
  STORIES_API_BASE_URL=https://story-api.dicoding.dev/v1
  STORIES_STORAGE_PATH=/var/lib/stories
  STORIES_LOGGING_FORMAT=console`)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	log := logging.Component("main")

	db, err := kv.Open(cfg.Storage.Path, logging.Component("badger"))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("closing database")
		}
	}()

	srv, err := server.New(cfg, db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", version).Str("storage", storageLabel(cfg.Storage.Path)).Msg("starting")
	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

func runCheckConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fmt.Printf("listen %s, api %s, storage %s\n", cfg.Server.Addr, cfg.API.BaseURL, storageLabel(cfg.Storage.Path))
	return nil
}

func storageLabel(path string) string {
	if path == "" {
		return "in-memory"
	}
	return path
}
