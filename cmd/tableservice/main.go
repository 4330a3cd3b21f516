package tableservice

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mesa-qr/cmd/tableservice/server"
	"mesa-qr/pkg/config"
	"mesa-qr/pkg/logger"
)

func Main() {
	port := flag.Int("port", 0, "HTTP port for the API (overrides server.port)")
	configPath := flag.String("config", "config/config.yaml", "Path to the YAML configuration")
	flag.Parse()

	logger := logger.NewLogger("table-service")
	logger.Info("startup", "service_started", "Table Service starting")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("startup", "config_load_failed", "Failed to load configuration", err)
		log.Fatal(err)
	}
	logger.SetLevel(cfg.Log.Level)
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.NewServer(cfg.Server.Port, cfg, logger)

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown", "graceful_shutdown", "Shutting down server...")
		cancel()
		err = <-done
	case err = <-done:
	}

	if err != nil {
		logger.Error("shutdown", "server_failed", "Server stopped with error", err)
		log.Fatal(err)
	}
	logger.Info("shutdown", "service_stopped", "Server exiting")
}
