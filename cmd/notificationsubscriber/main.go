package notificationsubscriber

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mesa-qr/internal/notificationsubscriber/subscriber"
	"mesa-qr/pkg/config"
	"mesa-qr/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func Main() {
	tenantID := flag.Int64("tenant", 0, "Only show alerts of this tenant (0 = all)")
	event := flag.String("event", "", "Only show alerts of this event name (empty = all)")
	configPath := flag.String("config", "config/config.yaml", "Path to the YAML configuration")
	flag.Parse()

	logger := logger.NewLogger("notification-subscriber")
	logger.Info("startup", "service_started", "Notification Subscriber starting")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("startup", "config_load_failed", "Failed to load configuration", err)
		log.Fatal(err)
	}
	logger.SetLevel(cfg.Log.Level)

	notifSubscriber := subscriber.NewNotificationSubscriber(cfg, *tenantID, *event, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return notifSubscriber.Start(gctx)
	})
	g.Go(func() error {
		// Wait for interrupt signal to gracefully shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		select {
		case <-quit:
			logger.Info("shutdown", "graceful_shutdown", "Shutting down subscriber...")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	err = g.Wait()
	notifSubscriber.Stop()
	if err != nil {
		logger.Error("shutdown", "subscriber_failed", "Subscriber stopped with error", err)
		log.Fatal(err)
	}
	logger.Info("shutdown", "service_stopped", "Subscriber exiting")
}
