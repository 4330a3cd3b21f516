package migrate

import (
	"flag"
	"log"

	"mesa-qr/pkg/config"
	"mesa-qr/pkg/db"
	"mesa-qr/pkg/logger"
)

func Main() {
	down := flag.Bool("down", false, "Roll back the most recent migration instead of applying all")
	configPath := flag.String("config", "config/config.yaml", "Path to the YAML configuration")
	flag.Parse()

	logger := logger.NewLogger("migrate")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("startup", "config_load_failed", "Failed to load configuration", err)
		log.Fatal(err)
	}
	logger.SetLevel(cfg.Log.Level)

	if *down {
		err = db.Rollback(&cfg.Database, logger)
	} else {
		err = db.Migrate(&cfg.Database, logger)
	}
	if err != nil {
		logger.Error("migrate", "migration_failed", "Migration failed", err)
		log.Fatal(err)
	}
}
