package main

import (
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/pkg/logger"
)

// usage: migrate [up | down | force <version> | version]
func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load error", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		zap.NewExample().Fatal("logger init error", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	m, err := db.NewMigrator(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("create migrator", zap.Error(err))
	}
	defer func() { _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "force":
		if len(os.Args) < 3 {
			log.Fatal("force requires a version")
		}
		version, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			log.Fatal("invalid version", zap.String("version", os.Args[2]), zap.Error(convErr))
		}
		err = m.Force(version)
	case "version":
	default:
		log.Fatal("unknown command", zap.String("command", cmd))
	}
	if err != nil {
		log.Fatal("migration failed", zap.String("command", cmd), zap.Error(err))
	}

	v, dirty, err := m.Version()
	if err != nil {
		log.Fatal("read schema version", zap.Error(err))
	}
	log.Info("migrations complete", zap.String("command", cmd), zap.Uint("version", v), zap.Bool("dirty", dirty))
}
