package main

import (
	"flag"
	"os"
	"path/filepath"
	"sort"

	"cast-bridge/internal/config"
	"cast-bridge/internal/database"
	"cast-bridge/internal/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	dir := flag.String("dir", "migrations", "directory of .sql files applied after AutoMigrate")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.New(cfg.Logging.Level)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := database.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list migration files")
	}
	sort.Strings(files)

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Failed to read migration file")
		}

		log.Info().Str("file", filepath.Base(file)).Msg("Applying migration")
		if err := database.GetDB().Exec(string(sqlBytes)).Error; err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Failed to apply migration")
		}
	}

	log.Info().Int("files", len(files)).Msg("Migrations applied successfully")
}
