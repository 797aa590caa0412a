package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
	"github.com/hackgods/telehealth-scheduling/migrations"
)

// Usage:
//
//	migrate            apply all pending migrations
//	migrate up         same as above
//	migrate down       roll back one migration
//	migrate force N    mark the schema as version N without running anything
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("dev", "migrate")
		bootLogger.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New(cfg.Env, "migrate")

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("init database driver")
	}

	srcDriver, err := iofs.New(migrations.Files, ".")
	if err != nil {
		logger.Fatal().Err(err).Msg("init source driver")
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		logger.Fatal().Err(err).Msg("create migrator")
	}
	defer func() { _, _ = m.Close() }()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if len(os.Args) < 3 {
			logger.Fatal().Msg("force requires a version argument")
		}
		version, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			logger.Fatal().Err(convErr).Msg("invalid version")
		}
		err = m.Force(version)
	default:
		logger.Fatal().Str("command", command).Msg("unknown command, expected up, down or force")
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}

	logger.Info().Str("command", command).Msg("migrations complete")
}
