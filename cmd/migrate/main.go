package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joao-fontenele/bookshelf-orders/internal/config"
)

const usage = "usage: migrate <up | down [N] | goto V | force V | version>"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		logger.Error(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL is required")
		os.Exit(1)
	}

	m, err := migrate.New(cfg.MigrationsPath, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to create migrate instance", "error", err, "source", cfg.MigrationsPath)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	if err := run(m, logger, args[0], args[1:]); err != nil {
		logger.Error("migration failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, logger *slog.Logger, command string, rest []string) error {
	switch command {
	case "up":
		return report(logger, m.Up(), "migrations applied")

	case "down":
		steps := 1
		if len(rest) > 0 {
			n, err := positive(rest[0])
			if err != nil {
				return err
			}
			steps = n
		}
		return report(logger, m.Steps(-steps), "migrations rolled back", "steps", steps)

	case "goto":
		v, err := versionArg(rest)
		if err != nil {
			return err
		}
		return report(logger, m.Migrate(uint(v)), "migrated to version", "version", v)

	case "force":
		v, err := versionArg(rest)
		if err != nil {
			return err
		}
		if err := m.Force(v); err != nil {
			return err
		}
		logger.Info("migration version forced", "version", v)
		return nil

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("current migration version", "version", version, "dirty", dirty)
		return nil
	}

	return fmt.Errorf("unknown command %q; %s", command, usage)
}

// report treats ErrNoChange as success.
func report(logger *slog.Logger, err error, msg string, attrs ...any) error {
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("nothing to do")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info(msg, attrs...)
	return nil
}

func versionArg(rest []string) (int, error) {
	if len(rest) < 1 {
		return 0, errors.New("missing version argument")
	}
	return positive(rest[0])
}

func positive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%q is not a positive integer", s)
	}
	return n, nil
}
