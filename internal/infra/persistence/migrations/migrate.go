// Package migrations wires golang-migrate execution for Folio's persistence
// layer. Migrations ship embedded in the binary; Apply runs them against the
// configured Postgres instance.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	dbmigrations "github.com/coachpo/folio/db/migrations"
)

// Apply runs all pending embedded migrations against the Postgres instance
// reachable via dsn. A nil logger disables informational logging.
func Apply(ctx context.Context, dsn string, logger *log.Logger) error {
	m, cleanup, err := newMigrator(ctx, dsn, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if logger != nil {
		logger.Printf("running database migrations")
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			if logger != nil {
				logger.Printf("database migrations up-to-date")
			}
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	if logger != nil {
		logger.Printf("database migrations applied successfully")
	}
	return nil
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, dsn string, logger *log.Logger) error {
	m, cleanup, err := newMigrator(ctx, dsn, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("rollback migration: %w", err)
	}
	if logger != nil {
		logger.Printf("rolled back one migration")
	}
	return nil
}

func newMigrator(ctx context.Context, dsn string, logger *log.Logger) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open migrations connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping migrations database: %w", err)
	}

	var driverConfig pgxv5.Config
	driver, err := pgxv5.WithInstance(db, &driverConfig)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("initialise pgx v5 driver: %w", err)
	}

	source, err := iofs.New(dbmigrations.Files, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("initialise migrate instance: %w", err)
	}

	cleanup := func() {
		sourceErr, dbErr := m.Close()
		if logger == nil {
			return
		}
		if sourceErr != nil {
			logger.Printf("database migrations source close: %v", sourceErr)
		}
		if dbErr != nil {
			logger.Printf("database migrations db close: %v", dbErr)
		}
	}
	return m, cleanup, nil
}
