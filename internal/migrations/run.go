// Package migrations применяет схему SQL-хранилища документа.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Run применяет все миграции к db. dialect одно из: postgres, sqlite.
func Run(db *sql.DB, dialect string) error {
	const op = "migrations.Run"

	var (
		driver database.Driver
		name   string
		err    error
	)
	switch dialect {
	case "postgres":
		driver, err = pgxv5.WithInstance(db, &pgxv5.Config{})
		name = "pgx_v5"
	case "sqlite":
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
		name = "sqlite"
	default:
		return fmt.Errorf("%s: unknown dialect %q", op, dialect)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	source, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m, err := migrate.NewWithInstance("iofs", source, name, driver)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
