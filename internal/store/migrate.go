package store

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/matheus3301/bossmsg/internal/store/migrations"
)

// MigrateResult reports the schema version before and after Migrate.
type MigrateResult struct {
	From      uint
	Version   uint
	Changed   bool
	Recovered bool // a dirty version was rolled back before migrating
	Dirty     bool
}

func (db *DB) migrator() (*migrate.Migrate, source.Driver, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, nil, fmt.Errorf("migration instance: %w", err)
	}
	return m, src, nil
}

// Migrate brings the schema to the latest version.
//
// Each migration runs in one transaction, so a dirty version means the
// last one never committed; it is forced back one step and re-applied.
func (db *DB) Migrate() (*MigrateResult, error) {
	m, src, err := db.migrator()
	if err != nil {
		return nil, err
	}

	res := &MigrateResult{}
	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return nil, fmt.Errorf("migration version: %w", err)
	default:
		res.From = from
	}
	if dirty {
		target := database.NilVersion
		prev, err := src.Prev(from)
		switch {
		case err == nil:
			target = int(prev)
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("migration prev of v%d: %w", from, err)
		}
		if err := m.Force(target); err != nil {
			return nil, fmt.Errorf("migration recover from dirty v%d: %w", from, err)
		}
		res.From = prev
		res.Recovered = true
	}

	err = m.Up()
	res.Changed = !errors.Is(err, migrate.ErrNoChange)
	if err != nil && res.Changed {
		return nil, fmt.Errorf("migration up: %w", err)
	}

	res.Version, res.Dirty, err = m.Version()
	if err != nil {
		return nil, fmt.Errorf("migration version: %w", err)
	}
	return res, nil
}
