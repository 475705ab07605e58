package database

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/migrations"
)

// Migration directions
const (
	MigrateUp   = "up"
	MigrateDown = "down"
)

// Migrator runs the embedded migrations on its own connection
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator prepares the embedded migrations for the configured database
func NewMigrator(cfg config.DatabaseConfig) (*Migrator, error) {
	dbURL, err := migrationURL(cfg)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrations.FS, cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Run applies steps migrations in direction; steps <= 0 means all.
// It reports whether anything changed.
func (mg *Migrator) Run(direction string, steps int) (bool, error) {
	var err error
	switch direction {
	case MigrateUp:
		if steps > 0 {
			err = mg.m.Steps(steps)
		} else {
			err = mg.m.Up()
		}
	case MigrateDown:
		if steps > 0 {
			err = mg.m.Steps(-steps)
		} else {
			err = mg.m.Down()
		}
	default:
		return false, fmt.Errorf("unknown migration direction %q", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration %s failed: %w", direction, err)
	}
	return true, nil
}

// Version returns the applied migration version
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the migration connection
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Migrate applies every pending up migration
func Migrate(cfg config.DatabaseConfig) error {
	mg, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer mg.Close()

	_, err = mg.Run(MigrateUp, 0)
	return err
}

func migrationURL(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Path:     "/" + cfg.Name,
			RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
		}
		return u.String(), nil
	case "sqlite":
		return "sqlite://" + cfg.Path, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
