package store

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

// Migration files live in store/migration/{driver}/NNNNN_description.sql and
// carry goose annotations. Applied versions are tracked in goose_db_version.

//go:embed migration
var migrationFS embed.FS

// gooseDialect maps the profile driver to the goose dialect.
func gooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case "postgres":
		return goose.DialectPostgres, nil
	case "sqlite":
		return goose.DialectSQLite3, nil
	default:
		return "", errors.Errorf("unsupported driver for migration: %s", driver)
	}
}

// Migrate applies every pending migration for the configured driver.
func (s *Store) Migrate(ctx context.Context) error {
	dialect, err := gooseDialect(s.profile.Driver)
	if err != nil {
		return err
	}
	migrations, err := fs.Sub(migrationFS, "migration/"+s.profile.Driver)
	if err != nil {
		return errors.Wrap(err, "failed to open migration directory")
	}

	provider, err := goose.NewProvider(dialect, s.driver.GetDB(), migrations)
	if err != nil {
		return errors.Wrap(err, "failed to create migration provider")
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	for _, result := range results {
		slog.Info("applied migration",
			slog.String("driver", s.profile.Driver),
			slog.String("source", result.Source.Path),
			slog.Duration("duration", result.Duration),
		)
	}
	return nil
}
