package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/secondbrain/internal/profile"
	"github.com/hrygo/secondbrain/store"
	"github.com/hrygo/secondbrain/store/db/postgres"
	"github.com/hrygo/secondbrain/store/db/sqlite"
)

// PostgreSQL is the reference implementation: the hybrid ranking query runs
// in SQL against pgvector. SQLite keeps embeddings as text and ranks in memory,
// which is fine for development and tests with a few thousand items.

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
