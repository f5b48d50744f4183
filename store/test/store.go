package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/secondbrain/internal/profile"
	"github.com/hrygo/secondbrain/internal/version"
	"github.com/hrygo/secondbrain/store"
	"github.com/hrygo/secondbrain/store/db"
)

// NewTestingStore opens a migrated store for the driver selected by
// SECONDBRAIN_TEST_DRIVER. SQLite in a temp dir is the default.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	profile := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(dbDriver, profile)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func getTestingProfile(t *testing.T) *profile.Profile {
	mode := "dev"
	driver := getDriverFromEnv()

	p := &profile.Profile{
		Mode:     mode,
		Driver:   driver,
		Version:  version.GetCurrentVersion(mode),
		Timezone: "UTC",
	}
	switch driver {
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		p.Data = t.TempDir()
		p.DSN = filepath.Join(p.Data, "secondbrain_test.db")
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("SECONDBRAIN_TEST_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
