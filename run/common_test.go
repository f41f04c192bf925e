package run

import (
	"testing"

	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a migrated test database and run store.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupMigratedDB(t)
	return db, NewSQLStore(db, logger.NewTestLogger())
}

func createRun(path string, status Status) *Run {
	return &Run{
		ConfigPath:    path,
		BaseDomain:    "current",
		CompareDomain: "new",
		Directory:     "shots",
		Mode:          "alphanumeric",
		Threshold:     5,
		Status:        status,
	}
}
