package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	dsn, err := Config{Driver: DriverSQLite, Path: "data/shotdiff.db"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "data/shotdiff.db?_foreign_keys=on&_busy_timeout=5000", dsn)

	dsn, err = Config{
		Driver:   DriverMySQL,
		Host:     "db",
		Port:     3306,
		User:     "shotdiff",
		Password: "secret",
		Database: "shotdiff",
	}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "shotdiff:secret@tcp(db:3306)/shotdiff?charset=utf8mb4&parseTime=True&loc=UTC&multiStatements=true", dsn)

	_, err = Config{Driver: "postgres"}.DSN()
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestMigrations(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "nested", "shotdiff.db")})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	v, dirty, err := Version(sqlDB, DriverSQLite)
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	require.NoError(t, RunMigrations(sqlDB, DriverSQLite))
	require.NoError(t, RunMigrations(sqlDB, DriverSQLite), "applying twice is a no-op")
	assert.True(t, db.Migrator().HasTable("runs"))
	assert.True(t, db.Migrator().HasTable("results"))

	v, _, err = Version(sqlDB, DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)

	require.NoError(t, RollbackMigration(sqlDB, DriverSQLite))
	assert.False(t, db.Migrator().HasTable("results"))
	assert.True(t, db.Migrator().HasTable("runs"))
}

func TestRunMigrations_UnknownDriver(t *testing.T) {
	err := RunMigrations(nil, "postgres")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
