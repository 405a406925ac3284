package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"todoapp/internal/db"
	"todoapp/internal/logging"
)

// newTestDB opens a migrated in-memory SQLite database. A single connection
// keeps every query on the same in-memory instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.NewSQLite(":memory:", logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb, false, logging.Discard()))
	return gdb
}
