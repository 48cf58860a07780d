package migrations

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRunOnceSkipsAppliedMigration(t *testing.T) {
	db := newSQLiteDB(t)

	calls := 0
	fn := func(tx *gorm.DB) error {
		calls++
		return nil
	}

	require.NoError(t, RunOnce(db, "00099_test", fn))
	require.NoError(t, RunOnce(db, "00099_test", fn))

	assert.Equal(t, 1, calls)

	var count int64
	require.NoError(t, db.Model(&DataMigration{}).Where("id = ?", "00099_test").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRunOnceDoesNotRecordFailedMigration(t *testing.T) {
	db := newSQLiteDB(t)

	err := RunOnce(db, "00098_fails", func(tx *gorm.DB) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, db.Model(&DataMigration{}).Where("id = ?", "00098_fails").Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunOnceValidatesArguments(t *testing.T) {
	db := newSQLiteDB(t)

	assert.NoError(t, RunOnce(nil, "x", func(*gorm.DB) error { return nil }))
	assert.Error(t, RunOnce(db, "", func(*gorm.DB) error { return nil }))
	assert.Error(t, RunOnce(db, "x", nil))
}

func TestSeedGlobalEmergencyStopIsIdempotent(t *testing.T) {
	db := newSQLiteDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE emergency_stops (
		id integer primary key autoincrement,
		scope text, bot_id integer, active numeric, reason text,
		activated_at datetime, deactivated_at datetime,
		created_at datetime, updated_at datetime)`).Error)

	require.NoError(t, seedGlobalEmergencyStop(db))
	require.NoError(t, seedGlobalEmergencyStop(db))

	var count int64
	require.NoError(t, db.Table("emergency_stops").Where("scope = ?", "GLOBAL").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
