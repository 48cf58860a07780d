package migrations

import (
	"time"

	"gorm.io/gorm"
)

// seedGlobalEmergencyStop inserts the single inactive GLOBAL stop row so the
// gate and the dashboard always have a row to read and flip.
func seedGlobalEmergencyStop(tx *gorm.DB) error {
	now := time.Now().UTC()
	return tx.Exec(
		`INSERT INTO emergency_stops (scope, bot_id, active, reason, created_at, updated_at)
		 SELECT ?, 0, ?, '', ?, ?
		 WHERE NOT EXISTS (SELECT 1 FROM emergency_stops WHERE scope = ? AND bot_id = 0)`,
		"GLOBAL", false, now, now, "GLOBAL",
	).Error
}

// createActivePositionsIndex speeds up the scheduler and reconciliation scans,
// which only ever read positions that are not closed.
func createActivePositionsIndex(tx *gorm.DB) error {
	return tx.Exec(
		`CREATE INDEX IF NOT EXISTS idx_positions_active
		 ON positions (user_id, symbol, exchange)
		 WHERE status <> 'CLOSED'`,
	).Error
}
