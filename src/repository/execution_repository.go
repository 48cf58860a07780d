package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"botexecutor/src/database"
	"botexecutor/src/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateExecution is returned when a ledger row already exists for
	// the same (signal, user) pair.
	ErrDuplicateExecution = errors.New("execution already recorded for signal and user")
	// ErrInvalidTransition is returned when a status update does not match
	// the row's current status.
	ErrInvalidTransition = errors.New("execution status transition rejected")
)

const EmergencyStopCancelMessage = "emergency stop activated"

// ExecutionSearchOptions filters the execution ledger.
type ExecutionSearchOptions struct {
	UserID   uint
	BotID    *uint
	SignalID *uint
	Status   *string
	Limit    int
	Offset   int
}

// ExecutionRepository is the execution ledger.
type ExecutionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository() *ExecutionRepository {
	logger.WithField("component", "ExecutionRepository").
		Info("Creating new ExecutionRepository with MainDB")

	return &ExecutionRepository{db: database.MainDB}
}

func (r *ExecutionRepository) WithDB(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create inserts a PENDING ledger row.
func (r *ExecutionRepository) Create(ctx context.Context, exec *model.TradeExecution) error {
	if exec.Status == "" {
		exec.Status = model.ExecutionStatusPending
	}
	if exec.OrderTag == "" {
		exec.OrderTag = NewOrderTag()
	}

	logger.WithFields(map[string]interface{}{
		"repo":       "ExecutionRepository",
		"op":         "Create",
		"user_id":    exec.UserID,
		"symbol":     exec.Symbol,
		"trade_type": exec.TradeType,
		"qty":        exec.RequestedQuantity,
	}).Debug("Creating execution")

	err := r.db.WithContext(ctx).Create(exec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateExecution
		}
		logger.WithFields(map[string]interface{}{
			"repo":    "ExecutionRepository",
			"op":      "Create",
			"user_id": exec.UserID,
		}).WithError(err).Error("Failed to create execution")
		return err
	}

	return nil
}

// NewOrderTag returns a broker order tag: "bx" plus 16 hex characters,
// within the 20 character limit brokers put on tags.
func NewOrderTag() string {
	return "bx" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// FindByID returns (nil, nil) if not found.
func (r *ExecutionRepository) FindByID(ctx context.Context, id uint) (*model.TradeExecution, error) {
	var exec model.TradeExecution
	err := r.db.WithContext(ctx).First(&exec, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch execution")
		return nil, err
	}
	return &exec, nil
}

// FindBySignalAndUser returns the ledger row recorded for the pair, or (nil, nil).
func (r *ExecutionRepository) FindBySignalAndUser(ctx context.Context, signalID, userID uint) (*model.TradeExecution, error) {
	var exec model.TradeExecution
	err := r.db.WithContext(ctx).
		Where("signal_id = ? AND user_id = ?", signalID, userID).
		First(&exec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &exec, nil
}

// FindBySignal lists the ledger rows of one signal.
func (r *ExecutionRepository) FindBySignal(ctx context.Context, signalID uint) ([]model.TradeExecution, error) {
	var execs []model.TradeExecution
	err := r.db.WithContext(ctx).
		Where("signal_id = ?", signalID).
		Order("id ASC").
		Find(&execs).Error
	return execs, err
}

// stopScope matches an active global stop or an active stop for botID.
func stopScope(db *gorm.DB, botID uint) *gorm.DB {
	return db.Model(&model.EmergencyStop{}).
		Where("active = ? AND (scope = ? OR (scope = ? AND bot_id = ?))",
			true, model.StopScopeGlobal, model.StopScopeBot, botID)
}

// gateOpen is the emergency gate condition: emergency exits always pass,
// anything else only while no active stop covers the bot.
const gateOpen = "(is_emergency_exit = ? OR NOT EXISTS (?))"

// MarkSubmitted moves a PENDING row to SUBMITTED only when no emergency stop
// covers its bot. The check and the transition are one statement, so a stop
// that is committed first always wins. Emergency exits are never gated.
// It returns false when the gate refused or the row is no longer PENDING.
func (r *ExecutionRepository) MarkSubmitted(ctx context.Context, id, botID uint, at time.Time) (bool, error) {
	db := r.db.WithContext(ctx)

	res := db.Model(&model.TradeExecution{}).
		Where("id = ? AND status = ?", id, model.ExecutionStatusPending).
		Where(gateOpen, true, stopScope(r.db, botID).Select("1")).
		Updates(map[string]interface{}{
			"status":       model.ExecutionStatusSubmitted,
			"submitted_at": at,
		})

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "ExecutionRepository",
			"op":     "MarkSubmitted",
			"id":     id,
			"bot_id": botID,
		}).WithError(res.Error).Error("Failed to gate execution")
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		logger.WithFields(map[string]interface{}{
			"repo":   "ExecutionRepository",
			"op":     "MarkSubmitted",
			"id":     id,
			"bot_id": botID,
		}).Warn("Execution not moved to SUBMITTED")
		return false, nil
	}

	return true, nil
}

// RecheckGate runs the emergency gate again for a SUBMITTED row about to be
// retried. The row stays SUBMITTED; only the retry bookkeeping changes.
// It returns false when a stop now covers the bot or the row was settled.
func (r *ExecutionRepository) RecheckGate(ctx context.Context, id, botID uint, retryCount int, lastErr string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TradeExecution{}).
		Where("id = ? AND status = ?", id, model.ExecutionStatusSubmitted).
		Where(gateOpen, true, stopScope(r.db, botID).Select("1")).
		Updates(map[string]interface{}{
			"retry_count":   retryCount,
			"error_message": lastErr,
		})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionRepository",
			"op":   "RecheckGate",
			"id":   id,
		}).WithError(res.Error).Error("Failed to re-gate execution")
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPlaced stores the broker order id of a SUBMITTED row as soon as the
// broker accepts the order, before it fills. It reports whether a stop
// covering botID is active by then; the caller cancels the order if so.
func (r *ExecutionRepository) MarkPlaced(ctx context.Context, id, botID uint, brokerOrderID string) (bool, error) {
	db := r.db.WithContext(ctx)

	res := db.Model(&model.TradeExecution{}).
		Where("id = ? AND status = ?", id, model.ExecutionStatusSubmitted).
		Update("broker_order_id", brokerOrderID)
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":            "ExecutionRepository",
			"op":              "MarkPlaced",
			"id":              id,
			"broker_order_id": brokerOrderID,
		}).WithError(res.Error).Error("Failed to record placed order")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, ErrInvalidTransition
	}

	var stops int64
	if err := stopScope(db, botID).Count(&stops).Error; err != nil {
		return false, err
	}
	return stops > 0, nil
}

// MarkExecuted records the broker fill on a SUBMITTED row.
func (r *ExecutionRepository) MarkExecuted(
	ctx context.Context,
	id uint,
	brokerOrderID string,
	price decimal.Decimal,
	quantity int64,
	retryCount int,
	at time.Time,
) error {
	res := r.db.WithContext(ctx).
		Model(&model.TradeExecution{}).
		Where("id = ? AND status = ?", id, model.ExecutionStatusSubmitted).
		Updates(map[string]interface{}{
			"status":            model.ExecutionStatusExecuted,
			"broker_order_id":   brokerOrderID,
			"executed_price":    price,
			"executed_quantity": quantity,
			"retry_count":       retryCount,
			"executed_at":       at,
			"error_message":     "",
		})

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionRepository",
			"op":   "MarkExecuted",
			"id":   id,
		}).WithError(res.Error).Error("Failed to mark execution executed")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}

	logger.WithFields(map[string]interface{}{
		"repo":            "ExecutionRepository",
		"op":              "MarkExecuted",
		"id":              id,
		"broker_order_id": brokerOrderID,
		"price":           price.String(),
		"qty":             quantity,
	}).Info("Execution filled")

	return nil
}

// MarkFailed terminates a PENDING or SUBMITTED row.
func (r *ExecutionRepository) MarkFailed(ctx context.Context, id uint, message string, retryCount int) error {
	res := r.db.WithContext(ctx).
		Model(&model.TradeExecution{}).
		Where("id = ? AND status IN ?", id, []string{model.ExecutionStatusPending, model.ExecutionStatusSubmitted}).
		Updates(map[string]interface{}{
			"status":        model.ExecutionStatusFailed,
			"error_message": message,
			"retry_count":   retryCount,
		})

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionRepository",
			"op":   "MarkFailed",
			"id":   id,
		}).WithError(res.Error).Error("Failed to mark execution failed")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "ExecutionRepository",
		"op":     "MarkFailed",
		"id":     id,
		"reason": message,
	}).Warn("Execution failed")

	return nil
}

// AttachPnl sets realized P&L and fees on an EXECUTED row.
func (r *ExecutionRepository) AttachPnl(ctx context.Context, id uint, pnl, fees decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&model.TradeExecution{}).
		Where("id = ? AND status = ?", id, model.ExecutionStatusExecuted).
		Updates(map[string]interface{}{
			"realized_pnl": pnl,
			"fees":         fees,
		}).Error
}

// LinkPosition sets the position an execution affected.
func (r *ExecutionRepository) LinkPosition(ctx context.Context, id, positionID uint) error {
	return r.db.WithContext(ctx).
		Model(&model.TradeExecution{}).
		Where("id = ?", id).
		Update("position_id", positionID).Error
}

// CancelPending cancels every PENDING row, system wide when botID is nil.
// Emergency exits are left to run.
func (r *ExecutionRepository) CancelPending(ctx context.Context, botID *uint) (int64, error) {
	return cancelPending(r.db.WithContext(ctx), botID)
}

func cancelPending(db *gorm.DB, botID *uint) (int64, error) {
	q := db.Model(&model.TradeExecution{}).
		Where("status = ? AND is_emergency_exit = ?", model.ExecutionStatusPending, false)
	if botID != nil {
		q = q.Where("bot_id = ?", *botID)
	}

	res := q.Updates(map[string]interface{}{
		"status":            model.ExecutionStatusCancelled,
		"is_emergency_exit": true,
		"error_message":     EmergencyStopCancelMessage,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// FindSubmitted lists SUBMITTED rows, optionally scoped to one bot.
func (r *ExecutionRepository) FindSubmitted(ctx context.Context, botID *uint) ([]model.TradeExecution, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", model.ExecutionStatusSubmitted)
	if botID != nil {
		q = q.Where("bot_id = ?", *botID)
	}

	var execs []model.TradeExecution
	if err := q.Order("id ASC").Find(&execs).Error; err != nil {
		return nil, err
	}
	return execs, nil
}

// Search returns executions newest first.
func (r *ExecutionRepository) Search(ctx context.Context, options ExecutionSearchOptions) ([]model.TradeExecution, error) {
	q := r.db.WithContext(ctx).Model(&model.TradeExecution{})

	if options.UserID != 0 {
		q = q.Where("user_id = ?", options.UserID)
	}
	if options.BotID != nil {
		q = q.Where("bot_id = ?", *options.BotID)
	}
	if options.SignalID != nil {
		q = q.Where("signal_id = ?", *options.SignalID)
	}
	if options.Status != nil {
		q = q.Where("status = ?", *options.Status)
	}

	q = q.Order("created_at DESC, id DESC")

	if options.Limit > 0 {
		q = q.Limit(options.Limit)
	}
	if options.Offset > 0 {
		q = q.Offset(options.Offset)
	}

	var execs []model.TradeExecution
	if err := q.Find(&execs).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExecutionRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search executions")
		return nil, err
	}
	return execs, nil
}
