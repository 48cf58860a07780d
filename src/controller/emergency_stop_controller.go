package controller

import (
	"context"
	"fmt"
	"time"

	"botexecutor/src/connectors"
	"botexecutor/src/model"
	"botexecutor/src/repository"

	logger "github.com/sirupsen/logrus"
)

// EventEmergencyStop is published whenever a stop is raised or lowered.
const EventEmergencyStop = "emergency_stop.changed"

type stopStore interface {
	ActivateAndCancelPending(ctx context.Context, botID *uint, reason string, at time.Time) (int64, error)
	Deactivate(ctx context.Context, botID *uint, at time.Time) error
	IsActive(ctx context.Context, botID uint) (bool, error)
	Find(ctx context.Context, botID *uint) (*model.EmergencyStop, error)
	ListActive(ctx context.Context) ([]model.EmergencyStop, error)
}

type submittedStore interface {
	FindSubmitted(ctx context.Context, botID *uint) ([]model.TradeExecution, error)
}

type publisher interface {
	Publish(eventType string, data interface{})
}

// StopResult reports what raising a stop did.
type StopResult struct {
	Scope           string `json:"scope"`
	BotID           *uint  `json:"botId,omitempty"`
	Cancelled       int64  `json:"cancelled"`
	CancelRequested int    `json:"cancelRequested"`
	CancelFailed    int    `json:"cancelFailed"`
}

// EmergencyStopController raises and lowers the persisted kill switch.
// The order gate reads the same rows, so a stop committed here wins against
// every submission that has not yet passed the gate.
type EmergencyStopController struct {
	stops      stopStore
	executions submittedStore
	gateways   connectors.GatewayProvider
	exceptions *repository.ExceptionRepository
	events     publisher
	config     Config
	log        *logger.Entry
	now        func() time.Time
}

func NewEmergencyStopController(
	stops stopStore,
	executions submittedStore,
	gateways connectors.GatewayProvider,
	exceptions *repository.ExceptionRepository,
	events publisher,
	config Config,
	log *logger.Entry,
) *EmergencyStopController {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &EmergencyStopController{
		stops:      stops,
		executions: executions,
		gateways:   gateways,
		exceptions: exceptions,
		events:     events,
		config:     config,
		log:        log.WithField("component", "emergency_stop"),
		now:        time.Now,
	}
}

// Activate raises the stop (global when botID is nil) and cancels PENDING
// executions in scope atomically with it. SUBMITTED executions whose order
// the broker already accepted get a best-effort broker cancel; an order
// accepted after this point is cancelled by the orchestrator when it records
// the broker order id. Emergency exits are left alone. Anything the broker
// filled anyway is picked up by reconciliation.
func (c *EmergencyStopController) Activate(ctx context.Context, botID *uint, reason string) (*StopResult, error) {
	if reason == "" {
		reason = "manual"
	}
	scope := scopeLabel(botID)

	cancelled, err := c.stops.ActivateAndCancelPending(ctx, botID, reason, c.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("activate %s emergency stop: %w", scope, err)
	}

	result := &StopResult{Scope: scope, BotID: botID, Cancelled: cancelled}

	c.log.WithFields(map[string]interface{}{
		"scope":     scope,
		"bot_id":    botID,
		"reason":    reason,
		"cancelled": cancelled,
	}).Warn("Emergency stop raised")

	c.cancelSubmitted(ctx, botID, result)

	if c.events != nil {
		c.events.Publish(EventEmergencyStop, map[string]interface{}{
			"active": true,
			"scope":  scope,
			"botId":  botID,
			"reason": reason,
		})
	}
	return result, nil
}

func (c *EmergencyStopController) cancelSubmitted(ctx context.Context, botID *uint, result *StopResult) {
	submitted, err := c.executions.FindSubmitted(ctx, botID)
	if err != nil {
		Capture(ctx, c.exceptions, "emergency_stop", "FindSubmitted", "error", err, nil)
		return
	}

	for _, exec := range submitted {
		if exec.IsEmergencyExit {
			continue
		}
		if exec.BrokerOrderID == nil || *exec.BrokerOrderID == "" {
			c.log.WithField("execution_id", exec.ID).
				Info("Submitted execution has no broker order id yet, leaving it to reconciliation")
			continue
		}
		if c.gateways == nil {
			continue
		}

		result.CancelRequested++
		if err := c.cancelAtBroker(ctx, exec); err != nil {
			result.CancelFailed++
			Capture(ctx, c.exceptions, "emergency_stop", "CancelOrder", "warn", err, map[string]interface{}{
				"execution_id":    exec.ID,
				"user_id":         exec.UserID,
				"broker_order_id": *exec.BrokerOrderID,
			})
		}
	}
}

func (c *EmergencyStopController) cancelAtBroker(ctx context.Context, exec model.TradeExecution) error {
	gw, err := c.gateways.GatewayFor(ctx, exec.UserID)
	if err != nil {
		return err
	}

	timeout := c.config.CancelTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return gw.CancelOrder(callCtx, *exec.BrokerOrderID)
}

// Deactivate lowers the stop. Executions it cancelled stay cancelled.
func (c *EmergencyStopController) Deactivate(ctx context.Context, botID *uint) error {
	scope := scopeLabel(botID)
	if err := c.stops.Deactivate(ctx, botID, c.now().UTC()); err != nil {
		return fmt.Errorf("deactivate %s emergency stop: %w", scope, err)
	}

	c.log.WithFields(map[string]interface{}{
		"scope":  scope,
		"bot_id": botID,
	}).Info("Emergency stop lowered")

	if c.events != nil {
		c.events.Publish(EventEmergencyStop, map[string]interface{}{
			"active": false,
			"scope":  scope,
			"botId":  botID,
		})
	}
	return nil
}

// IsStopped reads the database on every call: global stop OR stop on botID.
func (c *EmergencyStopController) IsStopped(ctx context.Context, botID uint) (bool, error) {
	return c.stops.IsActive(ctx, botID)
}

// Status returns the stop row for a scope, or nil if it was never raised.
func (c *EmergencyStopController) Status(ctx context.Context, botID *uint) (*model.EmergencyStop, error) {
	return c.stops.Find(ctx, botID)
}

// ActiveStops lists every raised stop.
func (c *EmergencyStopController) ActiveStops(ctx context.Context) ([]model.EmergencyStop, error) {
	return c.stops.ListActive(ctx)
}

func scopeLabel(botID *uint) string {
	if botID == nil {
		return model.StopScopeGlobal
	}
	return model.StopScopeBot
}
