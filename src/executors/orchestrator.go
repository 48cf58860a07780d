package executors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"botexecutor/src/connectors"
	"botexecutor/src/controller"
	"botexecutor/src/model"
	"botexecutor/src/position"
	"botexecutor/src/repository"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidSignal   = errors.New("invalid signal")
	ErrExecutionFailed = errors.New("execution failed")
)

const (
	ReasonEmergencyStop = "emergency stop active"
	ReasonPositionOpen  = "position already open"
	ReasonExitInFlight  = "exit already in flight"
	ReasonFanOutTimeout = "fan-out timeout"

	EventExecutionResolved = "execution.resolved"
	EventSignalProcessed   = "signal.processed"
)

type botStore interface {
	FindByID(ctx context.Context, id uint) (*model.Bot, error)
}

type executionLedger interface {
	Create(ctx context.Context, exec *model.TradeExecution) error
	FindByID(ctx context.Context, id uint) (*model.TradeExecution, error)
	FindBySignalAndUser(ctx context.Context, signalID, userID uint) (*model.TradeExecution, error)
	MarkSubmitted(ctx context.Context, id, botID uint, at time.Time) (bool, error)
	RecheckGate(ctx context.Context, id, botID uint, retryCount int, lastErr string) (bool, error)
	MarkPlaced(ctx context.Context, id, botID uint, brokerOrderID string) (bool, error)
	MarkExecuted(ctx context.Context, id uint, brokerOrderID string, price decimal.Decimal, quantity int64, retryCount int, at time.Time) error
	MarkFailed(ctx context.Context, id uint, message string, retryCount int) error
}

type positionReader interface {
	FindByID(ctx context.Context, id uint) (*model.Position, error)
	FindActiveFor(ctx context.Context, userID, botID uint, symbol, exchange string) (*model.Position, error)
	ClaimExit(ctx context.Context, id uint, tag string, at, staleBefore time.Time) (bool, error)
	ReleaseExit(ctx context.Context, id uint, tag string) error
}

type signalStore interface {
	MarkProcessed(ctx context.Context, id uint, total, successful, failed int, at time.Time) error
}

type positionApplier interface {
	ApplyEntry(ctx context.Context, exec *model.TradeExecution, bot *model.Bot) (*model.Position, error)
	ApplyExit(ctx context.Context, exec *model.TradeExecution, positionID uint, reason string) (*model.Position, error)
}

type publisher interface {
	Publish(eventType string, data interface{})
}

// Result is the outcome for one user of a signal.
type Result struct {
	UserID      uint   `json:"userId"`
	ExecutionID uint   `json:"executionId,omitempty"`
	TradeType   string `json:"tradeType,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	RetryCount  int    `json:"retryCount"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

// Succeeded reports whether the user's order was filled.
func (r Result) Succeeded() bool {
	return r.Status == model.ExecutionStatusExecuted
}

// Summary aggregates one signal's fan-out.
type Summary struct {
	SignalID   uint     `json:"signalId"`
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	TimedOut   int      `json:"timedOut"`
	Results    []Result `json:"results"`
}

// Orchestrator fans a signal out to every allocated user and drives each
// user's order through the ledger, the emergency gate and the broker.
type Orchestrator struct {
	bots       botStore
	executions executionLedger
	positions  positionReader
	signals    signalStore
	manager    positionApplier
	gateways   connectors.GatewayProvider
	events     publisher
	exceptions *repository.ExceptionRepository
	retry      RetryPolicy
	config     Config
	log        *logger.Entry

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Dependencies groups the collaborators of an Orchestrator.
type Dependencies struct {
	Bots       botStore
	Executions executionLedger
	Positions  positionReader
	Signals    signalStore
	Manager    positionApplier
	Gateways   connectors.GatewayProvider
	Events     publisher
	Exceptions *repository.ExceptionRepository
}

func NewOrchestrator(deps Dependencies, retry RetryPolicy, config Config, log *logger.Entry) *Orchestrator {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	if config.FanOutConcurrency <= 0 {
		config.FanOutConcurrency = 16
	}
	if config.FanOutTimeout <= 0 {
		config.FanOutTimeout = 60 * time.Second
	}
	if config.OrderTimeout <= 0 {
		config.OrderTimeout = 15 * time.Second
	}
	if config.ExitClaimTimeout <= 0 {
		config.ExitClaimTimeout = 5 * time.Minute
	}
	if config.DefaultProduct == "" {
		config.DefaultProduct = model.ProductIntraday
	}
	return &Orchestrator{
		bots:       deps.Bots,
		executions: deps.Executions,
		positions:  deps.Positions,
		signals:    deps.Signals,
		manager:    deps.Manager,
		gateways:   deps.Gateways,
		events:     deps.Events,
		exceptions: deps.Exceptions,
		retry:      retry,
		config:     config,
		log:        log.WithField("component", "orchestrator"),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// job is one ledger row on its way to the broker.
type job struct {
	exec   *model.TradeExecution
	bot    *model.Bot
	health *healthChecks
}

// healthChecks runs CheckConnection at most once per gateway for a batch.
type healthChecks struct {
	mu      sync.Mutex
	results map[connectors.BrokerGateway]*healthResult
	timeout time.Duration
}

type healthResult struct {
	once sync.Once
	err  error
}

func newHealthChecks(timeout time.Duration) *healthChecks {
	return &healthChecks{results: map[connectors.BrokerGateway]*healthResult{}, timeout: timeout}
}

func (h *healthChecks) check(ctx context.Context, gw connectors.BrokerGateway) error {
	h.mu.Lock()
	res, ok := h.results[gw]
	if !ok {
		res = &healthResult{}
		h.results[gw] = res
	}
	h.mu.Unlock()

	res.once.Do(func() {
		callCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		res.err = gw.CheckConnection(callCtx)
	})
	return res.err
}

// ValidateSignal rejects signals that must never reach the ledger.
func ValidateSignal(signal *model.WebhookSignal) error {
	if signal == nil || signal.ID == 0 {
		return fmt.Errorf("%w: signal is not persisted", ErrInvalidSignal)
	}
	side := strings.ToUpper(signal.Side)
	if side != model.SideBuy && side != model.SideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidSignal, signal.Side)
	}
	if !signal.Price.IsPositive() {
		return fmt.Errorf("%w: price %s", ErrInvalidSignal, signal.Price)
	}
	if strings.TrimSpace(signal.Symbol) == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidSignal)
	}
	return nil
}

// ProcessSignal executes signal for every active allocation of its bot.
// Counters are written once, when every user resolved or the fan-out
// ceiling elapsed. Users still running at the ceiling count as failed and
// settle their rows later; users that never started get a FAILED row.
func (o *Orchestrator) ProcessSignal(
	ctx context.Context,
	signal *model.WebhookSignal,
	allocations []model.UserBotAllocation,
) (*Summary, error) {
	if err := ValidateSignal(signal); err != nil {
		return nil, err
	}
	signal.Side = strings.ToUpper(signal.Side)

	bot, err := o.bots.FindByID(ctx, signal.BotID)
	if err != nil {
		return nil, fmt.Errorf("load bot %d: %w", signal.BotID, err)
	}
	if bot == nil {
		return nil, fmt.Errorf("%w: unknown bot %d", ErrInvalidSignal, signal.BotID)
	}
	if !bot.Active {
		return nil, fmt.Errorf("%w: bot %d is inactive", ErrInvalidSignal, signal.BotID)
	}

	eligible := make([]model.UserBotAllocation, 0, len(allocations))
	for _, a := range allocations {
		if a.IsActive && a.BotID == bot.ID {
			eligible = append(eligible, a)
		}
	}

	log := o.log.WithFields(map[string]interface{}{
		"signal_id": signal.ID,
		"bot_id":    bot.ID,
		"symbol":    signal.Symbol,
		"side":      signal.Side,
		"users":     len(eligible),
	})
	log.Info("Processing signal")

	health := newHealthChecks(o.config.OrderTimeout)

	// Users outlive the signal's deadline so that every started user settles
	// its ledger row; each broker call still carries OrderTimeout.
	userCtx := context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		results = make([]Result, len(eligible))
		states  = make([]userState, len(eligible))
	)

	g := new(errgroup.Group)
	g.SetLimit(o.config.FanOutConcurrency)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, alloc := range eligible {
			g.Go(func() error {
				mu.Lock()
				if states[i] == userAbandoned {
					mu.Unlock()
					return nil
				}
				states[i] = userStarted
				mu.Unlock()

				r := o.executeForUser(userCtx, signal, bot, alloc, health)

				mu.Lock()
				results[i] = r
				states[i] = userResolved
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	timer := time.NewTimer(o.config.FanOutTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		log.WithField("timeout", o.config.FanOutTimeout.String()).Warn("Fan-out ceiling reached, counting stragglers as failed")
	case <-ctx.Done():
		log.WithError(ctx.Err()).Warn("Signal context ended before fan-out completed")
	}

	// users still queued behind the concurrency limit never start
	mu.Lock()
	var abandoned []int
	for i := range eligible {
		if states[i] == userQueued {
			states[i] = userAbandoned
			abandoned = append(abandoned, i)
		}
	}
	mu.Unlock()

	for _, i := range abandoned {
		exec := o.newSignalExecution(signal, bot, eligible[i])
		r := o.recordRejected(userCtx, exec, ReasonFanOutTimeout)
		mu.Lock()
		results[i] = r
		mu.Unlock()
	}

	summary := &Summary{SignalID: signal.ID, Total: len(eligible)}

	mu.Lock()
	for i, alloc := range eligible {
		r := results[i]
		switch states[i] {
		case userStarted:
			r = Result{UserID: alloc.UserID, Status: model.ExecutionStatusPending, Error: ReasonFanOutTimeout}
			summary.TimedOut++
		case userAbandoned:
			summary.TimedOut++
		}
		if r.Succeeded() {
			summary.Successful++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, r)
	}
	mu.Unlock()

	err = o.signals.MarkProcessed(userCtx, signal.ID, summary.Total, summary.Successful, summary.Failed, o.now().UTC())
	switch {
	case errors.Is(err, repository.ErrSignalAlreadyProcessed):
		log.Warn("Signal counters were already written, keeping the first summary")
	case err != nil:
		return summary, fmt.Errorf("write counters for signal %d: %w", signal.ID, err)
	}

	log.WithFields(map[string]interface{}{
		"successful": summary.Successful,
		"failed":     summary.Failed,
		"timed_out":  summary.TimedOut,
	}).Info("Signal processed")

	o.publish(EventSignalProcessed, summary)
	return summary, nil
}

type userState int

const (
	userQueued userState = iota
	userStarted
	userResolved
	userAbandoned
)

// executeForUser never returns an error: every outcome is recorded in the
// ledger and reported in the Result.
func (o *Orchestrator) executeForUser(
	ctx context.Context,
	signal *model.WebhookSignal,
	bot *model.Bot,
	alloc model.UserBotAllocation,
	health *healthChecks,
) Result {
	existing, err := o.executions.FindBySignalAndUser(ctx, signal.ID, alloc.UserID)
	if err != nil {
		return Result{UserID: alloc.UserID, Status: model.ExecutionStatusFailed, Error: err.Error()}
	}
	if existing != nil {
		return duplicateResult(existing)
	}

	exec := o.newSignalExecution(signal, bot, alloc)

	if signal.EmergencyStop {
		return o.recordRejected(ctx, exec, ReasonEmergencyStop)
	}

	pos, err := o.positions.FindActiveFor(ctx, alloc.UserID, bot.ID, exec.Symbol, exec.Exchange)
	if err != nil {
		return o.recordRejected(ctx, exec, fmt.Sprintf("position lookup: %v", err))
	}

	switch {
	case pos == nil:
		qty, lots, err := sizeEntry(alloc, bot)
		if err != nil {
			return o.recordRejected(ctx, exec, err.Error())
		}
		exec.RequestedQuantity = qty
		o.log.WithFields(map[string]interface{}{
			"signal_id": signal.ID,
			"user_id":   alloc.UserID,
			"lots":      lots,
			"qty":       qty,
		}).Debug("Entry sized")

	case pos.Side == positionSideFor(signal.Side):
		return o.recordRejected(ctx, exec, ReasonPositionOpen)

	default:
		exec.OrderType = model.OrderTypeExit
		exec.TradeType = model.TradeTypeExit
		exec.ExitReason = model.ExitReasonSignal
		exec.PositionID = &pos.ID
		exec.OrderTag = repository.NewOrderTag()

		held, err := o.claimExit(ctx, pos.ID, exec.OrderTag)
		if err != nil {
			reason := fmt.Sprintf("exit claim: %v", err)
			if errors.Is(err, position.ErrExitInProgress) {
				reason = ReasonExitInFlight
			}
			return o.recordRejected(ctx, exec, reason)
		}
		defer o.releaseExit(ctx, pos.ID, exec.OrderTag)
		exec.RequestedQuantity = held.CurrentQuantity
	}

	if err := o.executions.Create(ctx, exec); err != nil {
		if errors.Is(err, repository.ErrDuplicateExecution) {
			if existing, _ := o.executions.FindBySignalAndUser(ctx, signal.ID, alloc.UserID); existing != nil {
				return duplicateResult(existing)
			}
		}
		return Result{UserID: alloc.UserID, Status: model.ExecutionStatusFailed, Error: err.Error()}
	}

	_ = o.run(ctx, &job{exec: exec, bot: bot, health: health})
	return resultOf(exec)
}

func (o *Orchestrator) newSignalExecution(signal *model.WebhookSignal, bot *model.Bot, alloc model.UserBotAllocation) *model.TradeExecution {
	signalID := signal.ID
	allocationID := alloc.ID

	exchange := strings.ToUpper(signal.Exchange)
	if exchange == "" {
		exchange = bot.Exchange
	}
	product := bot.Product
	if product == "" {
		product = o.config.DefaultProduct
	}

	return &model.TradeExecution{
		UserID:         alloc.UserID,
		BotID:          bot.ID,
		SignalID:       &signalID,
		AllocationID:   &allocationID,
		Symbol:         strings.ToUpper(signal.Symbol),
		Exchange:       exchange,
		InstrumentType: bot.InstrumentType,
		Product:        product,
		OrderType:      signal.Side,
		Side:           signal.Side,
		TradeType:      model.TradeTypeEntry,
		RequestedPrice: signal.Price,
	}
}

// recordRejected stores a FAILED row for a user that never reached the
// broker, keeping one ledger row per targeted user.
func (o *Orchestrator) recordRejected(ctx context.Context, exec *model.TradeExecution, reason string) Result {
	exec.Status = model.ExecutionStatusFailed
	exec.ErrorMessage = reason

	if err := o.executions.Create(ctx, exec); err != nil {
		if errors.Is(err, repository.ErrDuplicateExecution) && exec.SignalID != nil {
			if existing, _ := o.executions.FindBySignalAndUser(ctx, *exec.SignalID, exec.UserID); existing != nil {
				return duplicateResult(existing)
			}
		}
		o.log.WithField("user_id", exec.UserID).WithError(err).Error("Failed to record rejected execution")
	}

	o.log.WithFields(map[string]interface{}{
		"user_id": exec.UserID,
		"bot_id":  exec.BotID,
		"reason":  reason,
	}).Warn("Execution rejected before submission")

	o.publish(EventExecutionResolved, exec)
	return resultOf(exec)
}

// run takes a PENDING row through gate, broker and position manager.
// The returned error wraps ErrExecutionFailed when the row ended FAILED or
// CANCELLED.
func (o *Orchestrator) run(ctx context.Context, j *job) error {
	exec := j.exec
	log := o.log.WithFields(map[string]interface{}{
		"execution_id": exec.ID,
		"user_id":      exec.UserID,
		"bot_id":       exec.BotID,
		"trade_type":   exec.TradeType,
	})

	gw, err := o.gateways.GatewayFor(ctx, exec.UserID)
	if err != nil {
		return o.fail(ctx, exec, fmt.Sprintf("broker account: %v", err), 0)
	}
	if j.health != nil {
		if err := j.health.check(ctx, gw); err != nil {
			return o.fail(ctx, exec, fmt.Sprintf("broker unavailable: %v", err), 0)
		}
	}

	attempts := o.retry.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		retries := attempt - 1

		var passed bool
		if retries == 0 {
			passed, err = o.executions.MarkSubmitted(ctx, exec.ID, exec.BotID, o.now().UTC())
		} else {
			if err := o.sleep(ctx, o.retry.Delay(retries)); err != nil {
				return o.fail(ctx, exec, err.Error(), retries-1)
			}
			// the row stays SUBMITTED between attempts
			passed, err = o.executions.RecheckGate(ctx, exec.ID, exec.BotID, retries, exec.ErrorMessage)
		}
		if err != nil {
			return o.fail(ctx, exec, fmt.Sprintf("gate: %v", err), retries)
		}
		if !passed {
			return o.gateRefused(ctx, exec, retries)
		}
		exec.Status = model.ExecutionStatusSubmitted
		exec.RetryCount = retries

		ack, err := o.attempt(ctx, gw, exec, retries > 0)
		if err == nil {
			return o.filled(ctx, j, ack, retries)
		}

		exec.ErrorMessage = err.Error()
		class := connectors.Classify(err)
		log.WithFields(map[string]interface{}{
			"attempt": attempt,
			"class":   class.String(),
		}).WithError(err).Warn("Broker submission failed")

		if !o.retry.ShouldRetry(err, attempt) {
			return o.fail(ctx, exec, err.Error(), retries)
		}
	}

	return o.fail(ctx, exec, exec.ErrorMessage, attempts-1)
}

// attempt submits the order. On a retry it first asks the broker for an
// order carrying the row's tag, so a timed-out order that was accepted is
// not placed twice.
func (o *Orchestrator) attempt(ctx context.Context, gw connectors.BrokerGateway, exec *model.TradeExecution, retry bool) (*connectors.OrderAck, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.config.OrderTimeout)
	defer cancel()

	if retry {
		if lookup, ok := gw.(connectors.OrderLookup); ok {
			ack, err := lookup.FindOrderByTag(callCtx, exec.OrderTag)
			if err != nil {
				return nil, err
			}
			if ack != nil {
				o.log.WithFields(map[string]interface{}{
					"execution_id":    exec.ID,
					"broker_order_id": ack.BrokerOrderID,
					"tag":             exec.OrderTag,
				}).Info("Order from an earlier attempt found at broker")
				return ack, nil
			}
		}
	}

	if placer, ok := gw.(connectors.OrderPlacer); ok {
		return o.placeAndAwait(ctx, callCtx, gw, placer, exec)
	}
	return gw.SubmitOrder(callCtx, mapOrder(exec))
}

// placeAndAwait records the broker order id while the order is still open so
// an emergency stop can cancel it at the broker. A stop raised before the id
// was recorded is honoured here instead.
func (o *Orchestrator) placeAndAwait(
	ctx, callCtx context.Context,
	gw connectors.BrokerGateway,
	placer connectors.OrderPlacer,
	exec *model.TradeExecution,
) (*connectors.OrderAck, error) {
	orderID, err := placer.PlaceOrder(callCtx, mapOrder(exec))
	if err != nil {
		return nil, err
	}
	exec.BrokerOrderID = &orderID

	fields := map[string]interface{}{
		"execution_id":    exec.ID,
		"broker_order_id": orderID,
	}
	stopped, err := o.executions.MarkPlaced(context.WithoutCancel(ctx), exec.ID, exec.BotID, orderID)
	if err != nil {
		controller.Capture(ctx, o.exceptions, "orchestrator", "MarkPlaced", "warn", err, fields)
	}
	if stopped && !exec.IsEmergencyExit {
		o.log.WithFields(fields).Warn("Emergency stop raised while order was in flight, cancelling at broker")
		if err := gw.CancelOrder(callCtx, orderID); err != nil {
			controller.Capture(ctx, o.exceptions, "orchestrator", "CancelOrder", "warn", err, fields)
		}
	}

	return placer.AwaitOrder(callCtx, orderID)
}

func (o *Orchestrator) gateRefused(ctx context.Context, exec *model.TradeExecution, retries int) error {
	current, err := o.executions.FindByID(ctx, exec.ID)
	if err == nil && current != nil && current.Status == model.ExecutionStatusCancelled {
		exec.Status = current.Status
		exec.ErrorMessage = current.ErrorMessage
		o.publish(EventExecutionResolved, exec)
		return fmt.Errorf("%w: %s", ErrExecutionFailed, current.ErrorMessage)
	}
	return o.fail(ctx, exec, ReasonEmergencyStop, retries)
}

func (o *Orchestrator) fail(ctx context.Context, exec *model.TradeExecution, message string, retries int) error {
	if retries < 0 {
		retries = 0
	}
	writeCtx := context.WithoutCancel(ctx)

	err := o.executions.MarkFailed(writeCtx, exec.ID, message, retries)
	if errors.Is(err, repository.ErrInvalidTransition) {
		// cancelled underneath us by an emergency stop
		if current, _ := o.executions.FindByID(writeCtx, exec.ID); current != nil {
			exec.Status = current.Status
			exec.ErrorMessage = current.ErrorMessage
			o.publish(EventExecutionResolved, exec)
			return fmt.Errorf("%w: %s", ErrExecutionFailed, current.ErrorMessage)
		}
	} else if err != nil {
		controller.Capture(ctx, o.exceptions, "orchestrator", "MarkFailed", "error", err, map[string]interface{}{
			"execution_id": exec.ID,
		})
	}

	exec.Status = model.ExecutionStatusFailed
	exec.ErrorMessage = message
	exec.RetryCount = retries

	o.publish(EventExecutionResolved, exec)
	return fmt.Errorf("%w: %s", ErrExecutionFailed, message)
}

func (o *Orchestrator) filled(ctx context.Context, j *job, ack *connectors.OrderAck, retries int) error {
	exec := j.exec
	fill := mapFill(ack, exec)
	at := o.now().UTC()
	writeCtx := context.WithoutCancel(ctx)

	if err := o.executions.MarkExecuted(writeCtx, exec.ID, fill.BrokerOrderID, fill.Price, fill.Quantity, retries, at); err != nil {
		controller.Capture(ctx, o.exceptions, "orchestrator", "MarkExecuted", "error", err, map[string]interface{}{
			"execution_id":    exec.ID,
			"broker_order_id": fill.BrokerOrderID,
		})
		return o.fail(ctx, exec, fmt.Sprintf("record fill %s: %v", fill.BrokerOrderID, err), retries)
	}

	brokerOrderID := fill.BrokerOrderID
	exec.Status = model.ExecutionStatusExecuted
	exec.BrokerOrderID = &brokerOrderID
	exec.ExecutedPrice = fill.Price
	exec.ExecutedQuantity = fill.Quantity
	exec.RetryCount = retries
	exec.ExecutedAt = &at
	exec.ErrorMessage = ""

	var err error
	switch {
	case exec.TradeType == model.TradeTypeEntry:
		_, err = o.manager.ApplyEntry(writeCtx, exec, j.bot)
	case exec.PositionID != nil:
		_, err = o.manager.ApplyExit(writeCtx, exec, *exec.PositionID, exec.ExitReason)
	}
	o.publish(EventExecutionResolved, exec)

	if err != nil {
		// the fill stands; reconciliation repairs the position side
		controller.Capture(ctx, o.exceptions, "orchestrator", "ApplyFill", "error", err, map[string]interface{}{
			"execution_id": exec.ID,
			"trade_type":   exec.TradeType,
		})
		if exec.TradeType != model.TradeTypeEntry {
			return fmt.Errorf("apply exit fill to position %d: %w", *exec.PositionID, err)
		}
	}
	return nil
}

func (o *Orchestrator) publish(eventType string, data interface{}) {
	if o.events != nil {
		o.events.Publish(eventType, data)
	}
}

func resultOf(exec *model.TradeExecution) Result {
	return Result{
		UserID:      exec.UserID,
		ExecutionID: exec.ID,
		TradeType:   exec.TradeType,
		Status:      exec.Status,
		Error:       exec.ErrorMessage,
		RetryCount:  exec.RetryCount,
	}
}

func duplicateResult(exec *model.TradeExecution) Result {
	r := resultOf(exec)
	r.Duplicate = true
	return r
}
