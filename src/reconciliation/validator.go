package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"botexecutor/src/connectors"
	"botexecutor/src/controller"
	"botexecutor/src/model"
	"botexecutor/src/position"
	"botexecutor/src/repository"
	"botexecutor/src/tp_sl"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// Action is what reconciliation did to one position.
type Action string

const (
	ActionSynced  Action = "synced"
	ActionClosed  Action = "closed_external"
	ActionReduced Action = "reduced_external"
	ActionFlagged Action = "flagged"
	ActionSkipped Action = "skipped"
	ActionExited  Action = "level_exit"
)

// Result is the broker's view of one local position.
type Result struct {
	PositionID      uint            `json:"positionId"`
	ExistsInZerodha bool            `json:"existsInZerodha"`
	LiveQuantity    int64           `json:"liveQuantity"`
	LivePrice       decimal.Decimal `json:"livePrice"`
	LivePnl         decimal.Decimal `json:"livePnl"`
	ValidationError string          `json:"validationError,omitempty"`
}

// Report summarizes a RunAll sweep.
type Report struct {
	Checked int `json:"checked"`
	Synced  int `json:"synced"`
	Closed  int `json:"closed"`
	Reduced int `json:"reduced"`
	Flagged int `json:"flagged"`
	Skipped int `json:"skipped"`
	Exited  int `json:"exited"`
	Errors  int `json:"errors"`
}

func (r *Report) count(action Action) {
	switch action {
	case ActionSynced:
		r.Synced++
	case ActionClosed:
		r.Closed++
	case ActionReduced:
		r.Reduced++
	case ActionFlagged:
		r.Flagged++
	case ActionSkipped:
		r.Skipped++
	case ActionExited:
		r.Exited++
	}
}

type positionStore interface {
	FindByID(ctx context.Context, id uint) (*model.Position, error)
	FindActive(ctx context.Context) ([]model.Position, error)
	UpdateMarks(ctx context.Context, id uint, lastPrice, unrealized decimal.Decimal, mismatch bool, brokerQuantity *int64) error
}

type externalApplier interface {
	CloseExternally(ctx context.Context, positionID uint, livePrice decimal.Decimal) (*model.Position, error)
	ReduceExternally(ctx context.Context, positionID uint, qty int64, livePrice decimal.Decimal) (*model.Position, error)
}

type positionExiter interface {
	ExitPosition(ctx context.Context, positionID uint, reason string, qty int64) (*model.TradeExecution, error)
}

// Validator compares local positions with the broker and repairs drift
// without sending orders. The only order it can cause is a stop-loss or
// target exit when level enforcement is on.
type Validator struct {
	positions  positionStore
	manager    externalApplier
	exits      positionExiter
	gateways   connectors.GatewayProvider
	exceptions *repository.ExceptionRepository
	config     Config
	log        *logger.Entry
}

func NewValidator(
	positions positionStore,
	manager externalApplier,
	exits positionExiter,
	gateways connectors.GatewayProvider,
	exceptions *repository.ExceptionRepository,
	config Config,
	log *logger.Entry,
) *Validator {
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Validator{
		positions:  positions,
		manager:    manager,
		exits:      exits,
		gateways:   gateways,
		exceptions: exceptions,
		config:     config,
		log:        log.WithField("component", "reconciliation"),
	}
}

// livePosition queries the broker for the user's net position. A nil
// position with nil error means the broker holds nothing.
func (v *Validator) livePosition(ctx context.Context, userID uint, symbol, exchange string) (*connectors.LivePosition, error) {
	gw, err := v.gateways.GatewayFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, v.config.QueryTimeout)
	defer cancel()

	live, err := gw.GetPosition(callCtx, symbol, exchange)
	if errors.Is(err, connectors.ErrPositionNotFound) {
		return nil, nil
	}
	return live, err
}

// exposure is the broker quantity on the side of a local position.
func exposure(side string, live *connectors.LivePosition) int64 {
	if live == nil {
		return 0
	}
	q := live.Quantity
	if side == model.PositionSideShort {
		q = -q
	}
	if q < 0 {
		return 0
	}
	return q
}

func resultFor(pos *model.Position, live *connectors.LivePosition, queryErr error) Result {
	r := Result{PositionID: pos.ID}
	if queryErr != nil {
		r.ValidationError = queryErr.Error()
		return r
	}
	qty := exposure(pos.Side, live)
	if qty == 0 {
		return r
	}
	r.ExistsInZerodha = true
	r.LiveQuantity = qty
	r.LivePrice = live.LastPrice
	r.LivePnl = live.Pnl
	return r
}

// Validate reports the broker's view of pos. Broker errors never escape:
// they mark the position as not found and fill ValidationError.
func (v *Validator) Validate(ctx context.Context, pos *model.Position) Result {
	live, err := v.livePosition(ctx, pos.UserID, pos.Symbol, pos.Exchange)
	return resultFor(pos, live, err)
}

// Reconcile validates one position and repairs it. The broker net position
// is shared by every local position of the user on the same instrument, so
// the whole group is reconciled and pos's part is returned.
func (v *Validator) Reconcile(ctx context.Context, pos *model.Position) (Result, Action, error) {
	active, err := v.positions.FindActive(ctx)
	if err != nil {
		return Result{PositionID: pos.ID}, "", err
	}

	var group []model.Position
	for _, p := range active {
		if groupKeyOf(&p) == groupKeyOf(pos) {
			group = append(group, p)
		}
	}
	if len(group) == 0 {
		// already closed locally
		return Result{PositionID: pos.ID}, ActionSkipped, nil
	}

	live, queryErr := v.livePosition(ctx, pos.UserID, pos.Symbol, pos.Exchange)
	outcomes, err := v.reconcileGroup(ctx, group, live, queryErr)
	for _, o := range outcomes {
		if o.result.PositionID == pos.ID {
			return o.result, o.action, err
		}
	}
	return resultFor(pos, live, queryErr), ActionSkipped, err
}

// RunAll reconciles every OPEN/PARTIAL position, querying the broker once per
// (user, symbol, exchange).
func (v *Validator) RunAll(ctx context.Context) (*Report, error) {
	active, err := v.positions.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active positions: %w", err)
	}

	groups := map[groupKey][]model.Position{}
	var keys []groupKey
	for _, p := range active {
		k := groupKeyOf(&p)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], p)
	}

	report := &Report{}
	for _, k := range keys {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		live, queryErr := v.livePosition(ctx, k.userID, k.symbol, k.exchange)
		outcomes, err := v.reconcileGroup(ctx, groups[k], live, queryErr)
		report.Checked += len(groups[k])
		for _, o := range outcomes {
			report.count(o.action)
		}
		if err != nil {
			report.Errors++
			controller.Capture(ctx, v.exceptions, "reconciliation", "RunAll", "error", err, map[string]interface{}{
				"user_id":  k.userID,
				"symbol":   k.symbol,
				"exchange": k.exchange,
			})
		}
	}

	v.log.WithFields(map[string]interface{}{
		"checked": report.Checked,
		"closed":  report.Closed,
		"reduced": report.Reduced,
		"flagged": report.Flagged,
		"errors":  report.Errors,
	}).Info("Reconciliation sweep finished")

	return report, nil
}

type groupKey struct {
	userID   uint
	symbol   string
	exchange string
}

func groupKeyOf(p *model.Position) groupKey {
	return groupKey{userID: p.UserID, symbol: p.Symbol, exchange: p.Exchange}
}

type outcome struct {
	result Result
	action Action
}

// reconcileGroup repairs the positions of one user on one instrument. Long
// and short positions are matched against the broker exposure on their side.
// A shortfall is taken from the newest positions first.
func (v *Validator) reconcileGroup(
	ctx context.Context,
	group []model.Position,
	live *connectors.LivePosition,
	queryErr error,
) ([]outcome, error) {
	bySide := map[string][]model.Position{}
	for _, p := range group {
		bySide[p.Side] = append(bySide[p.Side], p)
	}

	var (
		outcomes []outcome
		errs     []error
	)
	for _, side := range []string{model.PositionSideLong, model.PositionSideShort} {
		positions := bySide[side]
		if len(positions) == 0 {
			continue
		}
		// newest first
		sort.Slice(positions, func(i, j int) bool { return positions[i].ID > positions[j].ID })

		var local int64
		for _, p := range positions {
			local += p.CurrentQuantity
		}
		broker := exposure(side, live)

		log := v.log.WithFields(map[string]interface{}{
			"user_id":  positions[0].UserID,
			"symbol":   positions[0].Symbol,
			"exchange": positions[0].Exchange,
			"side":     side,
			"local":    local,
			"broker":   broker,
		})

		switch {
		case queryErr != nil && !v.config.CloseOnQueryError:
			log.WithError(queryErr).Warn("Broker query failed, leaving positions untouched")
			for i := range positions {
				outcomes = append(outcomes, outcome{resultFor(&positions[i], live, queryErr), ActionSkipped})
			}

		case broker < local:
			shortfall := local - broker
			if queryErr != nil {
				log.WithError(queryErr).Warn("Broker query failed, closing positions as external")
			} else {
				log.Warn("Broker holds less than recorded, applying external exits")
			}
			for i := range positions {
				p := &positions[i]
				res := resultFor(p, live, queryErr)
				take := min(shortfall, p.CurrentQuantity)
				if take == 0 {
					o, err := v.sync(ctx, p, res, live)
					outcomes = append(outcomes, o)
					errs = appendErr(errs, err)
					continue
				}
				shortfall -= take

				action := ActionReduced
				var err error
				if take == p.CurrentQuantity {
					action = ActionClosed
					_, err = v.manager.CloseExternally(ctx, p.ID, livePrice(live))
				} else {
					_, err = v.manager.ReduceExternally(ctx, p.ID, take, livePrice(live))
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("position %d: %w", p.ID, err))
					action = ActionSkipped
				}
				outcomes = append(outcomes, outcome{res, action})
			}

		case broker > local:
			log.Warn("Broker holds more than recorded, flagging without trading")
			for i := range positions {
				p := &positions[i]
				brokerQty := broker
				last := livePrice(live)
				if !last.IsPositive() {
					last = p.LastPrice
				}
				err := v.positions.UpdateMarks(ctx, p.ID, last, unrealized(p, last), true, &brokerQty)
				errs = appendErr(errs, err)
				outcomes = append(outcomes, outcome{resultFor(p, live, nil), ActionFlagged})
			}

		default:
			for i := range positions {
				p := &positions[i]
				o, err := v.sync(ctx, p, resultFor(p, live, nil), live)
				outcomes = append(outcomes, o)
				errs = appendErr(errs, err)
			}
		}
	}

	return outcomes, errors.Join(errs...)
}

// sync refreshes marks on a position that matches the broker and, when
// enabled, exits it on a stop-loss or target breach.
func (v *Validator) sync(ctx context.Context, p *model.Position, res Result, live *connectors.LivePosition) (outcome, error) {
	last := livePrice(live)
	if !last.IsPositive() {
		last = p.LastPrice
	}
	if err := v.positions.UpdateMarks(ctx, p.ID, last, unrealized(p, last), false, nil); err != nil {
		return outcome{res, ActionSkipped}, fmt.Errorf("position %d: %w", p.ID, err)
	}

	if v.config.EnforceLevels && v.exits != nil {
		if reason, hit := tp_sl.Breached(p.Side, p.StopLoss, p.Target, last); hit {
			v.log.WithFields(map[string]interface{}{
				"position_id": p.ID,
				"reason":      reason,
				"last_price":  last.String(),
			}).Warn("Level breached, exiting position")
			if _, err := v.exits.ExitPosition(ctx, p.ID, reason, 0); err != nil {
				return outcome{res, ActionSynced}, fmt.Errorf("level exit position %d: %w", p.ID, err)
			}
			return outcome{res, ActionExited}, nil
		}
	}
	return outcome{res, ActionSynced}, nil
}

func livePrice(live *connectors.LivePosition) decimal.Decimal {
	if live == nil {
		return decimal.Zero
	}
	return live.LastPrice
}

func unrealized(p *model.Position, last decimal.Decimal) decimal.Decimal {
	if !last.IsPositive() {
		return p.UnrealizedPnl
	}
	return position.ExitPnl(p, p.CurrentQuantity, last)
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}
