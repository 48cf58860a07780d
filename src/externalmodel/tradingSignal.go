package externalmodel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"botexecutor/src/model"

	"github.com/shopspring/decimal"
)

var ErrInvalidAlert = errors.New("invalid alert")

// TradingSignal is the JSON body a TradingView alert posts to the webhook.
// Side accepts the strategy placeholders as well: "buy"/"long" and
// "sell"/"short".
type TradingSignal struct {
	BotID         uint            `json:"botId"`
	Symbol        string          `json:"symbol"`
	Exchange      string          `json:"exchange,omitempty"`
	Side          string          `json:"side"`
	Price         decimal.Decimal `json:"price"`
	EmergencyStop bool            `json:"emergencyStop,omitempty"`
	Passphrase    string          `json:"passphrase"`
	Comment       string          `json:"comment,omitempty"`
}

// NormalizedSide maps the alert side onto BUY/SELL, "" when unknown.
func (s TradingSignal) NormalizedSide() string {
	switch strings.ToUpper(strings.TrimSpace(s.Side)) {
	case model.SideBuy, "LONG":
		return model.SideBuy
	case model.SideSell, "SHORT":
		return model.SideSell
	default:
		return ""
	}
}

// Validate checks the fields every alert must carry. An emergency-stop
// alert only needs a bot.
func (s TradingSignal) Validate() error {
	if s.BotID == 0 {
		return fmt.Errorf("%w: botId is required", ErrInvalidAlert)
	}
	if s.EmergencyStop {
		return nil
	}
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidAlert)
	}
	if s.NormalizedSide() == "" {
		return fmt.Errorf("%w: side %q", ErrInvalidAlert, s.Side)
	}
	if !s.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidAlert)
	}
	return nil
}

// ToWebhookSignal builds the audit row. symbol and exchange are the broker
// values after normalization; raw is the request body as received.
func (s TradingSignal) ToWebhookSignal(symbol, exchange string, raw []byte, receivedAt time.Time) *model.WebhookSignal {
	return &model.WebhookSignal{
		BotID:         s.BotID,
		Symbol:        symbol,
		Exchange:      exchange,
		Side:          s.NormalizedSide(),
		Price:         s.Price,
		EmergencyStop: s.EmergencyStop,
		RawPayload:    string(raw),
		ReceivedAt:    receivedAt.UTC(),
	}
}

// EmergencyStopRequest raises or lowers a stop. Global takes precedence
// over BotID.
type EmergencyStopRequest struct {
	BotID         *uint  `json:"botId,omitempty"`
	Global        bool   `json:"global,omitempty"`
	EmergencyStop bool   `json:"emergencyStop"`
	Reason        string `json:"reason,omitempty"`
}

// Scope returns the bot the request targets, nil for the global stop.
func (r EmergencyStopRequest) Scope() (*uint, error) {
	if r.Global {
		return nil, nil
	}
	if r.BotID == nil || *r.BotID == 0 {
		return nil, fmt.Errorf("%w: botId or global is required", ErrInvalidAlert)
	}
	return r.BotID, nil
}

// ExitRequest is the body of a manual exit. Quantity 0 exits everything.
type ExitRequest struct {
	Quantity int64  `json:"quantity,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (r ExitRequest) Validate() error {
	if r.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidAlert)
	}
	switch strings.ToUpper(r.Reason) {
	case "", model.ExitReasonManual, model.ExitReasonEmergency:
		return nil
	default:
		return fmt.Errorf("%w: reason %q", ErrInvalidAlert, r.Reason)
	}
}

// ExitReason defaults to MANUAL.
func (r ExitRequest) ExitReason() string {
	if r.Reason == "" {
		return model.ExitReasonManual
	}
	return strings.ToUpper(r.Reason)
}
