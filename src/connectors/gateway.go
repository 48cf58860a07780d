package connectors

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// ErrPositionNotFound is returned by GetPosition when the broker holds no
// net quantity for the instrument.
var ErrPositionNotFound = errors.New("position not found at broker")

// OrderRequest is a single order sent to a broker account.
type OrderRequest struct {
	Symbol    string
	Exchange  string
	Side      string // BUY | SELL
	Quantity  int64
	OrderType string // MARKET | LIMIT
	Product   string
	Tag       string // correlates broker orders with ledger rows, max 20 chars

	// Reference price. Sent for LIMIT orders, used as the fill price by the
	// paper gateway.
	Price decimal.Decimal
}

// OrderAck is the broker's view of a filled order.
type OrderAck struct {
	BrokerOrderID  string
	Status         string
	AveragePrice   decimal.Decimal
	FilledQuantity int64
}

// LivePosition is the broker's net position. Quantity is signed: negative
// for short exposure.
type LivePosition struct {
	Symbol       string
	Exchange     string
	Quantity     int64
	AveragePrice decimal.Decimal
	LastPrice    decimal.Decimal
	Pnl          decimal.Decimal
}

// BrokerGateway is everything the engine needs from a brokerage account.
// Implementations must honour ctx cancellation on every call and return
// *TransientError, *PermanentError or *RejectedError on failure.
type BrokerGateway interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderAck, error)
	GetPosition(ctx context.Context, symbol, exchange string) (*LivePosition, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	CheckConnection(ctx context.Context) error
}

// OrderLookup is implemented by gateways that can find an order by the tag
// it was submitted with. It returns (nil, nil) when no such order exists.
type OrderLookup interface {
	FindOrderByTag(ctx context.Context, tag string) (*OrderAck, error)
}

// OrderPlacer is implemented by gateways that acknowledge an order before it
// fills. PlaceOrder returns the broker order id once the order is accepted;
// AwaitOrder blocks until that order is final. SubmitOrder is the two in a row.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	AwaitOrder(ctx context.Context, brokerOrderID string) (*OrderAck, error)
}
