package connectors

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var tenThousand = decimal.NewFromInt(10000)

type paperBook struct {
	quantity int64
	avgPrice decimal.Decimal
	last     decimal.Decimal
}

// PaperConnector fills every order immediately at the request price, adjusted
// by a fixed slippage, and keeps an in-memory net position per instrument.
type PaperConnector struct {
	slippageBps int64

	mu        sync.Mutex
	positions map[string]*paperBook
	orders    map[string]OrderAck // by tag
}

func NewPaperConnector(slippageBps int64) *PaperConnector {
	return &PaperConnector{
		slippageBps: slippageBps,
		positions:   map[string]*paperBook{},
		orders:      map[string]OrderAck{},
	}
}

func paperKey(symbol, exchange string) string {
	return strings.ToUpper(exchange) + ":" + strings.ToUpper(symbol)
}

func (p *PaperConnector) fillPrice(side string, price decimal.Decimal) decimal.Decimal {
	if p.slippageBps == 0 {
		return price
	}
	adj := price.Mul(decimal.NewFromInt(p.slippageBps)).Div(tenThousand)
	if side == SideSell {
		return price.Sub(adj)
	}
	return price.Add(adj)
}

func (p *PaperConnector) SubmitOrder(ctx context.Context, req OrderRequest) (*OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransientError{Code: "CONTEXT", Message: err.Error(), Err: err}
	}
	if req.Quantity <= 0 {
		return nil, &PermanentError{Code: "InputException", Message: "quantity must be positive"}
	}
	if !req.Price.IsPositive() {
		return nil, &PermanentError{Code: "InputException", Message: "paper orders need a reference price"}
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return nil, &PermanentError{Code: "InputException", Message: fmt.Sprintf("unknown side %q", req.Side)}
	}

	price := p.fillPrice(req.Side, req.Price)

	p.mu.Lock()
	defer p.mu.Unlock()

	if req.Tag != "" {
		if prior, ok := p.orders[req.Tag]; ok {
			ack := prior
			return &ack, nil
		}
	}

	key := paperKey(req.Symbol, req.Exchange)
	book, ok := p.positions[key]
	if !ok {
		book = &paperBook{}
		p.positions[key] = book
	}

	delta := req.Quantity
	if req.Side == SideSell {
		delta = -delta
	}
	next := book.quantity + delta
	switch {
	case next == 0:
		book.avgPrice = decimal.Zero
	case book.quantity == 0 || (book.quantity > 0) != (next > 0):
		book.avgPrice = price
	case (book.quantity > 0) == (delta > 0):
		// adding to the same side
		prevNotional := book.avgPrice.Mul(decimal.NewFromInt(abs64(book.quantity)))
		addNotional := price.Mul(decimal.NewFromInt(abs64(delta)))
		book.avgPrice = prevNotional.Add(addNotional).Div(decimal.NewFromInt(abs64(next)))
	}
	book.quantity = next
	book.last = price

	ack := OrderAck{
		BrokerOrderID:  "paper-" + uuid.NewString(),
		Status:         kiteStatusComplete,
		AveragePrice:   price,
		FilledQuantity: req.Quantity,
	}
	if req.Tag != "" {
		p.orders[req.Tag] = ack
	}
	return &ack, nil
}

func (p *PaperConnector) GetPosition(ctx context.Context, symbol, exchange string) (*LivePosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransientError{Code: "CONTEXT", Message: err.Error(), Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	book, ok := p.positions[paperKey(symbol, exchange)]
	if !ok || book.quantity == 0 {
		return nil, ErrPositionNotFound
	}
	pnl := book.last.Sub(book.avgPrice).Mul(decimal.NewFromInt(book.quantity))
	return &LivePosition{
		Symbol:       symbol,
		Exchange:     exchange,
		Quantity:     book.quantity,
		AveragePrice: book.avgPrice,
		LastPrice:    book.last,
		Pnl:          pnl,
	}, nil
}

// CancelOrder is a no-op: paper orders fill on submission.
func (p *PaperConnector) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return ctx.Err()
}

func (p *PaperConnector) CheckConnection(ctx context.Context) error {
	return ctx.Err()
}

func (p *PaperConnector) FindOrderByTag(ctx context.Context, tag string) (*OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ack, ok := p.orders[tag]
	if !ok {
		return nil, nil
	}
	return &ack, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

var (
	_ BrokerGateway = (*PaperConnector)(nil)
	_ OrderLookup   = (*PaperConnector)(nil)
)
