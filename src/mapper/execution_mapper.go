package mapper

import (
	"strings"

	"botexecutor/src/connectors"
	"botexecutor/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// Fill is the normalized outcome of an acknowledged order.
type Fill struct {
	BrokerOrderID string
	Price         decimal.Decimal
	Quantity      int64
}

// PositionSideForSignal returns the position side a signal side opens.
func PositionSideForSignal(side string) string {
	if strings.EqualFold(side, model.SideSell) {
		return model.PositionSideShort
	}
	return model.PositionSideLong
}

// ExitSideFor returns the order side that reduces a position.
func ExitSideFor(positionSide string) string {
	if positionSide == model.PositionSideShort {
		return model.SideBuy
	}
	return model.SideSell
}

// MapExecutionToOrderRequest builds the broker request for a ledger row.
// Side must already hold the side actually sent to the broker.
func MapExecutionToOrderRequest(exec *model.TradeExecution) connectors.OrderRequest {
	return connectors.OrderRequest{
		Symbol:    exec.Symbol,
		Exchange:  exec.Exchange,
		Side:      exec.Side,
		Quantity:  exec.RequestedQuantity,
		OrderType: connectors.OrderTypeMarket,
		Product:   exec.Product,
		Tag:       exec.OrderTag,
		Price:     exec.RequestedPrice,
	}
}

// MapAckToFill normalizes a broker acknowledgement against the ledger row.
// Missing quantity or price fall back to the requested values.
func MapAckToFill(ack *connectors.OrderAck, exec *model.TradeExecution) Fill {
	fill := Fill{
		Price:    exec.RequestedPrice,
		Quantity: exec.RequestedQuantity,
	}
	if ack == nil {
		logger.WithFields(map[string]interface{}{
			"mapper":       "MapAckToFill",
			"execution_id": exec.ID,
		}).Warn("Nil order ack received, using requested values")
		return fill
	}

	fill.BrokerOrderID = ack.BrokerOrderID
	if ack.FilledQuantity > 0 {
		fill.Quantity = ack.FilledQuantity
	} else {
		logger.WithFields(map[string]interface{}{
			"mapper":          "MapAckToFill",
			"execution_id":    exec.ID,
			"broker_order_id": ack.BrokerOrderID,
		}).Debug("Ack without filled quantity, defaulting to requested")
	}
	if ack.AveragePrice.IsPositive() {
		fill.Price = ack.AveragePrice
	} else {
		logger.WithFields(map[string]interface{}{
			"mapper":          "MapAckToFill",
			"execution_id":    exec.ID,
			"broker_order_id": ack.BrokerOrderID,
		}).Debug("Ack without average price, defaulting to requested")
	}

	return fill
}
