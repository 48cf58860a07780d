package executors

import (
	"botexecutor/src/connectors"
	"botexecutor/src/mapper"
	"botexecutor/src/model"
	"botexecutor/src/risk"
)

func sizeEntry(alloc model.UserBotAllocation, bot *model.Bot) (int64, int64, error) {
	return risk.CalculateQuantity(alloc.AllocatedCapital, bot.MarginPerLot, bot.LotSize, bot.MaxLotsPerUser)
}

func positionSideFor(signalSide string) string {
	return mapper.PositionSideForSignal(signalSide)
}

func mapOrder(exec *model.TradeExecution) connectors.OrderRequest {
	return mapper.MapExecutionToOrderRequest(exec)
}

func mapFill(ack *connectors.OrderAck, exec *model.TradeExecution) mapper.Fill {
	return mapper.MapAckToFill(ack, exec)
}
