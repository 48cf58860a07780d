package connectors

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperConnectorTracksNetPosition(t *testing.T) {
	ctx := context.Background()
	p := NewPaperConnector(0)

	ack, err := p.SubmitOrder(ctx, OrderRequest{Symbol: "NIFTYFUT", Exchange: "NFO", Side: SideBuy, Quantity: 50, Price: decimal.NewFromInt(100), Tag: "t1"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), ack.FilledQuantity)

	live, err := p.GetPosition(ctx, "niftyfut", "nfo")
	require.NoError(t, err)
	assert.Equal(t, int64(50), live.Quantity)
	assert.True(t, live.AveragePrice.Equal(decimal.NewFromInt(100)))

	_, err = p.SubmitOrder(ctx, OrderRequest{Symbol: "NIFTYFUT", Exchange: "NFO", Side: SideSell, Quantity: 20, Price: decimal.NewFromInt(110)})
	require.NoError(t, err)
	live, err = p.GetPosition(ctx, "NIFTYFUT", "NFO")
	require.NoError(t, err)
	assert.Equal(t, int64(30), live.Quantity)
	assert.True(t, live.AveragePrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, live.Pnl.Equal(decimal.NewFromInt(300)))

	_, err = p.SubmitOrder(ctx, OrderRequest{Symbol: "NIFTYFUT", Exchange: "NFO", Side: SideSell, Quantity: 30, Price: decimal.NewFromInt(105)})
	require.NoError(t, err)
	_, err = p.GetPosition(ctx, "NIFTYFUT", "NFO")
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestPaperConnectorSlippageAndTagReplay(t *testing.T) {
	ctx := context.Background()
	p := NewPaperConnector(10) // 0.1%

	buy, err := p.SubmitOrder(ctx, OrderRequest{Symbol: "X", Exchange: "NSE", Side: SideBuy, Quantity: 1, Price: decimal.NewFromInt(1000), Tag: "dup"})
	require.NoError(t, err)
	assert.True(t, buy.AveragePrice.Equal(decimal.NewFromInt(1001)))

	again, err := p.SubmitOrder(ctx, OrderRequest{Symbol: "X", Exchange: "NSE", Side: SideBuy, Quantity: 1, Price: decimal.NewFromInt(1000), Tag: "dup"})
	require.NoError(t, err)
	assert.Equal(t, buy.BrokerOrderID, again.BrokerOrderID)

	live, err := p.GetPosition(ctx, "X", "NSE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), live.Quantity)

	found, err := p.FindOrderByTag(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, buy.BrokerOrderID, found.BrokerOrderID)

	sell, err := p.SubmitOrder(ctx, OrderRequest{Symbol: "Y", Exchange: "NSE", Side: SideSell, Quantity: 1, Price: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	assert.True(t, sell.AveragePrice.Equal(decimal.NewFromInt(999)))
}

func TestPaperConnectorValidation(t *testing.T) {
	p := NewPaperConnector(0)
	_, err := p.SubmitOrder(context.Background(), OrderRequest{Symbol: "X", Side: SideBuy, Quantity: 0, Price: decimal.NewFromInt(1)})
	assert.Equal(t, ClassPermanent, Classify(err))

	_, err = p.SubmitOrder(context.Background(), OrderRequest{Symbol: "X", Side: SideBuy, Quantity: 1})
	assert.Equal(t, ClassPermanent, Classify(err))
}
