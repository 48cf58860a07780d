package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateQuantity(t *testing.T) {
	tests := []struct {
		name     string
		capital  string
		margin   string
		lotSize  int64
		maxLots  int64
		wantQty  int64
		wantLots int64
		wantErr  error
	}{
		{name: "floors partial lots", capital: "250000", margin: "100000", lotSize: 25, wantQty: 50, wantLots: 2},
		{name: "exact multiple", capital: "300000", margin: "100000", lotSize: 25, wantQty: 75, wantLots: 3},
		{name: "capped by max lots", capital: "1000000", margin: "100000", lotSize: 25, maxLots: 4, wantQty: 100, wantLots: 4},
		{name: "under one lot", capital: "99999.99", margin: "100000", lotSize: 25, wantErr: ErrZeroQuantity},
		{name: "zero capital", capital: "0", margin: "100000", lotSize: 25, wantErr: ErrZeroQuantity},
		{name: "negative capital", capital: "-5", margin: "100000", lotSize: 25, wantErr: ErrZeroQuantity},
		{name: "zero margin", capital: "100000", margin: "0", lotSize: 25, wantErr: ErrInvalidLotConfig},
		{name: "zero lot size", capital: "100000", margin: "1000", lotSize: 0, wantErr: ErrInvalidLotConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty, lots, err := CalculateQuantity(decimal.RequireFromString(tt.capital), decimal.RequireFromString(tt.margin), tt.lotSize, tt.maxLots)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, qty)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, qty)
			assert.Equal(t, tt.wantLots, lots)
		})
	}
}
