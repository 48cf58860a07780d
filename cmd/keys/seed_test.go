package keys

import (
	"context"
	"strings"
	"testing"

	"botexecutor/src/database/dbtest"
	"botexecutor/src/repository"
	"botexecutor/src/security"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
bots:
  - name: nifty-momentum
    symbol: niftyfut
    exchange: nfo
    lotSize: 50
    marginPerLot: "120000"
    isIntraday: true
    squareOffTime: "15:15"
    stopLossPercent: "1.5"
    webhookPassphrase: tv-secret
    active: true
accounts:
  - userId: 7
    apiKey: kite-key
    accessToken: kite-token
    enabled: true
allocations:
  - userId: 7
    bot: nifty-momentum
    capital: "250000"
    active: true
`

const testCredentialsKey = "Pjk+k4hske5KkKtbaKSVDOgpllRl+0EI6oCAdx88XqI="

func TestSeederAppliesYAML(t *testing.T) {
	t.Setenv("BROKER_CREDENTIALS_KEY", testCredentialsKey)
	db := dbtest.NewSQLite(t)
	ctx := context.Background()

	file, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	bots := repository.NewBotRepository().WithDB(db)
	accounts := repository.NewUserBrokerAccountRepository().WithDB(db)
	allocations := repository.NewAllocationRepository().WithDB(db)

	seeder := &Seeder{Bots: bots, Accounts: accounts, Allocations: allocations, Config: Config{HashPassphrases: true}}
	summary, err := seeder.Apply(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, &SeedSummary{Bots: 1, Accounts: 1, Allocations: 1}, summary)

	bot, err := bots.FindByName(ctx, "nifty-momentum")
	require.NoError(t, err)
	require.NotNil(t, bot)
	assert.Equal(t, "NIFTYFUT", bot.Symbol)
	assert.Equal(t, "FUT", bot.InstrumentType)
	assert.Equal(t, "MIS", bot.Product)
	assert.True(t, bot.MarginPerLot.Equal(decimal.NewFromInt(120000)))
	assert.True(t, security.CheckPassphrase(bot.WebhookPassphrase, "tv-secret"))
	assert.NotEqual(t, "tv-secret", bot.WebhookPassphrase)

	account, err := accounts.GetByUser(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.NotEqual(t, "kite-token", account.AccessTokenEnc)
	token, err := security.DecryptString(account.AccessTokenEnc)
	require.NoError(t, err)
	assert.Equal(t, "kite-token", token)

	allocs, err := allocations.FindActiveByBot(ctx, bot.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.True(t, allocs[0].AllocatedCapital.Equal(decimal.NewFromInt(250000)))

	// a second run updates in place
	summary, err = seeder.Apply(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Bots)
	allocs, err = allocations.FindActiveByBot(ctx, bot.ID)
	require.NoError(t, err)
	assert.Len(t, allocs, 1)
}

func TestSeederRejectsBadRows(t *testing.T) {
	t.Setenv("BROKER_CREDENTIALS_KEY", testCredentialsKey)
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad margin", "bots:\n  - {name: a, symbol: X, exchange: NSE, lotSize: 1, marginPerLot: abc}\n", "marginPerLot"},
		{"bad clock", "bots:\n  - {name: a, symbol: X, exchange: NSE, lotSize: 1, marginPerLot: '1', squareOffTime: '25:99'}\n", "a:"},
		{"unknown bot", "allocations:\n  - {userId: 1, bot: ghost, capital: '10'}\n", "ghost"},
		{"missing user", "accounts:\n  - {apiKey: k}\n", "userId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := dbtest.NewSQLite(t)
			file, err := ParseSeed([]byte(tt.yaml))
			require.NoError(t, err)

			seeder := &Seeder{
				Bots:        repository.NewBotRepository().WithDB(db),
				Accounts:    repository.NewUserBrokerAccountRepository().WithDB(db),
				Allocations: repository.NewAllocationRepository().WithDB(db),
			}
			_, err = seeder.Apply(context.Background(), file)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}
