package connectors

import (
	"context"
	"errors"
	"testing"

	"botexecutor/src/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccounts map[uint]*model.UserBrokerAccount

func (s stubAccounts) GetByUser(_ context.Context, userID uint) (*model.UserBrokerAccount, error) {
	return s[userID], nil
}

func TestAccountGatewayProviderBuildsAndCaches(t *testing.T) {
	var built []string
	origKite, origDecrypt := newKiteConnector, decryptToken
	t.Cleanup(func() {
		newKiteConnector = origKite
		decryptToken = origDecrypt
	})
	decryptToken = func(ciphertext string) (string, error) {
		if ciphertext != "v1:sealed" {
			return "", errors.New("bad ciphertext")
		}
		return "plain-token", nil
	}
	newKiteConnector = func(apiKey, accessToken string, config Config) BrokerGateway {
		built = append(built, apiKey+":"+accessToken)
		return NewPaperConnector(0)
	}

	accounts := stubAccounts{
		1: {UserID: 1, Broker: model.BrokerKite, APIKey: "key1", AccessTokenEnc: "v1:sealed", Enabled: true},
		2: {UserID: 2, Broker: model.BrokerKite, Enabled: false},
		3: {UserID: 3, Broker: model.BrokerPaper, Enabled: true},
		4: {UserID: 4, Broker: model.BrokerKite, AccessTokenEnc: "garbage", Enabled: true},
	}
	p := NewAccountGatewayProvider(accounts, Config{BrokerMode: ModeKite})
	ctx := context.Background()

	gw, err := p.GatewayFor(ctx, 1)
	require.NoError(t, err)
	again, err := p.GatewayFor(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, gw, again)
	assert.Equal(t, []string{"key1:plain-token"}, built)

	p.Invalidate(1)
	_, err = p.GatewayFor(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, built, 2)

	_, err = p.GatewayFor(ctx, 2)
	assert.ErrorIs(t, err, ErrAccountDisabled)

	gw, err = p.GatewayFor(ctx, 3)
	require.NoError(t, err)
	assert.IsType(t, &PaperConnector{}, gw)

	_, err = p.GatewayFor(ctx, 4)
	assert.Error(t, err)

	_, err = p.GatewayFor(ctx, 99)
	assert.ErrorIs(t, err, ErrNoBrokerAccount)
}

func TestAccountGatewayProviderPaperMode(t *testing.T) {
	p := NewAccountGatewayProvider(stubAccounts{}, Config{BrokerMode: ModePaper})
	gw, err := p.GatewayFor(context.Background(), 42)
	require.NoError(t, err)
	assert.IsType(t, &PaperConnector{}, gw)
}
