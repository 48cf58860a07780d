package connectors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"botexecutor/src/model"
	"botexecutor/src/security"

	logger "github.com/sirupsen/logrus"
)

var (
	ErrNoBrokerAccount = errors.New("user has no broker account")
	ErrAccountDisabled = errors.New("broker account disabled")
)

// GatewayProvider resolves the gateway that trades on behalf of a user.
type GatewayProvider interface {
	GatewayFor(ctx context.Context, userID uint) (BrokerGateway, error)
}

type accountStore interface {
	GetByUser(ctx context.Context, userID uint) (*model.UserBrokerAccount, error)
}

var (
	newKiteConnector = func(apiKey, accessToken string, config Config) BrokerGateway {
		return NewKiteConnector(apiKey, accessToken, config)
	}
	decryptToken = security.DecryptString
)

// AccountGatewayProvider builds one gateway per user from their stored broker
// account and caches it for the life of the process.
type AccountGatewayProvider struct {
	accounts accountStore
	config   Config

	mu    sync.Mutex
	cache map[uint]BrokerGateway
}

func NewAccountGatewayProvider(accounts accountStore, config Config) *AccountGatewayProvider {
	return &AccountGatewayProvider{
		accounts: accounts,
		config:   config,
		cache:    map[uint]BrokerGateway{},
	}
}

func (p *AccountGatewayProvider) GatewayFor(ctx context.Context, userID uint) (BrokerGateway, error) {
	p.mu.Lock()
	if gw, ok := p.cache[userID]; ok {
		p.mu.Unlock()
		return gw, nil
	}
	p.mu.Unlock()

	gw, err := p.build(ctx, userID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.cache[userID]; ok {
		return existing, nil
	}
	p.cache[userID] = gw
	return gw, nil
}

func (p *AccountGatewayProvider) build(ctx context.Context, userID uint) (BrokerGateway, error) {
	if p.config.BrokerMode == ModePaper {
		return NewPaperConnector(p.config.PaperSlippageBps), nil
	}

	account, err := p.accounts.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load broker account for user %d: %w", userID, err)
	}
	if account == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNoBrokerAccount)
	}
	if !account.Enabled {
		return nil, fmt.Errorf("user %d: %w", userID, ErrAccountDisabled)
	}

	switch account.Broker {
	case model.BrokerPaper:
		return NewPaperConnector(p.config.PaperSlippageBps), nil
	case model.BrokerKite, "":
		token, err := decryptToken(account.AccessTokenEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt access token for user %d: %w", userID, err)
		}
		logger.WithFields(map[string]interface{}{
			"component": "gateway_provider",
			"user_id":   userID,
		}).Debug("kite gateway created")
		return newKiteConnector(account.APIKey, token, p.config), nil
	default:
		return nil, fmt.Errorf("user %d: unsupported broker %q", userID, account.Broker)
	}
}

// Invalidate drops a cached gateway, e.g. after the user's token is rotated.
func (p *AccountGatewayProvider) Invalidate(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, userID)
}
