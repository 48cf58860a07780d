package keys

import (
	"context"
	"fmt"
	"os"
	"strings"

	"botexecutor/src/model"
	"botexecutor/src/security"
	"botexecutor/src/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document loaded by the seed command. Money fields
// are strings so they keep their exact decimal value.
type SeedFile struct {
	Bots        []BotSeed        `yaml:"bots"`
	Accounts    []AccountSeed    `yaml:"accounts"`
	Allocations []AllocationSeed `yaml:"allocations"`
}

type BotSeed struct {
	Name              string `yaml:"name"`
	Symbol            string `yaml:"symbol"`
	Exchange          string `yaml:"exchange"`
	InstrumentType    string `yaml:"instrumentType"`
	Product           string `yaml:"product"`
	LotSize           int64  `yaml:"lotSize"`
	MarginPerLot      string `yaml:"marginPerLot"`
	MaxLotsPerUser    int64  `yaml:"maxLotsPerUser"`
	IsIntraday        bool   `yaml:"isIntraday"`
	SquareOffTime     string `yaml:"squareOffTime"`
	StopLossPercent   string `yaml:"stopLossPercent"`
	TargetPercent     string `yaml:"targetPercent"`
	WebhookPassphrase string `yaml:"webhookPassphrase"`
	Active            bool   `yaml:"active"`
}

type AccountSeed struct {
	UserID      uint   `yaml:"userId"`
	Broker      string `yaml:"broker"`
	APIKey      string `yaml:"apiKey"`
	AccessToken string `yaml:"accessToken"`
	Enabled     bool   `yaml:"enabled"`
}

type AllocationSeed struct {
	UserID  uint   `yaml:"userId"`
	Bot     string `yaml:"bot"`
	Capital string `yaml:"capital"`
	Active  bool   `yaml:"active"`
}

type botStore interface {
	Upsert(ctx context.Context, bot *model.Bot) error
}

type accountStore interface {
	Upsert(ctx context.Context, account *model.UserBrokerAccount) error
}

type allocationStore interface {
	Upsert(ctx context.Context, allocation *model.UserBotAllocation) error
}

// SeedSummary counts the rows written.
type SeedSummary struct {
	Bots        int
	Accounts    int
	Allocations int
}

// Seeder writes a SeedFile. Access tokens are sealed before storage.
type Seeder struct {
	Bots        botStore
	Accounts    accountStore
	Allocations allocationStore
	Config      Config
	Log         *logrus.Entry

	encrypt func(string) (string, error)
	hash    func(string) (string, error)
}

func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (*SeedFile, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &file, nil
}

func (s *Seeder) Apply(ctx context.Context, file *SeedFile) (*SeedSummary, error) {
	if s.encrypt == nil {
		s.encrypt = security.EncryptString
	}
	if s.hash == nil {
		s.hash = security.HashPassphrase
	}
	if s.Log == nil {
		s.Log = logrus.WithField("cmd", "seed")
	}

	summary := &SeedSummary{}
	botIDs := map[string]uint{}

	for _, b := range file.Bots {
		bot, err := s.botFrom(b)
		if err != nil {
			return summary, err
		}
		if err := s.Bots.Upsert(ctx, bot); err != nil {
			return summary, fmt.Errorf("bot %s: %w", b.Name, err)
		}
		botIDs[bot.Name] = bot.ID
		summary.Bots++
		s.Log.WithFields(logrus.Fields{"bot": bot.Name, "id": bot.ID}).Info("Bot seeded")
	}

	for _, a := range file.Accounts {
		if a.UserID == 0 {
			return summary, fmt.Errorf("account: userId is required")
		}
		broker := strings.ToLower(a.Broker)
		if broker == "" {
			broker = model.BrokerKite
		}

		var sealed string
		if a.AccessToken != "" {
			enc, err := s.encrypt(a.AccessToken)
			if err != nil {
				return summary, fmt.Errorf("seal token for user %d: %w", a.UserID, err)
			}
			sealed = enc
		}

		account := &model.UserBrokerAccount{
			UserID:         a.UserID,
			Broker:         broker,
			APIKey:         a.APIKey,
			AccessTokenEnc: sealed,
			Enabled:        a.Enabled,
		}
		if err := s.Accounts.Upsert(ctx, account); err != nil {
			return summary, fmt.Errorf("account for user %d: %w", a.UserID, err)
		}
		summary.Accounts++
	}

	for _, a := range file.Allocations {
		botID, ok := botIDs[a.Bot]
		if !ok {
			return summary, fmt.Errorf("allocation for user %d: bot %q is not in the seed file", a.UserID, a.Bot)
		}
		capital, err := decimal.NewFromString(a.Capital)
		if err != nil || !capital.IsPositive() {
			return summary, fmt.Errorf("allocation for user %d: invalid capital %q", a.UserID, a.Capital)
		}
		allocation := &model.UserBotAllocation{
			UserID:           a.UserID,
			BotID:            botID,
			AllocatedCapital: capital,
			IsActive:         a.Active,
		}
		if err := s.Allocations.Upsert(ctx, allocation); err != nil {
			return summary, fmt.Errorf("allocation for user %d: %w", a.UserID, err)
		}
		summary.Allocations++
	}

	return summary, nil
}

func (s *Seeder) botFrom(b BotSeed) (*model.Bot, error) {
	if b.Name == "" || b.Symbol == "" || b.Exchange == "" {
		return nil, fmt.Errorf("bot %q: name, symbol and exchange are required", b.Name)
	}
	if b.LotSize <= 0 {
		return nil, fmt.Errorf("bot %s: lotSize must be positive", b.Name)
	}
	if b.SquareOffTime != "" {
		if _, _, err := utils.ParseClock(b.SquareOffTime); err != nil {
			return nil, fmt.Errorf("bot %s: %w", b.Name, err)
		}
	}

	margin, err := decimal.NewFromString(b.MarginPerLot)
	if err != nil || !margin.IsPositive() {
		return nil, fmt.Errorf("bot %s: invalid marginPerLot %q", b.Name, b.MarginPerLot)
	}
	stopLoss, err := optionalDecimal(b.StopLossPercent)
	if err != nil {
		return nil, fmt.Errorf("bot %s: stopLossPercent: %w", b.Name, err)
	}
	target, err := optionalDecimal(b.TargetPercent)
	if err != nil {
		return nil, fmt.Errorf("bot %s: targetPercent: %w", b.Name, err)
	}

	passphrase := b.WebhookPassphrase
	if passphrase != "" && s.Config.HashPassphrases {
		if passphrase, err = s.hash(passphrase); err != nil {
			return nil, fmt.Errorf("bot %s: hash passphrase: %w", b.Name, err)
		}
	}

	bot := &model.Bot{
		Name:              b.Name,
		Symbol:            strings.ToUpper(b.Symbol),
		Exchange:          strings.ToUpper(b.Exchange),
		InstrumentType:    strings.ToUpper(b.InstrumentType),
		Product:           strings.ToUpper(b.Product),
		LotSize:           b.LotSize,
		MarginPerLot:      margin,
		MaxLotsPerUser:    b.MaxLotsPerUser,
		IsIntraday:        b.IsIntraday,
		SquareOffTime:     b.SquareOffTime,
		StopLossPercent:   stopLoss,
		TargetPercent:     target,
		WebhookPassphrase: passphrase,
		Active:            b.Active,
	}
	if bot.InstrumentType == "" {
		bot.InstrumentType = model.InstrumentTypeFuture
	}
	if bot.Product == "" {
		bot.Product = model.ProductIntraday
	}
	return bot, nil
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
