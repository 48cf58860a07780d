package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ModeKite  = "kite"
	ModePaper = "paper"
)

type Config struct {
	// kite routes users to their own broker account, paper fills everything locally.
	BrokerMode string `envconfig:"BROKER_MODE" default:"kite"`

	KiteBaseURL       string        `envconfig:"KITE_BASE_URL" default:"https://api.kite.trade"`
	KiteRatePerSecond float64       `envconfig:"KITE_RATE_PER_SECOND" default:"10"`
	KiteRateBurst     int           `envconfig:"KITE_RATE_BURST" default:"10"`
	KiteHTTPTimeout   time.Duration `envconfig:"KITE_HTTP_TIMEOUT" default:"15s"`
	KitePollInterval  time.Duration `envconfig:"KITE_ORDER_POLL_INTERVAL" default:"250ms"`
	KitePollAttempts  int           `envconfig:"KITE_ORDER_POLL_ATTEMPTS" default:"20"`

	QueryTimeout time.Duration `envconfig:"BROKER_QUERY_TIMEOUT" default:"10s"`

	PaperSlippageBps int64 `envconfig:"PAPER_SLIPPAGE_BPS" default:"0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
