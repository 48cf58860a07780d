package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MarketOpen  string `envconfig:"MARKET_OPEN" default:"09:15"`
	MarketClose string `envconfig:"MARKET_CLOSE" default:"15:30"`
	// Extra exchange holidays, YYYY-MM-DD, comma separated.
	MarketHolidays []string `envconfig:"MARKET_HOLIDAYS"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
