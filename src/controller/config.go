package controller

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Deadline for each broker-side cancel sent while raising an emergency stop.
	CancelTimeout  time.Duration `envconfig:"EMERGENCY_CANCEL_TIMEOUT" default:"10s"`
	MarketTimezone string        `envconfig:"MARKET_TIMEZONE" default:"Asia/Kolkata"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
