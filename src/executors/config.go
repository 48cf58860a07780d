package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	FanOutConcurrency int             `envconfig:"FANOUT_CONCURRENCY" default:"16"`
	FanOutTimeout     time.Duration   `envconfig:"FANOUT_TIMEOUT" default:"60s"`
	OrderTimeout      time.Duration   `envconfig:"ORDER_TIMEOUT" default:"15s"`
	ExitClaimTimeout  time.Duration   `envconfig:"EXIT_CLAIM_TIMEOUT" default:"5m"`
	RetryMaxAttempts  int             `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBackoff      []time.Duration `envconfig:"RETRY_BACKOFF" default:"1s,2s"`
	DefaultProduct    string          `envconfig:"DEFAULT_PRODUCT" default:"MIS"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
