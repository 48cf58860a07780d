package server

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"9898"`
	// Fallback passphrase for bots without their own.
	WebhookPassphrase string `envconfig:"WEBHOOK_PASSPHRASE" default:""`
	// Deadline for the background processing of one accepted signal.
	SignalProcessTimeout time.Duration `envconfig:"SIGNAL_PROCESS_TIMEOUT" default:"90s"`
	ShutdownTimeout      time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
