package reconciliation

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// A position whose broker query failed is closed as EXTERNAL unless this is false.
	CloseOnQueryError bool          `envconfig:"RECONCILE_CLOSE_ON_QUERY_ERROR" default:"true"`
	EnforceLevels     bool          `envconfig:"RECONCILE_ENFORCE_LEVELS" default:"false"`
	QueryTimeout      time.Duration `envconfig:"BROKER_QUERY_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
