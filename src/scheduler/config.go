package scheduler

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	SquareOffSpec   string `envconfig:"SQUARE_OFF_SPEC" default:"0 * * * * *"`
	ReconcileSpec   string `envconfig:"RECONCILE_SPEC" default:"0 */5 * * * *"`
	PnLSnapshotSpec string `envconfig:"PNL_SNAPSHOT_SPEC" default:"0 45 15 * * 1-5"`
	MarketTimezone  string `envconfig:"MARKET_TIMEZONE" default:"Asia/Kolkata"`
	// Square-off exits run at most this many at a time within one tick.
	ExitConcurrency int `envconfig:"SQUARE_OFF_CONCURRENCY" default:"8"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
