// Package hubcache parses hub cache daemon flags and launches the sweeper
// runtime.
package hubcache

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/subdogs/hub/internal/platform/cmd"
	hubcacheapp "github.com/subdogs/hub/internal/services/hubcache/app"
)

// Config holds hub cache daemon configuration. Read-path settings such as
// the enable flag and stale-serve belong to the embedding service's Options;
// the daemon only sweeps and reports health.
type Config struct {
	Port          int           `env:"CACHE_PORT" envDefault:"8095"`
	DBPath        string        `env:"CACHE_DB_PATH" envDefault:"data/hubcache.db"`
	SweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"5m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The hub cache health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The hub cache SQLite database path")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Expired record sweep interval")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RuntimeConfig maps the command config onto the runtime config.
func (cfg Config) RuntimeConfig() hubcacheapp.RuntimeConfig {
	return hubcacheapp.RuntimeConfig{
		Port:          cfg.Port,
		DBPath:        cfg.DBPath,
		SweepInterval: cfg.SweepInterval,
	}
}

// Run starts the hub cache runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceHubcache, func(ctx context.Context) error {
		return hubcacheapp.Run(ctx, cfg.RuntimeConfig())
	})
}
