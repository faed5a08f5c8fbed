package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every hub environment variable. Struct tags name the
// variable without it: `env:"CACHE_DB_PATH"` reads SUBDOG_HUB_CACHE_DB_PATH.
const EnvPrefix = "SUBDOG_HUB_"

// ParseEnv loads configuration from SUBDOG_HUB_ prefixed environment
// variables.
func ParseEnv(target any) error {
	if target == nil {
		return errors.New("parse env: target is required")
	}
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
