package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig is the on-disk shape of a realhttpctl config file, loaded via
// BurntSushi/toml.
type fileConfig struct {
	BaseURL               string            `toml:"base_url"`
	DefaultTimeoutSeconds int               `toml:"default_timeout_seconds"`
	MaxConcurrentOps      int64             `toml:"max_concurrent_operations"`
	Headers               map[string]string `toml:"headers"`
	BearerTokenEnv        string            `toml:"bearer_token_env"`
}

// loadFileConfig reads path, returning a zero-value fileConfig (not an
// error) when path is empty or the file does not exist, so realhttpctl
// works fine with only command-line flags.
func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig

	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding config file %q: %w", path, err)
	}

	return cfg, nil
}

// defaultTimeout returns the configured timeout, or the package default
// when unset.
func (c fileConfig) defaultTimeout() time.Duration {
	if c.DefaultTimeoutSeconds <= 0 {
		return 30 * time.Second
	}

	return time.Duration(c.DefaultTimeoutSeconds) * time.Second
}

// bearerToken resolves the configured environment variable to a token
// string, returning "" when unset.
func (c fileConfig) bearerToken() string {
	if c.BearerTokenEnv == "" {
		return ""
	}

	return os.Getenv(c.BearerTokenEnv)
}
