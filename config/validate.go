package config

import (
	"errors"
	"fmt"
	"net"
	"slices"

	"github.com/jonwraymond/healops/heal"
)

// Validate reports every problem at once, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		bad("listen %q: %v", c.Listen, err)
	}
	if c.ReportDir == "" {
		bad("report_dir is required")
	}

	h := c.Healing
	if h.Interval <= 0 {
		bad("healing.interval must be positive")
	}
	if h.Cooldown <= 0 {
		bad("healing.cooldown must be positive")
	}
	if h.MaxAttempts <= 0 {
		bad("healing.max_attempts must be positive")
	}
	if h.HistoryCapacity <= 0 {
		bad("healing.history_capacity must be positive")
	}
	for name, s := range h.Strategies {
		if heal.ParseStrategy(s) == 0 {
			bad("healing.strategies[%s]: unknown strategy %q", name, s)
		}
	}

	s := c.Startup
	if s.MaxWait <= 0 {
		bad("startup.max_wait must be positive")
	}
	if s.PollInterval <= 0 {
		bad("startup.poll_interval must be positive")
	}

	if c.Probes.Timeout <= 0 {
		bad("probes.timeout must be positive")
	}
	if p := c.Probes.Database.Port; p <= 0 || p > 65535 {
		bad("probes.database.port %d out of range", p)
	}

	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" && len(c.Auth.APIKeys) == 0 {
			bad("auth is enabled but neither jwt_secret nor api_keys is set")
		}
		var ids []string
		for i, k := range c.Auth.APIKeys {
			if k.ID == "" || k.Key == "" {
				bad("auth.api_keys[%d]: id and key are required", i)
			}
			if slices.Contains(ids, k.ID) {
				bad("auth.api_keys[%d]: duplicate id %q", i, k.ID)
			}
			ids = append(ids, k.ID)
		}
	}

	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalid, err))
	}

	return errors.Join(errs...)
}
