package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the fields each command mode depends on. Modes are
// "store" for commands that only touch the database and "serve" for the
// HTTP server, which also needs the store.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.SubmitRatePerSec < 0 {
			errs = append(errs, "server.submit_rate_per_sec must be >= 0")
		}
		if c.Server.SubmitRatePerSec > 0 && c.Server.SubmitBurst < 1 {
			errs = append(errs, "server.submit_burst must be >= 1 when rate limiting is enabled")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.validateVerification()...)
	errs = append(errs, c.validateScoring()...)

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validateVerification() []string {
	var errs []string
	if c.Verification.ApproveThreshold < 1 {
		errs = append(errs, "verification.approve_threshold must be >= 1")
	}
	if c.Verification.RejectThreshold < 1 {
		errs = append(errs, "verification.reject_threshold must be >= 1")
	}
	if c.Verification.RetryAttempts < 0 {
		errs = append(errs, "verification.retry_attempts must be >= 0")
	}
	return errs
}

func (c *Config) validateScoring() []string {
	var errs []string
	if c.Scoring.KeywordWeight < 0 || c.Scoring.PhotoWeight < 0 || c.Scoring.CoordsWeight < 0 {
		errs = append(errs, "scoring weights must be >= 0")
	}
	if c.Places.SpotPageSize < 0 || c.Places.SpotMaxPageSize < 0 {
		errs = append(errs, "places page sizes must be >= 0")
	}
	return errs
}
