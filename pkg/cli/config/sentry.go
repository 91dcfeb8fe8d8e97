package config

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

const sentryFlushTimeout = 2 * time.Second

// Sentry holds error reporting configuration. Reporting is disabled without DSN.
type Sentry struct {
	DSN string
	Env string

	enabled bool
}

// Flags returns CLI flags for Sentry configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN to report fatal errors",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("POLICYFETCH_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Destination: &c.Env,
			Sources:     cli.EnvVars("POLICYFETCH_SENTRY_ENV"),
		},
	}
}

// Configure initializes the Sentry client if DSN is set
func (c *Sentry) Configure() error {
	if c.DSN == "" {
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Env,
		Release:     types.Version,
	}); err != nil {
		return goerr.Wrap(err, "failed to initialize sentry", goerr.T(types.ErrTagConfig))
	}

	c.enabled = true
	return nil
}

// Enabled returns true if errors are sent to Sentry
func (c *Sentry) Enabled() bool {
	return c.enabled
}

// Report sends err to Sentry and waits for delivery. No-op when disabled.
func (c *Sentry) Report(err error) {
	if !c.enabled || err == nil {
		return
	}
	sentry.CaptureException(err)
	sentry.Flush(sentryFlushTimeout)
}
