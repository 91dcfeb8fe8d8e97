package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

// Policy holds configuration of the local policy store and the sync behavior
type Policy struct {
	Path         string
	VersionOrder string
	KeepGoing    bool
}

// Flags returns CLI flags for policy store configuration
func (c *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-path",
			Aliases:     []string{"policy_path"},
			Usage:       "Existing directory where bundles are extracted",
			Destination: &c.Path,
			Sources:     cli.EnvVars("POLICYFETCH_POLICY_PATH", "POLICY_PATH"),
		},
		&cli.StringFlag{
			Name:        "version-order",
			Usage:       "How to pick the latest package version: semver (highest semantic version) or api (first element of the packages list)",
			Value:       string(types.VersionOrderSemver),
			Destination: &c.VersionOrder,
			Sources:     cli.EnvVars("POLICYFETCH_VERSION_ORDER"),
		},
		&cli.BoolFlag{
			Name:        "keep-going",
			Usage:       "Continue with other projects when one project fails",
			Destination: &c.KeepGoing,
			Sources:     cli.EnvVars("POLICYFETCH_KEEP_GOING"),
		},
	}
}

// Validate checks that the policy directory exists and the version order is known
func (c *Policy) Validate() error {
	if c.Path == "" {
		return goerr.New("policy path is required (--policy-path or POLICY_PATH)", goerr.T(types.ErrTagConfig))
	}

	info, err := os.Stat(c.Path)
	if err != nil {
		return goerr.Wrap(err, "the provided policy path does not exist", goerr.V("path", c.Path), goerr.T(types.ErrTagConfig))
	}
	if !info.IsDir() {
		return goerr.New("the provided policy path is not a directory", goerr.V("path", c.Path), goerr.T(types.ErrTagConfig))
	}

	if err := types.VersionOrder(c.VersionOrder).Validate(); err != nil {
		return goerr.Wrap(err, "invalid version order", goerr.V("version_order", c.VersionOrder))
	}

	return nil
}
