package config

import (
	"bytes"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

// File holds the path of an optional TOML configuration file
type File struct {
	Path string
}

// FileValues is the content of the configuration file. The token is not accepted here.
type FileValues struct {
	URL          string `toml:"url"`
	PolicyPath   string `toml:"policy_path"`
	VersionOrder string `toml:"version_order"`
	KeepGoing    *bool  `toml:"keep_going"`
}

// Flags returns CLI flags for the configuration file
func (c *File) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a TOML configuration file",
			Destination: &c.Path,
			Sources:     cli.EnvVars("POLICYFETCH_CONFIG"),
		},
	}
}

// Load reads the configuration file. It returns empty values if no path is set.
func (c *File) Load() (*FileValues, error) {
	var values FileValues
	if c.Path == "" {
		return &values, nil
	}

	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", c.Path), goerr.T(types.ErrTagConfig))
	}

	decoder := toml.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&values); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", c.Path), goerr.T(types.ErrTagConfig))
	}

	return &values, nil
}

// Apply fills options not set by flags or environment variables. isSet reports
// whether a flag was given, typically (*cli.Command).IsSet.
func (x *FileValues) Apply(isSet func(name string) bool, gitlabCfg *GitLab, policyCfg *Policy) {
	if x.URL != "" && !isSet("url") {
		gitlabCfg.URL = x.URL
	}
	if x.PolicyPath != "" && !isSet("policy-path") {
		policyCfg.Path = x.PolicyPath
	}
	if x.VersionOrder != "" && !isSet("version-order") {
		policyCfg.VersionOrder = x.VersionOrder
	}
	if x.KeepGoing != nil && !isSet("keep-going") {
		policyCfg.KeepGoing = *x.KeepGoing
	}
}
