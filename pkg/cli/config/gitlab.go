package config

import (
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/policyfetch/pkg/domain/interfaces"
	"github.com/m-mizutani/policyfetch/pkg/domain/types"
	"github.com/m-mizutani/policyfetch/pkg/infra/gitlab"
)

// GitLab holds GitLab API configuration
type GitLab struct {
	URL   string
	Token string
}

// Flags returns CLI flags for GitLab configuration
func (c *GitLab) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "url",
			Usage:       "GitLab base URL (e.g. https://gitlab.example.com)",
			Destination: &c.URL,
			Sources:     cli.EnvVars("POLICYFETCH_URL", "URL"),
		},
		&cli.StringFlag{
			Name:        "token",
			Usage:       "GitLab private token",
			Destination: &c.Token,
			Sources:     cli.EnvVars("POLICYFETCH_TOKEN", "TOKEN"),
		},
	}
}

// Validate checks the URL and token before any request is issued
func (c *GitLab) Validate() error {
	if c.URL == "" {
		return goerr.New("GitLab URL is required (--url or URL)", goerr.T(types.ErrTagConfig))
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return goerr.Wrap(err, "invalid GitLab URL", goerr.V("url", c.URL), goerr.T(types.ErrTagConfig))
	}
	if !u.IsAbs() || u.Host == "" {
		return goerr.New("GitLab URL must be absolute", goerr.V("url", c.URL), goerr.T(types.ErrTagConfig))
	}
	if c.Token == "" {
		return goerr.New("GitLab token is required (--token or TOKEN)", goerr.T(types.ErrTagConfig))
	}
	return nil
}

// NewClient validates the configuration and creates a GitLab client
func (c *GitLab) NewClient(opts ...gitlab.Option) (interfaces.GitLabClient, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return gitlab.NewClient(c.URL, types.Token(c.Token), opts...)
}
