package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/policyfetch/pkg/domain/interfaces"
	"github.com/m-mizutani/policyfetch/pkg/domain/model"
	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

const (
	tokenHeader     = "PRIVATE-TOKEN"
	projectsPerPage = 500
)

// unauthorizedBody is returned with 200 by some proxies in front of GitLab
var unauthorizedBody = []byte(`{"message":"401 Unauthorized"}`)

type client struct {
	baseURL    string
	token      types.Token
	httpClient *http.Client
}

// Option is a functional option for the GitLab client
type Option func(*client)

// WithHTTPClient replaces the HTTP client. The default one has no timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new GitLab client authenticated by a private token
func NewClient(baseURL string, token types.Token, opts ...Option) (interfaces.GitLabClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid GitLab URL", goerr.V("url", baseURL), goerr.T(types.ErrTagConfig))
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, goerr.New("GitLab URL must be an absolute http(s) URL", goerr.V("url", baseURL), goerr.T(types.ErrTagConfig))
	}
	if token == "" {
		return nil, goerr.New("GitLab token is empty", goerr.T(types.ErrTagConfig))
	}

	c := &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the API base URL without trailing slash
func (c *client) BaseURL() string {
	return c.baseURL
}

// ListProjects lists ids of projects accessible by the token. Only the first page is read.
func (c *client) ListProjects(ctx context.Context) ([]types.ProjectID, error) {
	logger := ctxlog.From(ctx)

	reqURL := c.baseURL + "/api/v4/projects?" + url.Values{
		"per_page": {strconv.Itoa(projectsPerPage)},
		"sort":     {"asc"},
	}.Encode()

	body, err := c.getOK(ctx, reqURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list projects")
	}

	var projects []*model.Project
	if err := json.Unmarshal(body, &projects); err != nil {
		return nil, goerr.Wrap(err, "failed to decode projects list",
			goerr.V("url", reqURL),
			goerr.V("body", truncate(body)),
			goerr.T(types.ErrTagDecode),
		)
	}

	if len(projects) == 0 {
		return nil, goerr.New("token has access to zero projects, expected at least 1", goerr.T(types.ErrTagNoProjects))
	}

	ids := make([]types.ProjectID, 0, len(projects))
	for i, p := range projects {
		if p == nil || p.ID == nil {
			return nil, goerr.New("project has no id", goerr.V("index", i), goerr.T(types.ErrTagDecode))
		}
		if *p.ID <= 0 {
			return nil, goerr.New("project id must be positive", goerr.V("index", i), goerr.V("id", *p.ID), goerr.T(types.ErrTagDecode))
		}
		ids = append(ids, *p.ID)
	}

	if len(ids) == projectsPerPage {
		logger.Warn("Project list reached page size, remaining projects are not fetched", "per_page", projectsPerPage)
	}
	logger.Info("Listed accessible projects", "count", len(ids))

	return ids, nil
}

// ListPackages lists packages published under the project
func (c *client) ListPackages(ctx context.Context, projectID types.ProjectID) ([]*model.Package, error) {
	reqURL := c.baseURL + "/api/v4/projects/" + projectID.String() + "/packages"

	body, err := c.getOK(ctx, reqURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list packages", goerr.V("project_id", projectID))
	}

	var packages []*model.Package
	if err := json.Unmarshal(body, &packages); err != nil {
		return nil, goerr.Wrap(err, "failed to decode packages list",
			goerr.V("project_id", projectID),
			goerr.V("body", truncate(body)),
			goerr.T(types.ErrTagDecode),
		)
	}

	return packages, nil
}

// DownloadBundle downloads the bundle archive
func (c *client) DownloadBundle(ctx context.Context, bundleURL string) ([]byte, error) {
	data, err := c.getOK(ctx, bundleURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download bundle")
	}

	ctxlog.From(ctx).Debug("Downloaded bundle", "url", bundleURL, "size_bytes", len(data))
	return data, nil
}

// getOK issues GET and returns the body only if the response is classified as success
func (c *client) getOK(ctx context.Context, reqURL string) ([]byte, error) {
	status, body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, goerr.Wrap(err, "request failed", goerr.V("url", reqURL), goerr.V("status", status))
	}
	return body, nil
}

// get issues an authenticated GET request and returns status and body as is
func (c *client) get(ctx context.Context, reqURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, goerr.Wrap(err, "failed to create request", goerr.V("url", reqURL), goerr.T(types.ErrTagConfig))
	}
	req.Header.Set(tokenHeader, string(c.token))

	ctxlog.From(ctx).Debug("Sending request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, goerr.Wrap(err, "failed to send request", goerr.V("url", reqURL), goerr.T(types.ErrTagTransport))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, goerr.Wrap(err, "failed to read response body", goerr.V("url", reqURL), goerr.T(types.ErrTagTransport))
	}

	return resp.StatusCode, body, nil
}

// checkStatus maps a response to its outcome. Every status other than 200 is a failure.
func checkStatus(status int, body []byte) error {
	switch status {
	case http.StatusOK:
		if bytes.Equal(bytes.TrimSpace(body), unauthorizedBody) {
			return goerr.New("token is unauthorized", goerr.T(types.ErrTagUnauthorized))
		}
		return nil
	case http.StatusUnauthorized:
		return goerr.New("token is unauthorized", goerr.T(types.ErrTagUnauthorized))
	case http.StatusNotFound:
		return goerr.New("resource not found", goerr.T(types.ErrTagNotFound))
	default:
		return goerr.New("unexpected status code", goerr.V("body", truncate(body)), goerr.T(types.ErrTagUnexpectedStatus))
	}
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
