package interfaces

import (
	"context"

	"github.com/m-mizutani/policyfetch/pkg/domain/model"
	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

// GitLabClient defines operations for interacting with the GitLab API
type GitLabClient interface {
	// ListProjects returns ids of projects accessible by the token, in API order
	ListProjects(ctx context.Context) ([]types.ProjectID, error)

	// ListPackages returns packages published under the project
	ListPackages(ctx context.Context, projectID types.ProjectID) ([]*model.Package, error)

	// DownloadBundle downloads the bundle archive at url
	DownloadBundle(ctx context.Context, url string) ([]byte, error)

	// BaseURL returns the API base URL used to build bundle URLs
	BaseURL() string
}
