package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/policyfetch/pkg/domain/interfaces"
	"github.com/m-mizutani/policyfetch/pkg/domain/model"
	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

type syncUseCase struct {
	gitlabClient interfaces.GitLabClient
	policyDir    string
	versionOrder types.VersionOrder
	keepGoing    bool
}

// SyncOption is a functional option for the sync use case
type SyncOption func(*syncUseCase)

// WithVersionOrder sets how the latest package version is selected
func WithVersionOrder(order types.VersionOrder) SyncOption {
	return func(uc *syncUseCase) {
		uc.versionOrder = order
	}
}

// WithKeepGoing continues with the next project when a project fails.
// Unauthorized and transport errors still abort the run.
func WithKeepGoing(keepGoing bool) SyncOption {
	return func(uc *syncUseCase) {
		uc.keepGoing = keepGoing
	}
}

// NewSync creates a new instance of SyncUseCase
func NewSync(gitlabClient interfaces.GitLabClient, policyDir string, opts ...SyncOption) interfaces.SyncUseCase {
	uc := &syncUseCase{
		gitlabClient: gitlabClient,
		policyDir:    policyDir,
		versionOrder: types.VersionOrderSemver,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Sync enumerates projects, then resolves, downloads and extracts the bundle of each one in order
func (uc *syncUseCase) Sync(ctx context.Context) (*model.SyncReport, error) {
	report := &model.SyncReport{RunID: uuid.NewString()}

	logger := ctxlog.From(ctx).With("run_id", report.RunID)
	ctx = ctxlog.With(ctx, logger)

	logger.Info("Starting policy bundle sync",
		"base_url", uc.gitlabClient.BaseURL(),
		"policy_dir", uc.policyDir,
		"version_order", uc.versionOrder,
		"keep_going", uc.keepGoing,
	)

	projectIDs, err := uc.gitlabClient.ListProjects(ctx)
	if err != nil {
		return report, goerr.Wrap(err, "failed to enumerate projects")
	}

	for _, projectID := range projectIDs {
		projectReport := uc.syncProject(ctx, projectID)
		report.Projects = append(report.Projects, projectReport)

		if projectReport.Err == nil {
			continue
		}

		if !uc.keepGoing || isAbortingError(projectReport.Err) {
			return report, projectReport.Err
		}

		logger.Warn("Project sync failed, continuing",
			"project_id", projectID,
			"error", projectReport.Err,
		)
	}

	if failed := report.Failed(); len(failed) > 0 {
		return report, goerr.New("some projects failed to sync",
			goerr.V("failed", len(failed)),
			goerr.V("total", len(report.Projects)),
			goerr.T(types.ErrTagPartialFailure),
		)
	}

	logger.Info("Policy bundle sync completed", "projects", len(report.Projects))
	return report, nil
}

// syncProject runs resolve, fetch and extract for one project
func (uc *syncUseCase) syncProject(ctx context.Context, projectID types.ProjectID) *model.ProjectReport {
	logger := ctxlog.From(ctx).With("project_id", projectID)
	report := &model.ProjectReport{ProjectID: projectID}

	packages, err := uc.gitlabClient.ListPackages(ctx, projectID)
	if err != nil {
		report.Err = goerr.Wrap(err, "failed to resolve package version", goerr.V("project_id", projectID))
		return report
	}

	version, err := SelectVersion(packages, uc.versionOrder)
	if err != nil {
		report.Err = goerr.Wrap(err, "failed to resolve package version", goerr.V("project_id", projectID))
		return report
	}
	report.Version = version

	desc := model.BundleDescriptor{
		BaseURL:   uc.gitlabClient.BaseURL(),
		ProjectID: projectID,
		Version:   version,
	}
	report.URL = desc.URL()

	logger.Info("Resolved bundle", "version", version, "url", report.URL)

	data, err := uc.gitlabClient.DownloadBundle(ctx, report.URL)
	if err != nil {
		report.Err = goerr.Wrap(err, "failed to fetch bundle",
			goerr.V("project_id", projectID),
			goerr.V("version", version),
		)
		return report
	}

	logger.Info("Downloaded bundle", "size_bytes", len(data))

	result, err := ExtractBundle(ctx, data, uc.policyDir)
	if err != nil {
		report.Err = goerr.Wrap(err, "failed to extract bundle",
			goerr.V("project_id", projectID),
			goerr.V("version", version),
		)
		return report
	}
	report.Result = result

	logger.Info("Extracted bundle",
		"dir", result.Dir,
		"file_count", len(result.Files),
		"total_size_bytes", result.Size,
	)

	return report
}

// isAbortingError returns true for failures that will repeat for every project
func isAbortingError(err error) bool {
	return goerr.HasTag(err, types.ErrTagUnauthorized) || goerr.HasTag(err, types.ErrTagTransport)
}
