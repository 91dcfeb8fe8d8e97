package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/policyfetch/pkg/cli/config"
	"github.com/m-mizutani/policyfetch/pkg/domain/model"
	"github.com/m-mizutani/policyfetch/pkg/domain/types"
	"github.com/m-mizutani/policyfetch/pkg/usecase"
)

const syncDescription = "The latest bundle is the package with the highest semantic version, not the first element\n" +
	"of the packages list returned by GitLab. Use --version-order api to take the first element instead."

func cmdSync(fileCfg *config.File, stdout io.Writer) *cli.Command {
	var (
		gitlabCfg config.GitLab
		policyCfg config.Policy
		sentryCfg config.Sentry
	)

	flags := append(gitlabCfg.Flags(), policyCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:        "sync",
		Aliases:     []string{"s"},
		Usage:       "Download and extract the latest bundle of every accessible project",
		Description: syncDescription,
		Flags:       flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			fileValues, err := fileCfg.Load()
			if err != nil {
				return err
			}
			fileValues.Apply(c.IsSet, &gitlabCfg, &policyCfg)

			if err := policyCfg.Validate(); err != nil {
				return err
			}
			logger.Info("The provided policy path exists", "path", policyCfg.Path)

			client, err := gitlabCfg.NewClient()
			if err != nil {
				return err
			}

			if err := sentryCfg.Configure(); err != nil {
				return err
			}

			uc := usecase.NewSync(client, policyCfg.Path,
				usecase.WithVersionOrder(types.VersionOrder(policyCfg.VersionOrder)),
				usecase.WithKeepGoing(policyCfg.KeepGoing),
			)

			report, err := uc.Sync(ctx)
			if report != nil {
				printReport(stdout, report)
			}
			if err != nil {
				sentryCfg.Report(err)
				return goerr.Wrap(err, "policy bundle sync failed")
			}

			return nil
		},
	}
}

// printReport writes one line per project
func printReport(w io.Writer, report *model.SyncReport) {
	ok := color.New(color.FgGreen).SprintFunc()
	ng := color.New(color.FgRed).SprintFunc()

	for _, p := range report.Projects {
		if p.Succeeded() {
			fmt.Fprintf(w, "%s project=%d version=%s files=%d\n", ok("ok"), p.ProjectID, p.Version, len(p.Result.Files))
		} else {
			fmt.Fprintf(w, "%s project=%d version=%s error=%v\n", ng("failed"), p.ProjectID, p.Version, p.Err)
		}
	}
}
