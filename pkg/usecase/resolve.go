package usecase

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/mod/semver"

	"github.com/m-mizutani/policyfetch/pkg/domain/model"
	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

// SelectVersion picks the bundle version to download from a packages list.
//
// Only packages named "bundle" (or without a name) are candidates. With
// VersionOrderSemver the highest semantic version wins, falling back to the
// first candidate when no version parses. With VersionOrderAPI the first
// candidate wins.
func SelectVersion(packages []*model.Package, order types.VersionOrder) (string, error) {
	if len(packages) == 0 {
		return "", goerr.New("no packages found for project", goerr.T(types.ErrTagNoPackages))
	}

	var candidates []string
	for i, pkg := range packages {
		if pkg == nil || (pkg.Name != "" && pkg.Name != model.BundlePackageName) {
			continue
		}

		version := strings.Trim(strings.TrimSpace(pkg.Version), `"`)
		if version == "" {
			return "", goerr.New("package has no version", goerr.V("index", i), goerr.V("package_id", pkg.ID), goerr.T(types.ErrTagDecode))
		}
		candidates = append(candidates, version)
	}

	if len(candidates) == 0 {
		return "", goerr.New("no bundle package found for project",
			goerr.V("package_count", len(packages)),
			goerr.T(types.ErrTagNoPackages),
		)
	}

	switch order {
	case types.VersionOrderAPI:
		return candidates[0], nil

	case types.VersionOrderSemver:
		selected := ""
		for _, v := range candidates {
			if !semver.IsValid(canonical(v)) {
				continue
			}
			if selected == "" || semver.Compare(canonical(v), canonical(selected)) > 0 {
				selected = v
			}
		}
		if selected == "" {
			return candidates[0], nil
		}
		return selected, nil

	default:
		return "", goerr.Wrap(types.ErrInvalidVersionOrder, "can not select version", goerr.V("order", order))
	}
}

// canonical adds the "v" prefix that golang.org/x/mod/semver requires
func canonical(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}
