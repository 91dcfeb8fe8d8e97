package model

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

const (
	// BundlePackageName is the generic package that holds policy bundles
	BundlePackageName = "bundle"
	// BundleFileName is the archive file name of the package and of the local temporary file
	BundleFileName = "bundle.tar.gz"
)

// BundleDescriptor identifies one downloadable bundle
type BundleDescriptor struct {
	BaseURL   string
	ProjectID types.ProjectID
	Version   string
}

// URL returns the download URL of the bundle
func (x BundleDescriptor) URL() string {
	return fmt.Sprintf("%s/api/v4/projects/%d/packages/generic/%s/%s/%s",
		strings.TrimRight(x.BaseURL, "/"),
		x.ProjectID,
		BundlePackageName,
		url.PathEscape(x.Version),
		BundleFileName,
	)
}
