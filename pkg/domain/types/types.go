package types

import "strconv"

// Version is the application version. Overwritten by -ldflags at release build.
var Version = "dev"

// ProjectID identifies a project in the upstream API
type ProjectID int64

func (x ProjectID) String() string {
	return strconv.FormatInt(int64(x), 10)
}

// Token is a private API token. Values of this type are redacted by the logger.
type Token string

// VersionOrder decides how the latest package version is picked
type VersionOrder string

const (
	// VersionOrderSemver picks the highest semantic version
	VersionOrderSemver VersionOrder = "semver"
	// VersionOrderAPI trusts the order returned by the API and takes the first package
	VersionOrderAPI VersionOrder = "api"
)

// Validate checks that the order is one of the known values
func (x VersionOrder) Validate() error {
	switch x {
	case VersionOrderSemver, VersionOrderAPI:
		return nil
	default:
		return ErrInvalidVersionOrder
	}
}
