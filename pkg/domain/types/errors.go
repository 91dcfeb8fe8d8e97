package types

import "github.com/m-mizutani/goerr/v2"

// Failure classes. Every error surfaced by the pipeline carries exactly one of these tags.
var (
	ErrTagConfig           = goerr.NewTag("config")
	ErrTagUnauthorized     = goerr.NewTag("unauthorized")
	ErrTagNotFound         = goerr.NewTag("not_found")
	ErrTagUnexpectedStatus = goerr.NewTag("unexpected_status")
	ErrTagDecode           = goerr.NewTag("decode")
	ErrTagNoProjects       = goerr.NewTag("no_projects")
	ErrTagNoPackages       = goerr.NewTag("no_packages")
	ErrTagTransport        = goerr.NewTag("transport")
	ErrTagExtract          = goerr.NewTag("extract")
	ErrTagPartialFailure   = goerr.NewTag("partial_failure")
)

var (
	ErrInvalidVersionOrder = goerr.New("version order must be 'semver' or 'api'", goerr.T(ErrTagConfig))
)
