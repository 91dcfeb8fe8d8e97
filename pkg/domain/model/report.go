package model

import "github.com/m-mizutani/policyfetch/pkg/domain/types"

// ExtractResult represents what one bundle extraction wrote
type ExtractResult struct {
	Dir   string   // Target directory
	Files []string // Extracted entries, relative to Dir
	Size  int64    // Total size of regular files in bytes
}

// ProjectReport is the outcome of processing one project
type ProjectReport struct {
	ProjectID types.ProjectID
	Version   string
	URL       string
	Result    *ExtractResult
	Err       error
}

// Succeeded returns true if the bundle of the project was extracted
func (x *ProjectReport) Succeeded() bool {
	return x.Err == nil && x.Result != nil
}

// SyncReport is the outcome of one pipeline run
type SyncReport struct {
	RunID    string
	Projects []*ProjectReport
}

// Failed returns reports of projects that could not be synced
func (x *SyncReport) Failed() []*ProjectReport {
	var failed []*ProjectReport
	for _, p := range x.Projects {
		if !p.Succeeded() {
			failed = append(failed, p)
		}
	}
	return failed
}
