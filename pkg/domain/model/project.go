package model

import "github.com/m-mizutani/policyfetch/pkg/domain/types"

// Project is an element of the projects list. Only ID is required.
type Project struct {
	ID                *types.ProjectID `json:"id"`
	Name              string           `json:"name"`
	PathWithNamespace string           `json:"path_with_namespace"`
}

// Package is an element of the packages list of a project
type Package struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	PackageType string `json:"package_type"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}
