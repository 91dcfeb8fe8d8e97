package usecase_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/policyfetch/pkg/domain/model"
	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

// Tag values of goerr are unexported, so test tables hold predicates
var (
	isUnauthorized = func(err error) bool { return goerr.HasTag(err, types.ErrTagUnauthorized) }
	isNotFound     = func(err error) bool { return goerr.HasTag(err, types.ErrTagNotFound) }
	isTransport    = func(err error) bool { return goerr.HasTag(err, types.ErrTagTransport) }
	isNoPackages   = func(err error) bool { return goerr.HasTag(err, types.ErrTagNoPackages) }
	isDecodeError  = func(err error) bool { return goerr.HasTag(err, types.ErrTagDecode) }
	isConfigError  = func(err error) bool { return goerr.HasTag(err, types.ErrTagConfig) }
)

// MockGitLabClient is a mock implementation of GitLabClient
type MockGitLabClient struct {
	listProjectsFunc   func(ctx context.Context) ([]types.ProjectID, error)
	listPackagesFunc   func(ctx context.Context, projectID types.ProjectID) ([]*model.Package, error)
	downloadBundleFunc func(ctx context.Context, url string) ([]byte, error)

	listProjectsCalls   int
	listPackagesCalls   []types.ProjectID
	downloadBundleCalls []string
}

func (m *MockGitLabClient) ListProjects(ctx context.Context) ([]types.ProjectID, error) {
	m.listProjectsCalls++
	if m.listProjectsFunc != nil {
		return m.listProjectsFunc(ctx)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockGitLabClient) ListPackages(ctx context.Context, projectID types.ProjectID) ([]*model.Package, error) {
	m.listPackagesCalls = append(m.listPackagesCalls, projectID)
	if m.listPackagesFunc != nil {
		return m.listPackagesFunc(ctx, projectID)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockGitLabClient) DownloadBundle(ctx context.Context, url string) ([]byte, error) {
	m.downloadBundleCalls = append(m.downloadBundleCalls, url)
	if m.downloadBundleFunc != nil {
		return m.downloadBundleFunc(ctx, url)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockGitLabClient) BaseURL() string {
	return "https://gitlab.example.com"
}

func (m *MockGitLabClient) totalCalls() int {
	return m.listProjectsCalls + len(m.listPackagesCalls) + len(m.downloadBundleCalls)
}

// tarEntry describes one entry of a test archive
type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
	mode     int64
}

// createTestBundle creates a gzip-compressed tar archive from entries
func createTestBundle(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Linkname: e.linkname,
			Mode:     e.mode,
		}
		if hdr.Typeflag == 0 {
			hdr.Typeflag = tar.TypeReg
		}
		if hdr.Mode == 0 {
			hdr.Mode = 0644
			if hdr.Typeflag == tar.TypeDir {
				hdr.Mode = 0755
			}
		}
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}

		gt.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			gt.NoError(t, err)
		}
	}

	gt.NoError(t, tw.Close())
	gt.NoError(t, gw.Close())
	return buf.Bytes()
}

// policyTree is a small policy store used as archive content
var policyTree = []tarEntry{
	{name: "policies/", typeflag: tar.TypeDir},
	{name: "policies/authz.rego", body: "package authz\n\ndefault allow := false\n"},
	{name: "policies/lib/", typeflag: tar.TypeDir},
	{name: "policies/lib/util.rego", body: "package lib.util\n"},
	{name: "data.json", body: `{"roles":["admin"]}`},
	{name: ".manifest", body: `{"revision":"1.2.3","roots":["authz"]}`},
}

// snapshotDir returns relative path to content of every file and directory ("/" suffix) under dir
func snapshotDir(t *testing.T, dir string) map[string]string {
	t.Helper()

	tree := map[string]string{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		switch {
		case info.IsDir():
			tree[rel+"/"] = ""
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			tree[rel] = "-> " + target
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			tree[rel] = string(data)
		}
		return nil
	})
	gt.NoError(t, err)
	return tree
}

// expectedTree returns the snapshot that extracting entries must produce
func expectedTree(entries []tarEntry) map[string]string {
	tree := map[string]string{}
	for _, e := range entries {
		switch e.typeflag {
		case tar.TypeDir:
			tree[e.name] = ""
		case tar.TypeSymlink:
			tree[e.name] = "-> " + e.linkname
		default:
			tree[e.name] = e.body
		}
	}
	return tree
}
