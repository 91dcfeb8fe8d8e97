package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/policyfetch/pkg/cli/config"
	"github.com/m-mizutani/policyfetch/pkg/domain/types"
)

func TestGitLab_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.GitLab
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  config.GitLab{URL: "https://gitlab.example.com", Token: "glpat-xxx"},
		},
		{
			name:    "missing URL",
			cfg:     config.GitLab{Token: "glpat-xxx"},
			wantErr: true,
		},
		{
			name:    "relative URL",
			cfg:     config.GitLab{URL: "gitlab.example.com", Token: "glpat-xxx"},
			wantErr: true,
		},
		{
			name:    "broken URL",
			cfg:     config.GitLab{URL: "https://[::1", Token: "glpat-xxx"},
			wantErr: true,
		},
		{
			name:    "missing token",
			cfg:     config.GitLab{URL: "https://gitlab.example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				gt.NoError(t, err)
				return
			}
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
		})
	}
}

func TestGitLab_NewClient(t *testing.T) {
	cfg := config.GitLab{URL: "https://gitlab.example.com/", Token: "glpat-xxx"}
	client, err := cfg.NewClient()
	gt.NoError(t, err)
	gt.Value(t, client.BaseURL()).Equal("https://gitlab.example.com")
}

func TestPolicy_Validate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	gt.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name    string
		cfg     config.Policy
		wantErr bool
	}{
		{
			name: "existing directory",
			cfg:  config.Policy{Path: dir, VersionOrder: "semver"},
		},
		{
			name: "api order",
			cfg:  config.Policy{Path: dir, VersionOrder: "api"},
		},
		{
			name:    "missing path",
			cfg:     config.Policy{VersionOrder: "semver"},
			wantErr: true,
		},
		{
			name:    "path does not exist",
			cfg:     config.Policy{Path: filepath.Join(dir, "missing"), VersionOrder: "semver"},
			wantErr: true,
		},
		{
			name:    "path is a file",
			cfg:     config.Policy{Path: file, VersionOrder: "semver"},
			wantErr: true,
		},
		{
			name:    "unknown version order",
			cfg:     config.Policy{Path: dir, VersionOrder: "newest"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				gt.NoError(t, err)
				return
			}
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
		})
	}
}

func TestFile_Load(t *testing.T) {
	t.Run("no path", func(t *testing.T) {
		values, err := (&config.File{}).Load()
		gt.NoError(t, err)
		gt.Value(t, values.URL).Equal("")
		gt.Value(t, values.KeepGoing).Nil()
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policyfetch.toml")
		gt.NoError(t, os.WriteFile(path, []byte(`
url = "https://gitlab.example.com"
policy_path = "/var/lib/opa"
version_order = "api"
keep_going = true
`), 0644))

		values, err := (&config.File{Path: path}).Load()
		gt.NoError(t, err)
		gt.Value(t, values.URL).Equal("https://gitlab.example.com")
		gt.Value(t, values.PolicyPath).Equal("/var/lib/opa")
		gt.Value(t, values.VersionOrder).Equal("api")
		gt.True(t, *values.KeepGoing)
	})

	t.Run("token is not accepted", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policyfetch.toml")
		gt.NoError(t, os.WriteFile(path, []byte(`token = "glpat-xxx"`), 0644))

		_, err := (&config.File{Path: path}).Load()
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
	})

	t.Run("broken file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policyfetch.toml")
		gt.NoError(t, os.WriteFile(path, []byte(`url = `), 0644))

		_, err := (&config.File{Path: path}).Load()
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := (&config.File{Path: filepath.Join(t.TempDir(), "missing.toml")}).Load()
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
	})
}

func TestFileValues_Apply(t *testing.T) {
	keepGoing := true
	values := &config.FileValues{
		URL:          "https://from-file.example.com",
		PolicyPath:   "/from/file",
		VersionOrder: "api",
		KeepGoing:    &keepGoing,
	}

	gitlabCfg := &config.GitLab{URL: "https://from-flag.example.com"}
	policyCfg := &config.Policy{VersionOrder: "semver"}

	isSet := func(name string) bool { return name == "url" }
	values.Apply(isSet, gitlabCfg, policyCfg)

	gt.Value(t, gitlabCfg.URL).Equal("https://from-flag.example.com")
	gt.Value(t, policyCfg.Path).Equal("/from/file")
	gt.Value(t, policyCfg.VersionOrder).Equal("api")
	gt.True(t, policyCfg.KeepGoing)
}

func TestSentry_Configure(t *testing.T) {
	t.Run("disabled without DSN", func(t *testing.T) {
		cfg := &config.Sentry{}
		gt.NoError(t, cfg.Configure())
		gt.False(t, cfg.Enabled())
		cfg.Report(goerr.New("not sent"))
	})

	t.Run("invalid DSN", func(t *testing.T) {
		cfg := &config.Sentry{DSN: "not a dsn"}
		err := cfg.Configure()
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
		gt.False(t, cfg.Enabled())
	})
}
