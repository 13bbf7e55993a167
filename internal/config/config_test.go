package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/site-publish/pkg/remote"
)

const sampleYAML = `
protocol: sftp
host: example.org
username: deploy
password_from: env:SITE_PUBLISH_PASSWORD
local_root: ./staging-deploy
remote_root: /public_html/site
excludes:
  - ".git/"
  - "**/.DS_Store"
timeout: 10s
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site-publish.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "example.org", cfg.Host)
	assert.Equal(t, "env:SITE_PUBLISH_PASSWORD", cfg.PasswordFrom)
	assert.Equal(t, []string{".git/", "**/.DS_Store"}, cfg.Excludes)
	assert.Nil(t, cfg.CreateRemoteRoot)

	v, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 22, v.Port)
	assert.Equal(t, 10*time.Second, v.TimeoutDuration)
	assert.Equal(t, DefaultLandingPage, v.LandingPage)
	assert.True(t, v.ShouldCreateRemoteRoot())

	ep := v.Endpoint()
	assert.Equal(t, remote.ProtocolSFTP, ep.Protocol)
	assert.Equal(t, "sftp://deploy@example.org:22", ep.String())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("hostname: example.org\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestWithOverrides(t *testing.T) {
	base := Config{
		Host:      "example.org",
		Username:  "deploy",
		LocalRoot: "site",
		Excludes:  []string{"*.bak"},
	}

	protocol := "ftps"
	port := 2121
	create := false
	got := base.WithOverrides(Overrides{
		Protocol:         &protocol,
		Port:             &port,
		CreateRemoteRoot: &create,
		Excludes:         []string{"drafts/"},
	})

	assert.Equal(t, "ftps", got.Protocol)
	assert.Equal(t, 2121, got.Port)
	assert.False(t, got.ShouldCreateRemoteRoot())
	assert.Equal(t, []string{"*.bak", "drafts/"}, got.Excludes)

	// base is left untouched.
	assert.Empty(t, base.Protocol)
	assert.Equal(t, []string{"*.bak"}, base.Excludes)
	assert.Nil(t, base.CreateRemoteRoot)
}

func TestValidate(t *testing.T) {
	valid := Config{Host: "example.org", Username: "deploy", LocalRoot: "site"}

	tests := []struct {
		name    string
		modify  func(c *Config)
		check   func(t *testing.T, c Config)
		wantErr string
	}{
		{
			name: "defaults",
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "sftp", c.Protocol)
				assert.Equal(t, 22, c.Port)
				assert.Equal(t, ".", c.RemoteRoot)
				assert.Equal(t, DefaultTimeout, c.TimeoutDuration)
			},
		},
		{
			name:   "ftp port",
			modify: func(c *Config) { c.Protocol = "FTP" },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "ftp", c.Protocol)
				assert.Equal(t, 21, c.Port)
			},
		},
		{
			name: "s3 uri",
			modify: func(c *Config) {
				c.Host = ""
				c.Username = ""
				c.RemoteRoot = "s3://site-bucket/releases/current/"
			},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "s3", c.Protocol)
				assert.Equal(t, "site-bucket", c.Host)
				assert.Equal(t, "/releases/current", c.RemoteRoot)
				assert.Equal(t, 0, c.Port)
			},
		},
		{
			name: "s3 uri with other protocol",
			modify: func(c *Config) {
				c.Protocol = "sftp"
				c.RemoteRoot = "s3://bucket/x"
			},
			wantErr: "requires protocol s3",
		},
		{
			name:    "literal password",
			modify:  func(c *Config) { c.Password = "hunter2" },
			wantErr: "password_from",
		},
		{
			name:    "bad password reference",
			modify:  func(c *Config) { c.PasswordFrom = "hunter2" },
			wantErr: "password_from",
		},
		{
			name:    "missing host",
			modify:  func(c *Config) { c.Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "missing username",
			modify:  func(c *Config) { c.Username = "" },
			wantErr: "username is required",
		},
		{
			name:    "missing local root",
			modify:  func(c *Config) { c.LocalRoot = "" },
			wantErr: "local_root is required",
		},
		{
			name:    "unknown protocol",
			modify:  func(c *Config) { c.Protocol = "scp" },
			wantErr: "unsupported protocol",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.Port = 70000 },
			wantErr: "out of range",
		},
		{
			name:    "bad timeout",
			modify:  func(c *Config) { c.Timeout = "soon" },
			wantErr: "invalid timeout",
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Timeout = "-1s" },
			wantErr: "must be positive",
		},
		{
			name:    "bad exclude",
			modify:  func(c *Config) { c.Excludes = []string{"[a-"} },
			wantErr: "invalid exclude pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			if tt.modify != nil {
				tt.modify(&c)
			}
			got, err := c.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestValidateExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	c := Config{Host: "h", Username: "u", LocalRoot: "~/site", KeyFile: "~/.ssh/id_ed25519"}
	got, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "site"), got.LocalRoot)
	assert.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), got.KeyFile)
}
