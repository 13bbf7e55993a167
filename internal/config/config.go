package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yuya-takeyama/site-publish/internal/secret"
	"github.com/yuya-takeyama/site-publish/pkg/remote"
	"github.com/yuya-takeyama/site-publish/pkg/syncer"
)

const (
	DefaultLandingPage = "index.html"
	DefaultTimeout     = 30 * time.Second
)

// Config is the root of site-publish.yaml. Values are never mutated after
// Validate; WithOverrides and Validate return copies.
type Config struct {
	Protocol              string   `yaml:"protocol"`
	Host                  string   `yaml:"host"`
	Port                  int      `yaml:"port"`
	Username              string   `yaml:"username"`
	Password              string   `yaml:"password"`
	PasswordFrom          string   `yaml:"password_from"`
	KeyFile               string   `yaml:"key_file"`
	KnownHosts            string   `yaml:"known_hosts"`
	InsecureIgnoreHostKey bool     `yaml:"insecure_ignore_host_key"`
	LocalRoot             string   `yaml:"local_root"`
	RemoteRoot            string   `yaml:"remote_root"`
	CreateRemoteRoot      *bool    `yaml:"create_remote_root"`
	LandingPage           string   `yaml:"landing_page"`
	Excludes              []string `yaml:"excludes"`
	Timeout               string   `yaml:"timeout"`
	S3                    S3Config `yaml:"s3"`

	// Parsed from Timeout by Validate.
	TimeoutDuration time.Duration `yaml:"-"`
}

type S3Config struct {
	Region      string `yaml:"region"`
	Profile     string `yaml:"profile"`
	EndpointURL string `yaml:"endpoint_url"`
}

// Load reads and parses a config file. Unknown keys are rejected. The
// result still needs Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Overrides holds command-line values. Nil fields leave the config as is.
type Overrides struct {
	Protocol              *string
	Host                  *string
	Port                  *int
	Username              *string
	PasswordFrom          *string
	KeyFile               *string
	InsecureIgnoreHostKey *bool
	LocalRoot             *string
	RemoteRoot            *string
	CreateRemoteRoot      *bool
	LandingPage           *string
	Excludes              []string
	Timeout               *string
	Region                *string
	Profile               *string
	EndpointURL           *string
}

// WithOverrides returns a copy of c with every set override applied.
// Excludes given on the command line are appended to the configured ones.
func (c Config) WithOverrides(o Overrides) Config {
	out := c
	out.Excludes = append(append([]string(nil), c.Excludes...), o.Excludes...)

	setString(&out.Protocol, o.Protocol)
	setString(&out.Host, o.Host)
	setString(&out.Username, o.Username)
	setString(&out.PasswordFrom, o.PasswordFrom)
	setString(&out.KeyFile, o.KeyFile)
	setString(&out.LocalRoot, o.LocalRoot)
	setString(&out.RemoteRoot, o.RemoteRoot)
	setString(&out.LandingPage, o.LandingPage)
	setString(&out.Timeout, o.Timeout)
	setString(&out.S3.Region, o.Region)
	setString(&out.S3.Profile, o.Profile)
	setString(&out.S3.EndpointURL, o.EndpointURL)
	if o.Port != nil {
		out.Port = *o.Port
	}
	if o.InsecureIgnoreHostKey != nil {
		out.InsecureIgnoreHostKey = *o.InsecureIgnoreHostKey
	}
	if o.CreateRemoteRoot != nil {
		v := *o.CreateRemoteRoot
		out.CreateRemoteRoot = &v
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Validate fills in defaults and rejects invalid values.
func (c Config) Validate() (Config, error) {
	out := c
	out.Excludes = append([]string(nil), c.Excludes...)

	if out.Password != "" {
		return Config{}, errors.New("password must not be stored in the config; use password_from (env:, file:, prompt: or aws-sm:)")
	}

	if strings.HasPrefix(out.RemoteRoot, "s3://") {
		if out.Protocol != "" && !strings.EqualFold(strings.TrimSpace(out.Protocol), string(remote.ProtocolS3)) {
			return Config{}, fmt.Errorf("remote_root %s requires protocol s3, got %s", out.RemoteRoot, out.Protocol)
		}
		bucket, dir, err := remote.ParseS3URI(out.RemoteRoot)
		if err != nil {
			return Config{}, fmt.Errorf("remote_root: %w", err)
		}
		if out.Host != "" && out.Host != bucket {
			return Config{}, fmt.Errorf("remote_root bucket %s does not match host %s", bucket, out.Host)
		}
		out.Protocol = string(remote.ProtocolS3)
		out.Host = bucket
		out.RemoteRoot = dir
	}

	proto, err := remote.ParseProtocol(out.Protocol)
	if err != nil {
		return Config{}, err
	}
	out.Protocol = string(proto)

	if out.Host == "" {
		if proto == remote.ProtocolS3 {
			return Config{}, errors.New("host (bucket) is required for s3")
		}
		return Config{}, errors.New("host is required")
	}

	if out.Port == 0 {
		out.Port = proto.DefaultPort()
	}
	if out.Port < 0 || out.Port > 65535 {
		return Config{}, fmt.Errorf("port %d out of range", out.Port)
	}

	if proto != remote.ProtocolS3 && out.Username == "" {
		return Config{}, fmt.Errorf("username is required for %s", proto)
	}

	if _, err := secret.ParseRef(out.PasswordFrom); err != nil {
		return Config{}, fmt.Errorf("password_from: %w", err)
	}

	if out.LocalRoot == "" {
		return Config{}, errors.New("local_root is required")
	}
	out.LocalRoot = secret.ExpandHome(out.LocalRoot)
	out.KeyFile = secret.ExpandHome(out.KeyFile)
	out.KnownHosts = secret.ExpandHome(out.KnownHosts)

	if out.RemoteRoot == "" {
		out.RemoteRoot = "."
	}

	if out.CreateRemoteRoot == nil {
		v := true
		out.CreateRemoteRoot = &v
	}

	if out.LandingPage == "" {
		out.LandingPage = DefaultLandingPage
	}

	out.TimeoutDuration = DefaultTimeout
	if out.Timeout != "" {
		d, err := time.ParseDuration(out.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("invalid timeout %q: %v", out.Timeout, err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("timeout must be positive, got %s", out.Timeout)
		}
		out.TimeoutDuration = d
	}

	if err := syncer.ValidatePatterns(out.Excludes); err != nil {
		return Config{}, err
	}

	return out, nil
}

// ShouldCreateRemoteRoot reports the effective create_remote_root value.
func (c Config) ShouldCreateRemoteRoot() bool {
	return c.CreateRemoteRoot == nil || *c.CreateRemoteRoot
}

// Endpoint builds the connection parameters. Call it on a validated Config.
func (c Config) Endpoint() remote.Endpoint {
	return remote.Endpoint{
		Protocol:              remote.Protocol(c.Protocol),
		Host:                  c.Host,
		Port:                  c.Port,
		Username:              c.Username,
		Timeout:               c.TimeoutDuration,
		KeyFile:               c.KeyFile,
		KnownHostsFile:        c.KnownHosts,
		InsecureIgnoreHostKey: c.InsecureIgnoreHostKey,
		Region:                c.S3.Region,
		Profile:               c.S3.Profile,
		EndpointURL:           c.S3.EndpointURL,
	}
}
