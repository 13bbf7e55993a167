package remote

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Session is an authenticated, stateful connection to a remote store.
// Relative paths are resolved against the session's working directory.
// MakeDir returns an error wrapping fs.ErrExist when the directory is
// already there.
type Session interface {
	Getwd(ctx context.Context) (string, error)
	ChangeDir(ctx context.Context, dir string) error
	MakeDir(ctx context.Context, dir string) error
	List(ctx context.Context, dir string) ([]string, error)
	Store(ctx context.Context, remotePath string, r io.Reader, size int64) error
	Close() error
}

type Protocol string

const (
	ProtocolSFTP Protocol = "sftp"
	ProtocolFTPS Protocol = "ftps"
	ProtocolFTP  Protocol = "ftp"
	ProtocolS3   Protocol = "s3"
)

func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProtocolSFTP, nil
	case ProtocolSFTP, ProtocolFTPS, ProtocolFTP, ProtocolS3:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported protocol %q (want sftp, ftps, ftp or s3)", s)
	}
}

// DefaultPort returns the well-known port for p, or 0 when p has none.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolSFTP:
		return 22
	case ProtocolFTP, ProtocolFTPS:
		return 21
	default:
		return 0
	}
}

// Endpoint describes where and how to connect. The password is passed
// separately to Dial so an Endpoint can be logged.
type Endpoint struct {
	Protocol Protocol
	Host     string
	Port     int
	Username string
	Timeout  time.Duration

	// SFTP
	KeyFile               string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool

	// S3. Host is the bucket.
	Region      string
	Profile     string
	EndpointURL string
}

func (e Endpoint) String() string {
	if e.Protocol == ProtocolS3 {
		return fmt.Sprintf("s3://%s", e.Host)
	}
	user := ""
	if e.Username != "" {
		user = e.Username + "@"
	}
	return fmt.Sprintf("%s://%s%s:%d", e.Protocol, user, e.Host, e.Port)
}

// DialFunc opens a session. It exists so callers can substitute a fake.
type DialFunc func(ctx context.Context, ep Endpoint, password string) (Session, error)

// Dial opens and authenticates a session for ep.Protocol.
func Dial(ctx context.Context, ep Endpoint, password string) (Session, error) {
	switch ep.Protocol {
	case ProtocolSFTP, "":
		return DialSFTP(ctx, ep, password)
	case ProtocolFTPS:
		return DialFTP(ctx, ep, password, true)
	case ProtocolFTP:
		return DialFTP(ctx, ep, password, false)
	case ProtocolS3:
		return DialS3(ctx, ep)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", ep.Protocol)
	}
}
