package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"io/fs"
	"net"
	"path"
	"strconv"

	"github.com/jlaffaye/ftp"
)

// ftpConn is the subset of *ftp.ServerConn the session needs.
type ftpConn interface {
	CurrentDir() (string, error)
	ChangeDir(path string) error
	MakeDir(path string) error
	NameList(path string) ([]string, error)
	Stor(path string, r io.Reader) error
	Quit() error
}

// FTPSession is a Session over FTP. With TLS enabled it negotiates
// explicit FTPS (AUTH TLS) before logging in.
type FTPSession struct {
	conn ftpConn
	// lost is set once the working directory could not be restored after
	// a probe; relative paths can no longer be trusted.
	lost error
}

func DialFTP(ctx context.Context, ep Endpoint, password string, useTLS bool) (Session, error) {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
	}
	if useTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: ep.Host,
			MinVersion: tls.VersionTLS12,
		}))
	}

	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if err := conn.Login(ep.Username, password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("login as %s: %w", ep.Username, err)
	}

	return NewFTPSession(conn), nil
}

func NewFTPSession(conn ftpConn) *FTPSession {
	return &FTPSession{conn: conn}
}

func (s *FTPSession) Getwd(ctx context.Context) (string, error) {
	dir, err := s.conn.CurrentDir()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return dir, nil
}

func (s *FTPSession) ChangeDir(ctx context.Context, dir string) error {
	if s.lost != nil {
		return s.lost
	}
	if err := s.conn.ChangeDir(dir); err != nil {
		return fmt.Errorf("change directory %s: %w", dir, err)
	}
	return nil
}

func (s *FTPSession) MakeDir(ctx context.Context, dir string) error {
	if s.lost != nil {
		return s.lost
	}
	err := s.conn.MakeDir(dir)
	if err == nil {
		return nil
	}
	// FTP answers 550 for both "exists" and "denied"; probe with CWD.
	exists, probeErr := s.isDir(dir)
	if probeErr != nil {
		return fmt.Errorf("make directory %s: %w", dir, probeErr)
	}
	if exists {
		return fmt.Errorf("make directory %s: %w", dir, fs.ErrExist)
	}
	return fmt.Errorf("make directory %s: %w", dir, err)
}

func (s *FTPSession) List(ctx context.Context, dir string) ([]string, error) {
	if s.lost != nil {
		return nil, s.lost
	}
	entries, err := s.conn.NameList(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	// Some servers answer NLST with full paths.
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := path.Base(entry)
		if name == "." || name == ".." || name == "/" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *FTPSession) Store(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	if s.lost != nil {
		return s.lost
	}
	if err := s.conn.Stor(remotePath, r); err != nil {
		return fmt.Errorf("store %s: %w", remotePath, err)
	}
	return nil
}

func (s *FTPSession) Close() error {
	return s.conn.Quit()
}

// isDir reports whether dir can be entered, then returns to the previous
// working directory. A failed return leaves the session unusable.
func (s *FTPSession) isDir(dir string) (bool, error) {
	cwd, err := s.conn.CurrentDir()
	if err != nil {
		return false, nil
	}
	if err := s.conn.ChangeDir(dir); err != nil {
		return false, nil
	}
	if err := s.conn.ChangeDir(cwd); err != nil {
		s.lost = fmt.Errorf("ftp session lost its working directory %s: %w", cwd, err)
		return true, s.lost
	}
	return true, nil
}
