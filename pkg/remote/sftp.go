package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultDialTimeout = 30 * time.Second

// SFTPSession is a Session over SSH. SFTP has no server-side working
// directory, so the session tracks one itself.
type SFTPSession struct {
	client *sftp.Client
	conn   io.Closer
	cwd    string
}

// DialSFTP connects over SSH and starts the SFTP subsystem. When the
// endpoint names a key file it is used first; the password is then tried
// as the key passphrase and as a login password.
func DialSFTP(ctx context.Context, ep Endpoint, password string) (Session, error) {
	auth, err := sshAuthMethods(ep, password)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := sshHostKeyCallback(ep)
	if err != nil {
		return nil, err
	}

	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	config := &ssh.ClientConfig{
		User:            ep.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	dialer := net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("start sftp subsystem: %w", err)
	}

	session, err := NewSFTPSession(sftpClient, sshClient)
	if err != nil {
		sftpClient.Close()
		sshClient.Close()
		return nil, err
	}
	return session, nil
}

// NewSFTPSession wraps an existing client. conn, if non-nil, is closed
// after the client on Close.
func NewSFTPSession(client *sftp.Client, conn io.Closer) (*SFTPSession, error) {
	wd, err := client.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return &SFTPSession{client: client, conn: conn, cwd: wd}, nil
}

func (s *SFTPSession) Getwd(ctx context.Context) (string, error) {
	return s.cwd, nil
}

func (s *SFTPSession) ChangeDir(ctx context.Context, dir string) error {
	p := s.resolve(dir)
	info, err := s.client.Stat(p)
	if err != nil {
		return fmt.Errorf("change directory %s: %w", p, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("change directory %s: not a directory", p)
	}
	s.cwd = p
	return nil
}

func (s *SFTPSession) MakeDir(ctx context.Context, dir string) error {
	p := s.resolve(dir)
	err := s.client.Mkdir(p)
	if err == nil {
		return nil
	}
	// Servers disagree on the status code for an existing directory.
	if info, statErr := s.client.Stat(p); statErr == nil && info.IsDir() {
		return fmt.Errorf("make directory %s: %w", p, fs.ErrExist)
	}
	return fmt.Errorf("make directory %s: %w", p, err)
}

func (s *SFTPSession) List(ctx context.Context, dir string) ([]string, error) {
	p := s.resolve(dir)
	infos, err := s.client.ReadDir(p)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func (s *SFTPSession) Store(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	p := s.resolve(remotePath)
	f, err := s.client.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", p, err)
	}

	_, copyErr := f.ReadFrom(r)
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("write remote file %s: %w", p, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close remote file %s: %w", p, closeErr)
	}
	return nil
}

func (s *SFTPSession) Close() error {
	err := s.client.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *SFTPSession) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

func sshAuthMethods(ep Endpoint, password string) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if ep.KeyFile != "" {
		key, err := os.ReadFile(ep.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) && password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(password))
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if password != "" {
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, errors.New("no ssh credentials: set a key file or a password reference")
	}
	return methods, nil
}

func sshHostKeyCallback(ep Endpoint) (ssh.HostKeyCallback, error) {
	if ep.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	file := ep.KnownHostsFile
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}

	callback, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", file, err)
	}
	return callback, nil
}
