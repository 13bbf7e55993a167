package deployer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
)

type mockSession struct {
	cwd        string
	dirs       map[string]bool
	files      map[string]string
	listErr    error
	closeErr   error
	chdirs     []string
	mkdirs     []string
	stores     []string
	closeCalls int
}

func newMockSession(dirs ...string) *mockSession {
	m := &mockSession{
		cwd:   "/home/deploy",
		dirs:  map[string]bool{"/": true, "/home": true, "/home/deploy": true},
		files: map[string]string{},
	}
	for _, d := range dirs {
		m.dirs[d] = true
	}
	return m
}

func (m *mockSession) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(m.cwd, p)
}

func (m *mockSession) Getwd(ctx context.Context) (string, error) {
	return m.cwd, nil
}

func (m *mockSession) ChangeDir(ctx context.Context, dir string) error {
	p := m.resolve(dir)
	m.chdirs = append(m.chdirs, p)
	if !m.dirs[p] {
		return fmt.Errorf("550 %s: %w", p, fs.ErrNotExist)
	}
	m.cwd = p
	return nil
}

func (m *mockSession) MakeDir(ctx context.Context, dir string) error {
	p := m.resolve(dir)
	m.mkdirs = append(m.mkdirs, p)
	if m.dirs[p] {
		return fmt.Errorf("mkdir %s: %w", p, fs.ErrExist)
	}
	m.dirs[p] = true
	return nil
}

func (m *mockSession) List(ctx context.Context, dir string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	p := m.resolve(dir)
	var names []string
	for name := range m.dirs {
		if name != "/" && path.Dir(name) == p {
			names = append(names, path.Base(name))
		}
	}
	for name := range m.files {
		if path.Dir(name) == p {
			names = append(names, path.Base(name))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *mockSession) Store(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	p := m.resolve(remotePath)
	m.stores = append(m.stores, p)
	var b strings.Builder
	if _, err := io.Copy(&b, r); err != nil {
		return err
	}
	m.files[p] = b.String()
	return nil
}

func (m *mockSession) Close() error {
	m.closeCalls++
	return m.closeErr
}

type mockSecrets struct {
	values map[string]string
	err    error
	calls  int
}

func (s *mockSecrets) Resolve(ctx context.Context, ref string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.values[ref], nil
}
