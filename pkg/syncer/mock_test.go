package syncer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// mockSession is an in-memory remote rooted at "/".
type mockSession struct {
	cwd      string
	dirs     map[string]bool
	files    map[string]string
	mkdirErr map[string]error
	storeErr map[string]error
	mkdirs   []string
	stores   []string
	closed   bool
}

func newMockSession() *mockSession {
	return &mockSession{
		cwd:      "/",
		dirs:     map[string]bool{"/": true},
		files:    map[string]string{},
		mkdirErr: map[string]error{},
		storeErr: map[string]error{},
	}
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
	if !m.dirs[p] {
		return fmt.Errorf("cd %s: %w", p, fs.ErrNotExist)
	}
	m.cwd = p
	return nil
}

func (m *mockSession) MakeDir(ctx context.Context, dir string) error {
	p := m.resolve(dir)
	m.mkdirs = append(m.mkdirs, p)
	if err, ok := m.mkdirErr[p]; ok {
		return err
	}
	if m.dirs[p] {
		return fmt.Errorf("mkdir %s: %w", p, fs.ErrExist)
	}
	if !m.dirs[path.Dir(p)] {
		return fmt.Errorf("mkdir %s: %w", p, fs.ErrNotExist)
	}
	m.dirs[p] = true
	return nil
}

func (m *mockSession) List(ctx context.Context, dir string) ([]string, error) {
	p := m.resolve(dir)
	if !m.dirs[p] {
		return nil, fmt.Errorf("list %s: %w", p, fs.ErrNotExist)
	}
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
	if err, ok := m.storeErr[p]; ok {
		return err
	}
	if !m.dirs[path.Dir(p)] {
		return fmt.Errorf("store %s: %w", p, fs.ErrNotExist)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, r); err != nil {
		return err
	}
	m.files[p] = b.String()
	return nil
}

func (m *mockSession) Close() error {
	m.closed = true
	return nil
}
