package remote

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/yuya-takeyama/site-publish/pkg/logger"
)

// DryRunSession forwards read-only calls and only logs the mutating
// ones. Store still drains the reader so local read errors surface the
// same way they would in a real run.
type DryRunSession struct {
	inner  Session
	logger logger.Logger
}

func NewDryRun(inner Session, log logger.Logger) *DryRunSession {
	return &DryRunSession{inner: inner, logger: log}
}

func (s *DryRunSession) Getwd(ctx context.Context) (string, error) {
	return s.inner.Getwd(ctx)
}

func (s *DryRunSession) ChangeDir(ctx context.Context, dir string) error {
	return s.inner.ChangeDir(ctx, dir)
}

func (s *DryRunSession) MakeDir(ctx context.Context, dir string) error {
	s.logger.Debug(fmt.Sprintf("skip mkdir %s", dir))
	return nil
}

func (s *DryRunSession) List(ctx context.Context, dir string) ([]string, error) {
	return s.inner.List(ctx, dir)
}

func (s *DryRunSession) Store(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return fmt.Errorf("read %s: %w", path.Base(remotePath), err)
	}
	s.logger.Debug(fmt.Sprintf("skip store %s (%d bytes)", remotePath, size))
	return nil
}

func (s *DryRunSession) Close() error {
	return s.inner.Close()
}
