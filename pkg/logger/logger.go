package logger

import (
	"fmt"
	"io"
	"os"
)

type Logger interface {
	Upload(localPath, remotePath string)
	MakeDir(remotePath string)
	Info(message string)
	Warn(message string)
	Error(operation, path string, err error)
	Debug(message string)
}

// SyncLogger prints aws-cli style progress lines. Errors and warnings always
// go to Err; everything else is suppressed when IsQuiet is set.
type SyncLogger struct {
	IsDryRun  bool
	IsQuiet   bool
	IsVerbose bool
	Out       io.Writer
	Err       io.Writer
}

func (l *SyncLogger) Upload(localPath, remotePath string) {
	l.printf("%supload: %s to %s\n", l.prefix(), localPath, remotePath)
}

func (l *SyncLogger) MakeDir(remotePath string) {
	l.printf("%smkdir: %s\n", l.prefix(), remotePath)
}

func (l *SyncLogger) Info(message string) {
	l.printf("%s\n", message)
}

func (l *SyncLogger) Warn(message string) {
	fmt.Fprintf(l.errWriter(), "warning: %s\n", message)
}

func (l *SyncLogger) Error(operation, path string, err error) {
	fmt.Fprintf(l.errWriter(), "%s failed: %s: %v\n", operation, path, err)
}

func (l *SyncLogger) Debug(message string) {
	if l.IsVerbose && !l.IsQuiet {
		l.printf("debug: %s\n", message)
	}
}

func (l *SyncLogger) printf(format string, args ...any) {
	if l.IsQuiet {
		return
	}
	fmt.Fprintf(l.outWriter(), format, args...)
}

func (l *SyncLogger) prefix() string {
	if l.IsDryRun {
		return "(dryrun) "
	}
	return ""
}

func (l *SyncLogger) outWriter() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

func (l *SyncLogger) errWriter() io.Writer {
	if l.Err != nil {
		return l.Err
	}
	return os.Stderr
}

type NullLogger struct{}

func (l *NullLogger) Upload(localPath, remotePath string) {}

func (l *NullLogger) MakeDir(remotePath string) {}

func (l *NullLogger) Info(message string) {}

func (l *NullLogger) Warn(message string) {}

func (l *NullLogger) Error(operation, path string, err error) {}

func (l *NullLogger) Debug(message string) {}
