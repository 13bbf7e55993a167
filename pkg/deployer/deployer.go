package deployer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/yuya-takeyama/site-publish/internal/config"
	"github.com/yuya-takeyama/site-publish/pkg/logger"
	"github.com/yuya-takeyama/site-publish/pkg/remote"
	"github.com/yuya-takeyama/site-publish/pkg/syncer"
)

type Synchronizer interface {
	Sync(ctx context.Context, localRoot, remoteRoot string, session remote.Session) (*syncer.UploadResult, error)
}

type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Deployer runs one deployment: connect, enter the remote root, upload the
// local tree and check that the landing page arrived.
type Deployer struct {
	Config  config.Config
	Dialer  remote.DialFunc
	Secrets SecretResolver
	Syncer  Synchronizer
	Logger  logger.Logger
	DryRun  bool
}

type Report struct {
	Endpoint         string
	Protocol         string
	Host             string
	LocalRoot        string
	RemoteRoot       string
	DryRun           bool
	StartDir         string
	FinalDir         string
	Before           []string
	After            []string
	LandingPage      string
	LandingPageFound bool
	Result           *syncer.UploadResult
	Duration         time.Duration
}

// Run performs the deployment. The returned report is never nil and holds
// whatever was learned before a fatal error. The error is nil, or one of
// *ConnectionError, *NavigationError, *LocalRootError or a secret
// resolution error. Per-item upload failures are in Report.Result only.
func (d *Deployer) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	cfg := d.Config
	ep := cfg.Endpoint()
	log := d.logger()

	report := &Report{
		Endpoint:    ep.String(),
		Protocol:    string(ep.Protocol),
		Host:        ep.Host,
		LocalRoot:   cfg.LocalRoot,
		RemoteRoot:  cfg.RemoteRoot,
		DryRun:      d.DryRun,
		LandingPage: cfg.LandingPage,
	}
	defer func() { report.Duration = time.Since(start) }()

	password, err := d.resolvePassword(ctx)
	if err != nil {
		return report, err
	}

	if ep.Protocol == remote.ProtocolFTP {
		log.Warn("plain ftp sends the password and files unencrypted; prefer sftp or ftps")
	}
	log.Info(fmt.Sprintf("connecting to %s", ep))
	session, err := d.Dialer(ctx, ep, password)
	if err != nil {
		return report, &ConnectionError{Endpoint: ep.String(), Err: err}
	}
	if d.DryRun {
		session = remote.NewDryRun(session, log)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn(fmt.Sprintf("close session: %v", err))
		}
	}()

	if wd, err := session.Getwd(ctx); err == nil {
		report.StartDir = wd
		log.Debug(fmt.Sprintf("initial remote directory: %s", wd))
	}

	pending, err := d.navigate(ctx, session, cfg.RemoteRoot, cfg.ShouldCreateRemoteRoot())
	if err != nil {
		return report, err
	}

	// In a dry run a missing remote root is never created, so paths are
	// reported relative to the current directory and nothing is listed.
	syncRoot := "."
	if pending {
		syncRoot = cfg.RemoteRoot
	} else {
		if wd, err := session.Getwd(ctx); err == nil {
			report.FinalDir = wd
			log.Debug(fmt.Sprintf("remote directory: %s", wd))
		}
		report.Before = d.list(ctx, session, "before upload")
	}

	result, err := d.Syncer.Sync(ctx, cfg.LocalRoot, syncRoot, session)
	if err != nil {
		return report, &LocalRootError{Path: cfg.LocalRoot, Err: err}
	}
	report.Result = result

	log.Info(fmt.Sprintf("uploaded %d of %d entries (%d items visited, %d failed, %s) in %s",
		result.Succeeded, result.Attempted, result.Visited(), len(result.Failures()),
		logger.FormatBytes(result.BytesUploaded()), time.Since(start).Round(time.Millisecond)))
	for _, item := range result.Failures() {
		log.Warn(fmt.Sprintf("not uploaded: %s (%s): %v", item.Target.LocalPath, item.ErrKind, item.Err))
	}

	if pending {
		return report, nil
	}

	report.After = d.list(ctx, session, "after upload")
	if report.After != nil {
		if slices.Contains(report.After, cfg.LandingPage) {
			report.LandingPageFound = true
			log.Info(fmt.Sprintf("OK: %s is on the remote", cfg.LandingPage))
		} else {
			log.Warn(fmt.Sprintf("%s not found in the remote listing", cfg.LandingPage))
		}
	}

	return report, nil
}

func (d *Deployer) logger() logger.Logger {
	if d.Logger == nil {
		return &logger.NullLogger{}
	}
	return d.Logger
}

func (d *Deployer) resolvePassword(ctx context.Context) (string, error) {
	ref := d.Config.PasswordFrom
	if ref == "" {
		return "", nil
	}
	if d.Secrets == nil {
		return "", errors.New("password_from is set but no secret provider is configured")
	}
	return d.Secrets.Resolve(ctx, ref)
}

// navigate enters dir, creating it once when allowed. It reports true when
// the directory is missing and creation was skipped because of a dry run.
func (d *Deployer) navigate(ctx context.Context, session remote.Session, dir string, create bool) (bool, error) {
	log := d.logger()

	err := session.ChangeDir(ctx, dir)
	if err == nil {
		return false, nil
	}
	if !create {
		return false, &NavigationError{Dir: dir, Err: err}
	}

	log.Info(fmt.Sprintf("remote root %s not found, creating it", dir))
	if mkErr := session.MakeDir(ctx, dir); mkErr != nil {
		log.Error("mkdir", dir, mkErr)
	}
	if d.DryRun {
		return true, nil
	}

	if err := session.ChangeDir(ctx, dir); err != nil {
		return false, &NavigationError{Dir: dir, Err: err}
	}
	return false, nil
}

// list returns the names in the current directory. Failures are logged and
// yield nil.
func (d *Deployer) list(ctx context.Context, session remote.Session, when string) []string {
	log := d.logger()

	names, err := session.List(ctx, ".")
	if err != nil {
		log.Warn(fmt.Sprintf("list remote directory %s: %v", when, err))
		return nil
	}
	if names == nil {
		names = []string{}
	}
	log.Debug(fmt.Sprintf("remote directory %s: %v", when, names))
	return names
}
