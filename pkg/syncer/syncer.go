package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/yuya-takeyama/site-publish/internal/checksum"
	"github.com/yuya-takeyama/site-publish/pkg/logger"
	"github.com/yuya-takeyama/site-publish/pkg/remote"
)

// ErrInvalidLocalRoot is returned when the local root is missing, not a
// directory, or cannot be listed.
var ErrInvalidLocalRoot = errors.New("invalid local root")

type Options struct {
	Excludes []string
	Logger   logger.Logger
}

// Syncer reproduces a local directory tree on a remote session. It never
// skips, retries or deletes: every run is a full overwrite pass.
type Syncer struct {
	logger   logger.Logger
	excludes []string
	openFile func(name string) (io.ReadCloser, error)
}

func New(opts Options) (*Syncer, error) {
	if err := ValidatePatterns(opts.Excludes); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = &logger.NullLogger{}
	}

	return &Syncer{
		logger:   log,
		excludes: opts.Excludes,
		openFile: func(name string) (io.ReadCloser, error) { return os.Open(name) },
	}, nil
}

// Sync walks localRoot depth-first and mirrors it under remoteRoot on
// session. Per-item failures are logged and recorded in the result; the
// returned error is non-nil only when localRoot itself cannot be used.
// The session is not closed.
func (s *Syncer) Sync(ctx context.Context, localRoot, remoteRoot string, session remote.Session) (*UploadResult, error) {
	info, err := os.Stat(localRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocalRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidLocalRoot, localRoot)
	}

	entries, err := os.ReadDir(localRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocalRoot, err)
	}

	w := &walk{
		Syncer:    s,
		session:   session,
		result:    &UploadResult{},
		ancestors: map[string]bool{},
	}
	if real, err := filepath.EvalSymlinks(localRoot); err == nil {
		w.ancestors[real] = true
	}

	for _, entry := range entries {
		item, visited := w.visit(ctx, localRoot, remoteRoot, ".", entry.Name(), 0)
		if !visited {
			continue
		}
		w.result.Attempted++
		if item.OK() {
			w.result.Succeeded++
		}
	}

	return w.result, nil
}

// walk holds the state of one Sync call.
type walk struct {
	*Syncer
	session remote.Session
	result  *UploadResult
	// ancestors holds the resolved paths of the directories currently being
	// descended, so only a link back up the chain counts as a loop.
	ancestors map[string]bool
}

// visit handles one entry. It reports false when the entry was excluded.
func (w *walk) visit(ctx context.Context, localDir, remoteDir, relDir, name string, depth int) (ItemResult, bool) {
	rel := path.Join(relDir, name)
	if isExcluded(rel, w.excludes) {
		w.logger.Debug(fmt.Sprintf("exclude: %s", rel))
		return ItemResult{}, false
	}

	target := UploadTarget{
		LocalPath:  filepath.Join(localDir, name),
		RemotePath: path.Join(remoteDir, name),
	}

	// Stat follows symlinks, so a link to a file is uploaded as that file.
	info, err := os.Stat(target.LocalPath)
	switch {
	case err != nil:
		w.logger.Error("stat", target.LocalPath, err)
		return w.record(ItemResult{Target: target, Kind: KindOther, Depth: depth, Err: err, ErrKind: ErrStat}), true
	case info.Mode().IsRegular():
		return w.record(w.uploadFile(ctx, target, info, depth)), true
	case info.IsDir():
		return w.uploadDir(ctx, target, rel, depth), true
	default:
		err := fmt.Errorf("unsupported file type %s", info.Mode().Type())
		w.logger.Error("upload", target.LocalPath, err)
		return w.record(ItemResult{Target: target, Kind: KindOther, Depth: depth, Err: err, ErrKind: ErrUnsupported}), true
	}
}

func (w *walk) record(item ItemResult) ItemResult {
	w.result.Items = append(w.result.Items, item)
	return item
}

func (w *walk) uploadFile(ctx context.Context, target UploadTarget, info fs.FileInfo, depth int) ItemResult {
	item := ItemResult{Target: target, Kind: KindFile, Depth: depth}

	// Open before touching the remote so an unreadable file leaves no
	// empty object behind.
	f, err := w.openFile(target.LocalPath)
	if err != nil {
		w.logger.Error("upload", target.LocalPath, err)
		item.Err, item.ErrKind = err, ErrOpen
		return item
	}
	defer f.Close()

	w.logger.Upload(target.LocalPath, target.RemotePath)

	cr := checksum.NewReader(f)
	if err := w.session.Store(ctx, target.RemotePath, cr, info.Size()); err != nil {
		w.logger.Error("upload", target.LocalPath, err)
		item.Err, item.ErrKind = err, ErrTransfer
		return item
	}

	item.Bytes = cr.BytesRead()
	if sum, err := cr.Checksum(); err == nil {
		item.SHA256 = sum
	}
	return item
}

func (w *walk) uploadDir(ctx context.Context, target UploadTarget, rel string, depth int) ItemResult {
	item := ItemResult{Target: target, Kind: KindDirectory, Depth: depth}

	if real, err := filepath.EvalSymlinks(target.LocalPath); err == nil {
		if w.ancestors[real] {
			err := fmt.Errorf("symlink loop: %s is an ancestor of itself", real)
			w.logger.Error("upload", target.LocalPath, err)
			item.Err, item.ErrKind = err, ErrLoop
			return w.record(item)
		}
		w.ancestors[real] = true
		defer delete(w.ancestors, real)
	}

	w.logger.MakeDir(target.RemotePath)
	err := w.session.MakeDir(ctx, target.RemotePath)
	switch {
	case err == nil:
		item.DirectoryCreated = true
	case errors.Is(err, fs.ErrExist):
		item.DirectoryExisted = true
		w.logger.Info(fmt.Sprintf("directory exists: %s", target.RemotePath))
	default:
		// Keep going: the children get their own attempt and their own
		// error if the directory really is unusable.
		w.logger.Error("mkdir", target.RemotePath, err)
		item.Err, item.ErrKind = err, ErrMakeDir
	}

	idx := len(w.result.Items)
	w.record(item)

	entries, err := os.ReadDir(target.LocalPath)
	allOK := true
	if err != nil {
		w.logger.Error("list", target.LocalPath, err)
		allOK = false
	}

	for _, entry := range entries {
		child, visited := w.visit(ctx, target.LocalPath, target.RemotePath, rel, entry.Name(), depth+1)
		if !visited {
			continue
		}
		if !child.OK() || (child.Kind == KindDirectory && !child.AllChildrenSucceeded) {
			allOK = false
		}
	}

	w.result.Items[idx].AllChildrenSucceeded = allOK
	return w.result.Items[idx]
}
