package syncer

type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	KindOther     Kind = "other"
)

// ErrKind classifies why an item failed.
type ErrKind string

const (
	ErrNone        ErrKind = ""
	ErrStat        ErrKind = "stat"
	ErrOpen        ErrKind = "open"
	ErrTransfer    ErrKind = "transfer"
	ErrMakeDir     ErrKind = "mkdir"
	ErrUnsupported ErrKind = "unsupported"
	ErrLoop        ErrKind = "loop"
)

type UploadTarget struct {
	LocalPath  string
	RemotePath string
}

// ItemResult is the outcome of the single attempt made for one local entry.
// For directories, the item's own success depends only on the creation
// call; AllChildrenSucceeded reports on everything beneath it. A directory
// that already exists on the remote counts as succeeded with
// DirectoryExisted set, so re-running over a populated remote reports no
// failures. Only a mkdir refused for another reason fails the item.
type ItemResult struct {
	Target  UploadTarget
	Kind    Kind
	Depth   int
	Err     error
	ErrKind ErrKind

	// Files
	Bytes  int64
	SHA256 string

	// Directories
	DirectoryCreated     bool
	DirectoryExisted     bool
	AllChildrenSucceeded bool
}

func (r ItemResult) OK() bool {
	return r.Err == nil
}

// UploadResult aggregates one pass. Attempted and Succeeded count the
// entries directly under the local root; Items lists every visited entry
// in traversal order, nested ones included.
type UploadResult struct {
	Attempted int
	Succeeded int
	Items     []ItemResult
}

// Visited is the number of direct and nested entries visited.
func (r *UploadResult) Visited() int {
	return len(r.Items)
}

// SucceededAll counts every visited item whose own call succeeded.
func (r *UploadResult) SucceededAll() int {
	n := 0
	for _, item := range r.Items {
		if item.OK() {
			n++
		}
	}
	return n
}

func (r *UploadResult) Failures() []ItemResult {
	var failures []ItemResult
	for _, item := range r.Items {
		if !item.OK() {
			failures = append(failures, item)
		}
	}
	return failures
}

// BytesUploaded sums the bytes handed to the remote for successful files.
func (r *UploadResult) BytesUploaded() int64 {
	var n int64
	for _, item := range r.Items {
		if item.Kind == KindFile && item.OK() {
			n += item.Bytes
		}
	}
	return n
}
