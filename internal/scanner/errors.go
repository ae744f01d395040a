package scanner

import "github.com/pkg/errors"

const (
	ErrMsgOpenRepository     = "failed to open repository %s"
	ErrMsgResolveRevision    = "failed to resolve revision for repository %s"
	ErrMsgTraverseCommits    = "failed to traverse commit history for repository %s"
	ErrMsgDiffCommit         = "failed to diff commit %s"
	ErrMsgPublishScanMessage = "failed to publish scan message"
	ErrMsgExtractCheckout    = "failed to extract commit %s to checkout directory"
	ErrMsgReadFileContent    = "failed to read content of %s at %s"
)

var (
	// ErrDuplicateRepository is returned when a repository specifier
	// canonicalises to an id already registered with the manager.
	ErrDuplicateRepository = errors.New("repository already registered with this scanner id")

	// ErrFileNotFoundAtRevision is the structured "file not found" error
	// file-content reads return when a path doesn't exist at the resolved
	// revision.
	ErrFileNotFoundAtRevision = errors.New("file not found at revision")
)

// RepositoryError wraps a fatal repository-level failure (open, revision
// resolution, ref lookup). A RepositoryError causes a scanner task to
// emit ScanError and terminate without ScanCompleted.
type RepositoryError struct {
	Op     string
	Detail string
	Cause  error
}

func (e *RepositoryError) Error() string {
	return errors.Wrapf(e.Cause, "repository error during %s: %s", e.Op, e.Detail).Error()
}

func (e *RepositoryError) Unwrap() error {
	return e.Cause
}
