package checkout

import "github.com/pkg/errors"

const (
	ErrMsgCreateCheckoutDir = "failed to create checkout directory %s"
	ErrMsgCleanupCheckout   = "failed to clean up checkout directory %s"
	ErrMsgExtractFailed     = "failed to extract files into checkout directory %s"
)

var (
	// ErrDirectoryExists is returned by CreateCheckoutDir when the target
	// already exists and force_overwrite is not set.
	ErrDirectoryExists = errors.New("checkout directory already exists")

	// ErrRecordNotFound is returned by Cleanup for an unknown id.
	ErrRecordNotFound = errors.New("checkout record not found")
)

// Error wraps a filesystem failure encountered by the checkout manager.
type Error struct {
	Op    string
	Path  string
	Cause error
}

func (e *Error) Error() string {
	return errors.Wrapf(e.Cause, "checkout: %s %s", e.Op, e.Path).Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}
