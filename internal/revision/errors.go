package revision

import "github.com/pkg/errors"

// ErrReferenceNotFound is returned by Resolve when spec does not name a
// known hash, branch, tag, or HEAD.
var ErrReferenceNotFound = errors.New("reference not found")

// ValidationError reports a structurally invalid QueryParams, rejected at
// parse time before any scan begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return errors.Errorf("invalid %s: %s", e.Field, e.Reason).Error()
}
