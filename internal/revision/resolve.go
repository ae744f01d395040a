// Package revision implements revision resolution and the commit query
// filter model: hash/branch/tag/HEAD/~N/^N resolution via go-git, plus
// date/author-glob/path-glob/extension/max-commits/merge-policy filtering
// applied in a fixed evaluation order.
package revision

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"
)

// Resolve resolves spec — a full or abbreviated hex hash (>=4 chars), a
// branch name, a tag name, "HEAD", or any of those with a trailing ~N/^N
// operator — to a full 40-character commit hash. An empty spec defaults to
// HEAD.
func Resolve(repo *git.Repository, spec string) (string, error) {
	if spec == "" {
		spec = "HEAD"
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(spec))
	if err != nil {
		return "", errors.Wrapf(ErrReferenceNotFound, "%q: %s", spec, err)
	}
	return hash.String(), nil
}
