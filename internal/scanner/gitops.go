package scanner

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/pkg/errors"

	"github.com/repostats/repostats/internal/scanevents"
)

const shortHashLength = 8

// commitInfo builds a scanevents.CommitInfo from a go-git commit, plus the
// aggregate insertion/deletion counts computed by diffing against the
// commit's first parent (root commits diff against the empty tree).
func commitInfo(commit *object.Commit) (scanevents.CommitInfo, object.Changes, error) {
	hash := commit.Hash.String()
	short := hash
	if len(short) > shortHashLength {
		short = short[:shortHashLength]
	}

	parents := make([]string, 0, commit.NumParents())
	for _, h := range commit.ParentHashes {
		parents = append(parents, h.String())
	}

	changes, err := diffAgainstFirstParent(commit)
	if err != nil {
		return scanevents.CommitInfo{}, nil, errors.Wrapf(err, ErrMsgDiffCommit, hash)
	}

	insertions, deletions := 0, 0
	for _, ch := range changes {
		ins, del, fileErr := changeLineStats(ch)
		if fileErr != nil {
			continue // patch could not be computed; line counts stay at 0 for this file
		}
		insertions += ins
		deletions += del
	}

	info := scanevents.CommitInfo{
		Hash:           hash,
		ShortHash:      short,
		AuthorName:     commit.Author.Name,
		AuthorEmail:    commit.Author.Email,
		CommitterName:  commit.Committer.Name,
		CommitterEmail: commit.Committer.Email,
		Timestamp:      commit.Author.When,
		Message:        commit.Message,
		ParentHashes:   parents,
		Insertions:     insertions,
		Deletions:      deletions,
	}
	return info, changes, nil
}

// diffAgainstFirstParent diffs commit's tree against its first parent's
// tree, or against the empty tree for a root commit. Keeps the full
// object.Changes (not just names) so callers can derive per-file stats.
func diffAgainstFirstParent(commit *object.Commit) (object.Changes, error) {
	commitTree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "read commit tree")
	}

	if commit.NumParents() == 0 {
		changes, err := object.DiffTree(nil, commitTree)
		if err != nil {
			return nil, errors.Wrap(err, "diff root commit against empty tree")
		}
		return changes, nil
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, errors.Wrap(err, "resolve first parent")
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "read parent tree")
	}

	changes, err := parentTree.Diff(commitTree)
	if err != nil {
		return nil, errors.Wrap(err, "diff commit tree against parent")
	}
	return changes, nil
}

// changeLineStats returns the added/removed line counts for a single
// change via its patch stats. Returns an error only when the patch cannot
// be computed; binary files yield zero counts.
func changeLineStats(ch *object.Change) (insertions, deletions int, err error) {
	patch, err := ch.Patch()
	if err != nil {
		return 0, 0, errors.Wrap(err, "compute patch")
	}
	for _, stat := range patch.Stats() {
		insertions += stat.Addition
		deletions += stat.Deletion
	}
	return insertions, deletions, nil
}

// fileChanges converts a diff's object.Changes into scanevents.FileChangeData
// records, classifying each by the kind of merkletrie action it represents.
func fileChanges(changes object.Changes) ([]scanevents.FileChangeData, error) {
	out := make([]scanevents.FileChangeData, 0, len(changes))
	for _, ch := range changes {
		data, err := fileChangeFromChange(ch)
		if err != nil {
			continue // change action could not be determined; the change is skipped
		}
		out = append(out, data)
	}
	return out, nil
}

func fileChangeFromChange(ch *object.Change) (scanevents.FileChangeData, error) {
	action, err := ch.Action()
	if err != nil {
		return scanevents.FileChangeData{}, errors.Wrap(err, "determine change action")
	}

	data := scanevents.FileChangeData{
		OldPath: ch.From.Name,
		NewPath: ch.To.Name,
	}
	if data.NewPath == "" {
		data.NewPath = data.OldPath
	}

	switch action {
	case merkletrie.Insert:
		data.ChangeType = scanevents.ChangeAdded
		data.OldPath = ""
	case merkletrie.Delete:
		data.ChangeType = scanevents.ChangeDeleted
	default:
		if ch.From.Name != "" && ch.To.Name != "" && ch.From.Name != ch.To.Name {
			data.ChangeType = scanevents.ChangeRenamed
		} else {
			data.ChangeType = scanevents.ChangeModified
			data.OldPath = ""
		}
	}

	isBinary, err := changeIsBinary(ch)
	if err == nil {
		data.IsBinary = isBinary
	}

	patch, err := ch.Patch()
	if err == nil {
		for _, stat := range patch.Stats() {
			data.Insertions += stat.Addition
			data.Deletions += stat.Deletion
		}
	}

	if mode, ok := fileModeOf(ch); ok {
		data.FileMode = mode
	}

	return data, nil
}

// changeIsBinary reports whether either side of the change is a binary
// blob, per go-git's own binary heuristic (exposed via object.File.IsBinary).
func changeIsBinary(ch *object.Change) (bool, error) {
	from, to, err := ch.Files()
	if err != nil {
		return false, err
	}
	if to != nil {
		return to.IsBinary()
	}
	if from != nil {
		return from.IsBinary()
	}
	return false, nil
}

func fileModeOf(ch *object.Change) (string, bool) {
	entry := ch.To.TreeEntry
	if entry.Name == "" {
		entry = ch.From.TreeEntry
	}
	if entry.Name == "" {
		return "", false
	}
	return entry.Mode.String(), true
}

// openRepository opens a git repository rooted at path, wrapping go-git's
// PlainOpen error in a RepositoryError so callers can distinguish an open
// failure from other fatal repository errors via errors.As.
func openRepository(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, &RepositoryError{Op: "open", Detail: path, Cause: errors.Wrapf(err, ErrMsgOpenRepository, path)}
	}
	return repo, nil
}

// commitsFrom returns an iterator over commits reachable from start,
// newest first by commit time — the reverse-chronological order used for
// CommitData emission.
func commitsFrom(repo *git.Repository, start plumbing.Hash) (object.CommitIter, error) {
	iter, err := repo.Log(&git.LogOptions{From: start, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, errors.Wrap(err, "create commit log iterator")
	}
	return iter, nil
}
