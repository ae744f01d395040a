package scanner

import (
	"testing"

	fixtures "github.com/go-git/go-git-fixtures/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repostats/repostats/internal/scanevents"
)

const basicHeadHash = "6ecf0ef2c2dffb796033e5a02219af86ec6584e5"

func openFixtureRepo(t *testing.T) *git.Repository {
	t.Helper()
	f := fixtures.Basic().One()
	sto := filesystem.NewStorage(f.DotGit(), cache.NewObjectLRUDefault())
	repo, err := git.Open(sto, nil)
	require.NoError(t, err)
	return repo
}

func TestCommitsFrom_WalksHistoryNewestFirst(t *testing.T) {
	t.Parallel()
	repo := openFixtureRepo(t)
	iter, err := commitsFrom(repo, plumbing.NewHash(basicHeadHash))
	require.NoError(t, err)

	commit, err := iter.Next()
	require.NoError(t, err)
	assert.Equal(t, basicHeadHash, commit.Hash.String())
}

func TestCommitInfo_PopulatesFieldsFromHead(t *testing.T) {
	t.Parallel()
	repo := openFixtureRepo(t)
	commit, err := repo.CommitObject(plumbing.NewHash(basicHeadHash))
	require.NoError(t, err)

	info, _, err := commitInfo(commit)
	require.NoError(t, err)

	assert.Equal(t, basicHeadHash, info.Hash)
	assert.Equal(t, basicHeadHash[:shortHashLength], info.ShortHash)
	assert.NotEmpty(t, info.AuthorName)
	assert.NotEmpty(t, info.Message)
}

func TestDiffAgainstFirstParent_RootCommitDiffsAgainstEmptyTree(t *testing.T) {
	t.Parallel()
	repo := openFixtureRepo(t)
	commit, err := repo.CommitObject(plumbing.NewHash(basicHeadHash))
	require.NoError(t, err)

	// Walk back to the root commit (no parents) to exercise the empty-tree path.
	for commit.NumParents() > 0 {
		commit, err = commit.Parent(0)
		require.NoError(t, err)
	}

	changes, err := diffAgainstFirstParent(commit)
	require.NoError(t, err)
	assert.NotEmpty(t, changes)
}

func TestFileChanges_ClassifiesAddedFiles(t *testing.T) {
	t.Parallel()
	repo := openFixtureRepo(t)
	commit, err := repo.CommitObject(plumbing.NewHash(basicHeadHash))
	require.NoError(t, err)

	for commit.NumParents() > 0 {
		commit, err = commit.Parent(0)
		require.NoError(t, err)
	}

	changes, err := diffAgainstFirstParent(commit)
	require.NoError(t, err)

	data, err := fileChanges(changes)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	for _, d := range data {
		assert.NotEmpty(t, d.NewPath)
		assert.Equal(t, scanevents.ChangeAdded, d.ChangeType)
	}
}

func TestOpenRepository_WrapsErrorForMissingPath(t *testing.T) {
	t.Parallel()
	_, err := openRepository(t.TempDir())
	require.Error(t, err)
}
