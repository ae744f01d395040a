package scanner

import (
	"context"
	"testing"

	fixtures "github.com/go-git/go-git-fixtures/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repostats/repostats/internal/queue"
	"github.com/repostats/repostats/internal/revision"
	"github.com/repostats/repostats/internal/scanevents"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	broker := queue.New(queue.Options{MaxSize: 10000})
	return NewManager(broker, nil, nil, nil)
}

func localFixturePath(t *testing.T) string {
	t.Helper()
	f := fixtures.Basic().One()
	return f.Worktree().Root()
}

func TestManager_AddRepositoryRegistersTask(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	path := localFixturePath(t)

	task, err := m.AddRepository(path, ReqCommits)
	require.NoError(t, err)
	assert.NotEmpty(t, task.scannerID)

	got, ok := m.Task(task.scannerID)
	assert.True(t, ok)
	assert.Same(t, task, got)
}

func TestManager_AddRepositoryRejectsDuplicate(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	path := localFixturePath(t)

	_, err := m.AddRepository(path, ReqCommits)
	require.NoError(t, err)

	_, err = m.AddRepository(path, ReqCommits)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRepository)
}

func TestManager_StartScanningRunsAllTasksConcurrently(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	path := localFixturePath(t)

	_, err := m.AddRepository(path, ReqCommits)
	require.NoError(t, err)

	query := revision.NewDefaultQueryParams()
	query.MaxCommits = 1

	seen := 0
	results := m.StartScanning(context.Background(), query, func(scannerID string, ev scanevents.Event) error {
		seen++
		return nil
	})

	require.Len(t, results, 1)
	for _, err := range results {
		assert.NoError(t, err)
	}
	assert.Greater(t, seen, 0)
}
