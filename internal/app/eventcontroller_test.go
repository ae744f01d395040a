package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repostats/repostats/internal/controller"
)

// recordingController tracks how many times each operation was invoked and
// can be configured to fail either one, mirroring the original test
// suite's MockController.
type recordingController struct {
	mu         sync.Mutex
	stopCalls  int
	awaitCalls int
	failStop   bool
	failAwait  bool
}

func (c *recordingController) GracefulSystemStop(ctx context.Context) error {
	c.mu.Lock()
	c.stopCalls++
	fail := c.failStop
	c.mu.Unlock()
	if fail {
		return &controller.CoordinationFailedError{Operation: "graceful_stop", Reason: "boom"}
	}
	return nil
}

func (c *recordingController) AwaitSystemCompletionWithShutdown(ctx context.Context, shutdown <-chan struct{}) error {
	c.mu.Lock()
	c.awaitCalls++
	fail := c.failAwait
	c.mu.Unlock()
	if fail {
		return &controller.CoordinationFailedError{Operation: "await_completion", Reason: "boom"}
	}
	return nil
}

func (c *recordingController) stopCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopCalls
}

func (c *recordingController) awaitCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitCalls
}

func registerMock(t *testing.T, name string, c *recordingController) {
	t.Helper()
	controller.Register(name, func(ctx context.Context) (controller.Controller, error) {
		return c, nil
	})
}

func TestGuard_RunsPayloadAndCoordinatesShutdown(t *testing.T) {
	controller.Reset()
	t.Cleanup(controller.Reset)

	c := &recordingController{}
	registerMock(t, "recording", c)

	result, signaled, err := Guard(context.Background(), nil, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.False(t, signaled)
	assert.Equal(t, 1, c.stopCallCount())
	assert.Equal(t, 1, c.awaitCallCount())
}

func TestGuard_PropagatesPayloadError(t *testing.T) {
	controller.Reset()
	t.Cleanup(controller.Reset)

	wantErr := assert.AnError
	result, _, err := Guard(context.Background(), nil, func(ctx context.Context) (string, error) {
		return "", wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, result)
}

func TestGuard_NoControllersCompletesImmediately(t *testing.T) {
	controller.Reset()
	t.Cleanup(controller.Reset)

	result, signaled, err := Guard(context.Background(), nil, func(ctx context.Context) (bool, error) {
		return true, nil
	})

	require.NoError(t, err)
	assert.True(t, result)
	assert.False(t, signaled)
}

func TestGuard_GracefulStopFailureIsNonFatalToPayloadResult(t *testing.T) {
	controller.Reset()
	t.Cleanup(controller.Reset)

	c := &recordingController{failStop: true}
	registerMock(t, "failing-stop", c)

	result, _, err := Guard(context.Background(), nil, func(ctx context.Context) (int, error) {
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, 1, c.stopCallCount())
}

func TestGuard_CompletionFailureIsNonFatalToPayloadResult(t *testing.T) {
	controller.Reset()
	t.Cleanup(controller.Reset)

	c := &recordingController{failAwait: true}
	registerMock(t, "failing-await", c)

	result, _, err := Guard(context.Background(), nil, func(ctx context.Context) (int, error) {
		return 9, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 9, result)
	assert.Equal(t, 1, c.awaitCallCount())
}

func TestGracefulStopAll_AggregatesMultipleFailures(t *testing.T) {
	controllers := []controller.Controller{
		&recordingController{},
		&recordingController{failStop: true},
		&recordingController{failStop: true},
	}

	err := gracefulStopAll(context.Background(), controllers, time.Second)
	require.Error(t, err)

	var coordErr *controller.CoordinationFailedError
	require.ErrorAs(t, err, &coordErr)
	assert.Equal(t, "coordinate_graceful_shutdown", coordErr.Operation)
	assert.Contains(t, coordErr.Reason, "1 succeeded, 2 failed")
}

func TestAwaitCompletionAll_EmptyControllersSucceedsImmediately(t *testing.T) {
	b := controller.NewBroadcaster()
	err := awaitCompletionAll(context.Background(), nil, b, time.Second)
	assert.NoError(t, err)
}

func TestAwaitCompletionAll_ReportsSuccessAndFailureCounts(t *testing.T) {
	b := controller.NewBroadcaster()
	controllers := []controller.Controller{
		&recordingController{},
		&recordingController{failAwait: true},
	}

	err := awaitCompletionAll(context.Background(), controllers, b, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 succeeded, 1 failed")
}

func TestDefaultConfig_MatchesDocumentedBudgets(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}
