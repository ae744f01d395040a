package controller

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockController is the Go translation of the original test suite's
// MockController: a Controller whose two operations record that they were
// called and can be configured to fail.
type mockController struct {
	mu          sync.Mutex
	stopCalled  bool
	awaitCalled bool
	shouldFail  bool
	failMessage string
}

func newMockController() *mockController { return &mockController{} }

func failingMockController(message string) *mockController {
	return &mockController{shouldFail: true, failMessage: message}
}

func (m *mockController) GracefulSystemStop(ctx context.Context) error {
	m.mu.Lock()
	m.stopCalled = true
	m.mu.Unlock()

	if m.shouldFail {
		return &CoordinationFailedError{Operation: "graceful_stop", Reason: m.failMessage}
	}
	return nil
}

func (m *mockController) AwaitSystemCompletionWithShutdown(ctx context.Context, shutdown <-chan struct{}) error {
	m.mu.Lock()
	m.awaitCalled = true
	m.mu.Unlock()

	if m.shouldFail {
		return &CoordinationFailedError{Operation: "await_completion", Reason: m.failMessage}
	}
	return nil
}

func (m *mockController) wasStopCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalled
}

func (m *mockController) wasAwaitCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.awaitCalled
}

func TestController_GracefulStopSuccess(t *testing.T) {
	t.Parallel()
	c := newMockController()
	err := c.GracefulSystemStop(context.Background())
	require.NoError(t, err)
	assert.True(t, c.wasStopCalled())
}

func TestController_GracefulStopFailure(t *testing.T) {
	t.Parallel()
	c := failingMockController("test failure")
	err := c.GracefulSystemStop(context.Background())
	require.Error(t, err)

	var coordErr *CoordinationFailedError
	require.ErrorAs(t, err, &coordErr)
	assert.Equal(t, "graceful_stop", coordErr.Operation)
	assert.Equal(t, "test failure", coordErr.Reason)
	assert.True(t, c.wasStopCalled())
}

func TestController_AwaitCompletionSuccess(t *testing.T) {
	t.Parallel()
	c := newMockController()
	b := NewBroadcaster()

	err := c.AwaitSystemCompletionWithShutdown(context.Background(), b.Subscribe())
	require.NoError(t, err)
	assert.True(t, c.wasAwaitCalled())
}

func TestController_AwaitCompletionFailure(t *testing.T) {
	t.Parallel()
	c := failingMockController("completion timeout")
	b := NewBroadcaster()

	err := c.AwaitSystemCompletionWithShutdown(context.Background(), b.Subscribe())
	require.Error(t, err)

	var coordErr *CoordinationFailedError
	require.ErrorAs(t, err, &coordErr)
	assert.Equal(t, "await_completion", coordErr.Operation)
	assert.Equal(t, "completion timeout", coordErr.Reason)
	assert.True(t, c.wasAwaitCalled())
}

func TestController_UsableAsInterfaceValue(t *testing.T) {
	t.Parallel()
	var c Controller = newMockController()

	require.NoError(t, c.GracefulSystemStop(context.Background()))

	b := NewBroadcaster()
	require.NoError(t, c.AwaitSystemCompletionWithShutdown(context.Background(), b.Subscribe()))
}

func TestController_MultipleControllersPartialFailure(t *testing.T) {
	t.Parallel()
	controllers := []Controller{
		newMockController(),
		newMockController(),
		failingMockController("controller 3 failed"),
	}

	var results []error
	for _, c := range controllers {
		results = append(results, c.GracefulSystemStop(context.Background()))
	}

	assert.NoError(t, results[0])
	assert.NoError(t, results[1])
	assert.Error(t, results[2])
}

func TestController_ShutdownSignalDeliveredToLateSubscriber(t *testing.T) {
	t.Parallel()
	b := NewBroadcaster()

	b.Fire()
	shutdown := b.Subscribe() // subscribed after Fire — still sees it

	select {
	case <-shutdown:
	default:
		t.Fatal("late subscriber should still observe an already-fired broadcast")
	}
	assert.True(t, b.Fired())
}

func TestController_FireIsIdempotent(t *testing.T) {
	t.Parallel()
	b := NewBroadcaster()
	assert.NotPanics(t, func() {
		b.Fire()
		b.Fire()
	})
}

func TestRegistry_DiscoverOmitsFailedFactories(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	Register("ok-controller", func(ctx context.Context) (Controller, error) {
		return newMockController(), nil
	})
	Register("broken-controller", func(ctx context.Context) (Controller, error) {
		return nil, errors.New("factory exploded")
	})

	discovered := Discover(context.Background(), nil)
	require.Len(t, discovered, 1)
}

func TestRegistry_RegisteredReturnsSnapshotInOrder(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	factory := func(ctx context.Context) (Controller, error) { return newMockController(), nil }
	Register("first", factory)
	Register("second", factory)

	entries := Registered()
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Name)
	assert.Equal(t, "second", entries[1].Name)
}

func TestRegistry_DiscoverWithNoControllersReturnsEmpty(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	discovered := Discover(context.Background(), nil)
	assert.Empty(t, discovered)
}
