package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T, maxSize int) *Broker {
	t.Helper()
	return New(Options{MaxSize: maxSize})
}

func TestBroker_PublishAssignsMonotonicSequence(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, 0)

	seq1, err := b.Publish(NewMessage("p1", "file", "file1.go"))
	require.NoError(t, err)
	seq2, err := b.Publish(NewMessage("p1", "file", "file2.go"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), seq1)
	assert.Equal(t, uint64(2), seq2)
	assert.Equal(t, 2, b.Size())
	assert.Equal(t, uint64(3), b.HeadSequence())
}

func TestBroker_QueueFull(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, 2)

	_, err := b.Publish(NewMessage("p1", "file", "f1"))
	require.NoError(t, err)
	_, err = b.Publish(NewMessage("p1", "file", "f2"))
	require.NoError(t, err)

	_, err = b.Publish(NewMessage("p1", "file", "f3"))
	require.Error(t, err)
	var qf *QueueFullError
	require.ErrorAs(t, err, &qf)
	assert.Equal(t, 2, qf.MaxSize)
}

func TestBroker_ConsumerIndependentPositions(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, 0)

	c1 := b.RegisterConsumer()
	c2 := b.RegisterConsumer()

	_, err := b.Publish(NewMessage("p1", "file", "f1"))
	require.NoError(t, err)
	_, err = b.Publish(NewMessage("p1", "file", "f2"))
	require.NoError(t, err)

	msg, err := b.ReadNext(c1)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "f1", msg.Payload)

	msg, err = b.ReadNext(c2)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "f1", msg.Payload)

	msg, err = b.ReadNext(c1)
	require.NoError(t, err)
	assert.Equal(t, "f2", msg.Payload)

	msg, err = b.ReadNext(c2)
	require.NoError(t, err)
	assert.Equal(t, "f2", msg.Payload)

	msg, err = b.ReadNext(c1)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestBroker_ConsumerRegisteredAfterPublishSeesNothingPrior(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, 0)

	_, err := b.Publish(NewMessage("p1", "file", "f1"))
	require.NoError(t, err)
	_, err = b.Publish(NewMessage("p1", "file", "f2"))
	require.NoError(t, err)

	c1 := b.RegisterConsumer()
	pos, ok := b.ConsumerPosition(c1)
	require.True(t, ok)
	assert.Equal(t, uint64(3), pos)

	msg, err := b.ReadNext(c1)
	require.NoError(t, err)
	assert.Nil(t, msg)

	_, err = b.Publish(NewMessage("p1", "file", "f3"))
	require.NoError(t, err)

	msg, err = b.ReadNext(c1)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "f3", msg.Payload)
}

func TestBroker_ReadFromUnknownConsumer(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, 0)

	_, err := b.ReadNext("does-not-exist")
	assert.ErrorIs(t, err, ErrConsumerNotFound)
}

func TestBroker_CollectGarbageNoConsumers(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, 0)
	_, err := b.Publish(NewMessage("p1", "file", "f1"))
	require.NoError(t, err)

	removed := b.CollectGarbage()
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, b.Size())
}

func TestBroker_CollectGarbageRemovesFullyReadMessages(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, 0)

	c1 := b.RegisterConsumer()
	c2 := b.RegisterConsumer()

	for i := 0; i < 3; i++ {
		_, err := b.Publish(NewMessage("p1", "file", "f"))
		require.NoError(t, err)
	}

	// c1 reads everything, c2 reads nothing: min consumer sequence is
	// still behind all three messages.
	for i := 0; i < 3; i++ {
		_, err := b.ReadNext(c1)
		require.NoError(t, err)
	}

	removed := b.CollectGarbage()
	assert.Equal(t, 0, removed)

	_, err := b.ReadNext(c2)
	require.NoError(t, err)
	_, err = b.ReadNext(c2)
	require.NoError(t, err)
	_, err = b.ReadNext(c2)
	require.NoError(t, err)

	removed = b.CollectGarbage()
	assert.Equal(t, 3, removed)
	assert.Equal(t, 0, b.Size())
}

func TestBroker_UnregisterConsumerIdempotent(t *testing.T) {
	t.Parallel()
	b := newTestBroker(t, 0)
	c1 := b.RegisterConsumer()
	b.UnregisterConsumer(c1)
	assert.NotPanics(t, func() { b.UnregisterConsumer(c1) })

	_, ok := b.ConsumerPosition(c1)
	assert.False(t, ok)
}

func TestBroker_MemoryPressureTriggersReclamation(t *testing.T) {
	t.Parallel()
	b := New(Options{MaxSize: 1000, MemoryThresholdBytes: 1})

	c1 := b.RegisterConsumer()
	_, err := b.Publish(NewMessage("p1", "file", "f1"))
	require.NoError(t, err)
	_, err = b.ReadNext(c1)
	require.NoError(t, err)

	// The next publish should detect pressure (threshold=1 byte, always
	// exceeded) and opportunistically reclaim the already-read message.
	_, err = b.Publish(NewMessage("p1", "file", "f2"))
	require.NoError(t, err)

	assert.Equal(t, 1, b.Size())
}
