package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestTypedConsumer_ReadDecodesPayload(t *testing.T) {
	t.Parallel()
	b := New(Options{})
	pub := NewPublisher(b, "producer-1")

	_, err := pub.Publish("test_payload", testPayload{Name: "a", N: 1})
	require.NoError(t, err)

	c := NewTypedConsumer[testPayload](b)
	defer c.Close()

	got, err := c.Read()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, 1, got.N)

	got, err = c.Read()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTypedConsumer_ReadWithHeaderCarriesMetadata(t *testing.T) {
	t.Parallel()
	b := New(Options{})
	pub := NewPublisher(b, "producer-1")

	_, err := pub.Publish("test_payload", testPayload{Name: "b", N: 2})
	require.NoError(t, err)

	c := NewTypedConsumer[testPayload](b)
	defer c.Close()

	got, err := c.ReadWithHeader()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(1), got.Header.Sequence)
	assert.Equal(t, "producer-1", got.Header.ProducerID)
	assert.Equal(t, "test_payload", got.Header.MessageType)
	assert.Equal(t, "b", got.Content.Name)
}

func TestTypedConsumer_ReadReturnsDeserializationError(t *testing.T) {
	t.Parallel()
	b := New(Options{})
	pub := NewPublisher(b, "producer-1")

	// Publish a payload that is valid JSON but the wrong shape (a string,
	// not an object) so unmarshal into testPayload fails.
	_, err := pub.Publish("test_payload", "not-an-object")
	require.NoError(t, err)

	c := NewTypedConsumer[testPayload](b)
	defer c.Close()

	got, err := c.Read()
	assert.Nil(t, got)
	require.Error(t, err)

	var derr *DeserializationError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, uint64(1), derr.Sequence)
	assert.Equal(t, "test_payload", derr.MessageType)
	assert.Equal(t, "producer-1", derr.ProducerID)
	assert.Contains(t, derr.TargetType, "testPayload")
}

func TestPreview_TruncatesLongPayloads(t *testing.T) {
	t.Parallel()
	short := "short payload"
	assert.Equal(t, short, preview(short))

	long := make([]byte, previewMaxBytes+50)
	for i := range long {
		long[i] = 'a'
	}
	truncated := preview(string(long))
	assert.Less(t, len(truncated), len(long))
	assert.Contains(t, truncated, "…")
}
