package queue

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

const previewMaxBytes = 100

// Header exposes broker metadata alongside a decoded payload.
type Header struct {
	Sequence    uint64
	Timestamp   int64
	ProducerID  string
	MessageType string
}

// WithHeader pairs a decoded payload with its originating message header.
type WithHeader[T any] struct {
	Header  Header
	Content T
}

// TypedConsumer wraps a Broker consumer id with a decode step: reads raw
// broker messages and decodes the JSON payload into T.
type TypedConsumer[T any] struct {
	broker     *Broker
	consumerID string
}

// NewTypedConsumer registers a new consumer on broker and wraps it for
// typed reads.
func NewTypedConsumer[T any](broker *Broker) *TypedConsumer[T] {
	return &TypedConsumer[T]{
		broker:     broker,
		consumerID: broker.RegisterConsumer(),
	}
}

// ConsumerID exposes the underlying broker consumer id for advanced use.
func (c *TypedConsumer[T]) ConsumerID() string {
	return c.consumerID
}

// Close unregisters the underlying consumer.
func (c *TypedConsumer[T]) Close() {
	c.broker.UnregisterConsumer(c.consumerID)
}

// Read decodes and returns the next available message, or nil if none is
// available yet.
func (c *TypedConsumer[T]) Read() (*T, error) {
	wrapped, err := c.ReadWithHeader()
	if err != nil {
		return nil, err
	}
	if wrapped == nil {
		return nil, nil
	}
	return &wrapped.Content, nil
}

// ReadWithHeader decodes the next available message along with its broker
// header metadata.
func (c *TypedConsumer[T]) ReadWithHeader() (*WithHeader[T], error) {
	msg, err := c.broker.ReadNext(c.consumerID)
	if err != nil {
		return nil, errors.Wrapf(err, ErrMsgReadFailed, c.consumerID)
	}
	if msg == nil {
		return nil, nil
	}

	var content T
	if err := json.Unmarshal([]byte(msg.Payload), &content); err != nil {
		return nil, &DeserializationError{
			TargetType:  targetTypeName(content),
			Sequence:    msg.Sequence,
			MessageType: msg.MessageType,
			ProducerID:  msg.ProducerID,
			PayloadLen:  len(msg.Payload),
			Preview:     preview(msg.Payload),
			Cause:       err,
		}
	}

	return &WithHeader[T]{
		Content: content,
		Header: Header{
			Sequence:    msg.Sequence,
			Timestamp:   msg.Timestamp.Unix(),
			ProducerID:  msg.ProducerID,
			MessageType: msg.MessageType,
		},
	}, nil
}

func preview(payload string) string {
	if len(payload) <= previewMaxBytes {
		return payload
	}
	return payload[:previewMaxBytes] + "…"
}

func targetTypeName(v any) string {
	return fmt.Sprintf("%T", v)
}
