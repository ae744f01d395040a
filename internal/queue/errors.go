package queue

import "github.com/pkg/errors"

const (
	ErrMsgPublishFailed      = "failed to publish message"
	ErrMsgReadFailed         = "failed to read next message for consumer %s"
	ErrMsgLifecycleEventSend = "failed to publish broker lifecycle event"
)

var (
	// ErrConsumerNotFound is returned when an operation references a
	// consumer id that is not (or no longer) registered with the broker.
	ErrConsumerNotFound = errors.New("consumer not found")

	// ErrBrokerClosed is returned by operations attempted after Close.
	ErrBrokerClosed = errors.New("broker is closed")
)

// QueueFullError is returned by Publish when the broker is at capacity and
// opportunistic garbage collection did not free room for the new message.
type QueueFullError struct {
	MaxSize int
}

func (e *QueueFullError) Error() string {
	return errors.Errorf("broker queue full: max_size=%d", e.MaxSize).Error()
}

// DeserializationError carries full context about a failed typed decode:
// target type name, sequence, message_type, producer_id, payload length,
// and a truncated preview of the payload.
type DeserializationError struct {
	TargetType  string
	Sequence    uint64
	MessageType string
	ProducerID  string
	PayloadLen  int
	Preview     string
	Cause       error
}

func (e *DeserializationError) Error() string {
	return errors.Errorf(
		"failed to deserialize message (seq=%d, type=%s, producer=%s, len=%d) into %s: preview=%q: %v",
		e.Sequence, e.MessageType, e.ProducerID, e.PayloadLen, e.TargetType, e.Preview, e.Cause,
	).Error()
}

func (e *DeserializationError) Unwrap() error {
	return e.Cause
}
