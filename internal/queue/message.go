package queue

import "time"

// Message is an immutable broker record. Construction only sets the
// producer-supplied fields; Sequence and Timestamp are assigned by the
// broker at publish time.
type Message struct {
	Sequence    uint64    `json:"sequence"`
	Timestamp   time.Time `json:"timestamp"`
	ProducerID  string    `json:"producer_id"`
	MessageType string    `json:"message_type"`
	Payload     string    `json:"payload"`
}

// NewMessage builds an unpublished Message. Sequence and Timestamp are left
// at their zero values until the broker assigns them in Publish.
func NewMessage(producerID, messageType, payload string) Message {
	return Message{
		ProducerID:  producerID,
		MessageType: messageType,
		Payload:     payload,
	}
}

// approxSize estimates the in-memory footprint of a message for the
// broker's memory accounting. This is a rough accounting, not a precise
// one: best-effort is the contract.
func (m Message) approxSize() int {
	const headerOverhead = 64 // sequence + timestamp + struct/pointer overhead, approximate
	return headerOverhead + len(m.ProducerID) + len(m.MessageType) + len(m.Payload)
}
