package queue

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Publisher is a broker handle bound to one producer id. Scanner tasks hold
// exactly one of these, bound to their scanner id.
type Publisher struct {
	broker     *Broker
	producerID string
}

// NewPublisher binds a Publisher to broker for the given producer id.
func NewPublisher(broker *Broker, producerID string) *Publisher {
	return &Publisher{broker: broker, producerID: producerID}
}

// ProducerID returns the bound producer id.
func (p *Publisher) ProducerID() string {
	return p.producerID
}

// Publish JSON-encodes payload and publishes it under the given message
// type, tagged with the publisher's producer id.
func (p *Publisher) Publish(messageType string, payload any) (uint64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, errors.Wrap(err, ErrMsgPublishFailed)
	}
	msg := NewMessage(p.producerID, messageType, string(data))
	seq, err := p.broker.Publish(msg)
	if err != nil {
		return 0, errors.Wrap(err, ErrMsgPublishFailed)
	}
	return seq, nil
}
