package scanevents

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Encode serialises an Event into its externally-tagged wire form,
// {"<VariantName>": {...fields...}}. The returned message type is the
// variant name, suitable as a broker Message.MessageType so subscribers
// can pre-filter without decoding the payload.
func Encode(event Event) (messageType string, payload []byte, err error) {
	messageType = event.MessageType()

	inner, err := json.Marshal(event)
	if err != nil {
		return "", nil, errors.Wrapf(err, "encode %s payload", messageType)
	}

	envelope := map[string]json.RawMessage{messageType: inner}
	payload, err = json.Marshal(envelope)
	if err != nil {
		return "", nil, errors.Wrapf(err, "encode %s envelope", messageType)
	}
	return messageType, payload, nil
}

// Decode parses the externally-tagged wire form produced by Encode.
// messageType (typically a broker Message.MessageType) selects the
// concrete variant to decode into.
func Decode(messageType string, payload []byte) (Event, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Wrapf(err, "decode %s envelope", messageType)
	}

	inner, ok := envelope[messageType]
	if !ok {
		return nil, errors.Errorf("decode %s: payload missing %q discriminator key", messageType, messageType)
	}

	switch messageType {
	case TypeRepositoryData:
		var v RepositoryData
		if err := json.Unmarshal(inner, &v); err != nil {
			return nil, errors.Wrapf(err, "decode %s", messageType)
		}
		return v, nil
	case TypeScanStarted:
		var v ScanStarted
		if err := json.Unmarshal(inner, &v); err != nil {
			return nil, errors.Wrapf(err, "decode %s", messageType)
		}
		return v, nil
	case TypeCommitData:
		var v CommitData
		if err := json.Unmarshal(inner, &v); err != nil {
			return nil, errors.Wrapf(err, "decode %s", messageType)
		}
		return v, nil
	case TypeFileChange:
		var v FileChange
		if err := json.Unmarshal(inner, &v); err != nil {
			return nil, errors.Wrapf(err, "decode %s", messageType)
		}
		return v, nil
	case TypeScanCompleted:
		var v ScanCompleted
		if err := json.Unmarshal(inner, &v); err != nil {
			return nil, errors.Wrapf(err, "decode %s", messageType)
		}
		return v, nil
	case TypeScanError:
		var v ScanError
		if err := json.Unmarshal(inner, &v); err != nil {
			return nil, errors.Wrapf(err, "decode %s", messageType)
		}
		return v, nil
	default:
		return nil, errors.Errorf("decode: unknown scan-event message type %q", messageType)
	}
}
