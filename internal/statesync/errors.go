package statesync

import (
	"errors"
	"fmt"
)

// ErrCoreStopped is returned when a message arrives after shutdown.
var ErrCoreStopped = errors.New("statesync: core stopped")

// DecodeError reports a malformed inbound payload or an unparseable
// value. It is recovered locally: the message is logged and dropped,
// and the device's existing state is left untouched.
type DecodeError struct {
	Topic   string
	Payload []byte
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("statesync: decoding message on %s: %s: %v", e.Topic, e.Reason, e.Err)
	}
	return fmt.Sprintf("statesync: decoding message on %s: %s", e.Topic, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// newDecodeError builds a DecodeError with a copy of the raw payload.
func newDecodeError(topic string, payload []byte, reason string, err error) *DecodeError {
	raw := make([]byte, len(payload))
	copy(raw, payload)
	return &DecodeError{Topic: topic, Payload: raw, Reason: reason, Err: err}
}
