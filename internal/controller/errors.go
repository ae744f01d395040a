package controller

import (
	"fmt"
	"time"
)

// ShutdownTimeoutError reports that a component failed to drain within its
// configured shutdown or completion timeout budget.
type ShutdownTimeoutError struct {
	Component string
	Timeout   time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("component %q failed to shut down within %s", e.Component, e.Timeout)
}

// CoordinationFailedError reports that a coordination step (graceful stop
// or completion wait) failed for one or more controllers. Reason is a
// semicolon-joined summary of the per-controller failures.
type CoordinationFailedError struct {
	Operation string
	Reason    string
}

func (e *CoordinationFailedError) Error() string {
	return fmt.Sprintf("system coordination operation %q failed: %s", e.Operation, e.Reason)
}

// EventPublishFailedError reports a failed system-event publish. The
// Event Controller treats this as non-fatal and logs it, following the
// same bounded, log-and-continue handling as other lifecycle event
// publishes.
type EventPublishFailedError struct {
	EventType string
	Cause     error
}

func (e *EventPublishFailedError) Error() string {
	return fmt.Sprintf("failed to publish system event %q: %v", e.EventType, e.Cause)
}

func (e *EventPublishFailedError) Unwrap() error {
	return e.Cause
}
