package event

import "errors"

// Domain errors for event delivery.
var (
	// ErrInvalidEvent is returned when an event is malformed.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrPublisherClosed is returned when publishing to a closed publisher.
	ErrPublisherClosed = errors.New("event publisher closed")
)
