package domain

import "errors"

// Sentinel errors for the relay domain. These provide consistent, checkable
// errors for common failures across the store, index, broadcaster and relay.
var (
	// ErrValidation marks bad input. It is surfaced to the caller immediately
	// and never retried.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound marks an unknown counterpart or conversation.
	ErrNotFound = errors.New("requested resource not found")

	// ErrTransientStore marks an unavailable storage backend. The caller layer
	// may retry with bounded backoff; it is never swallowed.
	ErrTransientStore = errors.New("storage temporarily unavailable")

	// ErrDelivery marks a failed watcher delivery. It is isolated to the
	// affected watcher and logged, never propagated to the publisher.
	ErrDelivery = errors.New("watcher delivery failed")
)
