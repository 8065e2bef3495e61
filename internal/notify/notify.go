// Package notify abstracts the human-notification channel used when an
// agent escalates to or informs its paired human. Transports are
// pluggable; Telegram is the production implementation and LogChannel
// the fallback when no transport is configured.
package notify

import "context"

// Delivery is the outcome of one send attempt.
type Delivery struct {
	// Delivered reports whether the payload reached the transport.
	Delivered bool `json:"delivered"`
	// Error carries the failure text when Delivered is false.
	Error string `json:"error,omitempty"`
}

// Channel delivers payloads to a human-facing destination. channelID
// identifies the destination in transport-specific terms (a chat id,
// a user handle). Send never panics; failures come back in Delivery.
type Channel interface {
	Send(ctx context.Context, channelID string, payload string) Delivery
}
