package notify

import (
	"context"
	"log"
	"sync"
)

// LogChannel writes notifications to the process log. It is the
// fallback when no real transport is configured, so escalations are
// never silently dropped.
type LogChannel struct{}

var _ Channel = (*LogChannel)(nil)

// Send logs the payload and always reports delivery.
func (LogChannel) Send(_ context.Context, channelID string, payload string) Delivery {
	log.Printf("[notify] -> %s: %s", channelID, payload)
	return Delivery{Delivered: true}
}

// Sent is one recorded notification.
type Sent struct {
	ChannelID string
	Payload   string
}

// Recorder captures notifications in memory for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	// Fail makes every Send report a failure when non-empty.
	Fail string
}

var _ Channel = (*Recorder)(nil)

// Send records the payload.
func (r *Recorder) Send(_ context.Context, channelID string, payload string) Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != "" {
		return Delivery{Error: r.Fail}
	}
	r.sent = append(r.sent, Sent{ChannelID: channelID, Payload: payload})
	return Delivery{Delivered: true}
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
