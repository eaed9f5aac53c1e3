// Package publisher defines the interface for emitting run lifecycle
// events to downstream consumers.
package publisher

import (
	"context"
)

// Provider publishes event payloads to a named topic.
type Provider interface {
	// Publish sends the payload and returns the broker's message id.
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// NoOpProvider drops every event.
type NoOpProvider struct{}

// Publish does nothing.
func (NoOpProvider) Publish(context.Context, string, any) (string, error) {
	return "", nil
}
