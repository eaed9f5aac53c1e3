// Package storage defines the interface for persisting run reports. The
// abstraction keeps the rest of the application independent of a specific
// blob store (Google Cloud Storage or the local filesystem).
package storage

import (
	"context"
)

// Provider is the blob storage contract for run artifacts.
type Provider interface {
	// Save writes data under the given object name and returns a URI the
	// artifact can be found at.
	Save(ctx context.Context, objectName string, data []byte) (string, error)
}

// NoOpProvider discards all writes. Useful for dry runs.
type NoOpProvider struct{}

// Save does nothing.
func (NoOpProvider) Save(_ context.Context, objectName string, _ []byte) (string, error) {
	return "noop://" + objectName, nil
}
