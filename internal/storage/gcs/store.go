// Package gcs implements a Google Cloud Storage report store.
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// Store writes run reports to a GCS bucket.
type Store struct {
	client     *storage.Client
	bucketName string
	logger     *zap.Logger
}

// New initializes a GCS client and verifies the bucket is reachable.
// Authentication is handled via Application Default Credentials.
func New(ctx context.Context, bucketName string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	// Fail fast on startup when the bucket is misconfigured.
	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close GCS client after attrs failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get GCS bucket %q attributes: %w", bucketName, err)
	}

	return &Store{client: client, bucketName: bucketName, logger: logger}, nil
}

// Save uploads data to an object in the bucket and returns its gs:// URI.
func (s *Store) Save(ctx context.Context, objectName string, data []byte) (string, error) {
	wc := s.client.Bucket(s.bucketName).Object(objectName).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			s.logger.Warn("close GCS writer after write failure", zap.Error(closeErr))
		}
		return "", fmt.Errorf("write GCS object %s: %w", objectName, err)
	}
	// Close finalizes the upload.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close GCS writer for object %s: %w", objectName, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucketName, objectName), nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
