// Package gcs provides a blob store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/openhire/jobradar/internal/blob"
)

// Store writes captures to a GCS bucket. Authentication uses Application
// Default Credentials.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New connects to GCS and verifies the bucket is reachable.
func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check gcs bucket %s: %w", bucket, err)
	}
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// PutObject uploads the capture and returns its gs:// URI.
func (s *Store) PutObject(ctx context.Context, path, contentType string, data io.Reader) (string, error) {
	object := path
	if s.prefix != "" {
		object = s.prefix + "/" + path
	}
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gcs object %s: %w", object, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// GetObject downloads a capture by its archive path.
func (s *Store) GetObject(ctx context.Context, path string) ([]byte, error) {
	object := path
	if s.prefix != "" {
		object = s.prefix + "/" + path
	}
	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, blob.ErrObjectNotFound
		}
		return nil, fmt.Errorf("open gcs object %s: %w", object, err)
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gcs object %s: %w", object, err)
	}
	return content, nil
}

// Close releases the GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}
