// Package storage persists submitted certificate images to an object store.
// Upload failures are non-fatal to verification: a submission proceeds
// without a durable image URL.
package storage

import (
	"context"
	"fmt"
	"net/http"

	gcs "cloud.google.com/go/storage"
)

type GCSUploader struct {
	client *gcs.Client
	bucket string
}

func NewGCSUploader(ctx context.Context, bucket string) (*GCSUploader, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage client: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

// Upload writes the bytes to the bucket under path and returns the public
// object URL.
func (u *GCSUploader) Upload(ctx context.Context, data []byte, path string) (string, error) {
	w := u.client.Bucket(u.bucket).Object(path).NewWriter(ctx)
	w.ContentType = http.DetectContentType(data)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, path), nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}
