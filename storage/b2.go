package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"
)

// B2 stores objects in a Backblaze B2 bucket.
type B2 struct {
	client     *b2.Client
	bucketName string
	bucket     *b2.Bucket
}

func NewB2(ctx context.Context, keyID, applicationKey, bucketName string) (*B2, error) {
	client, err := b2.NewClient(ctx, keyID, applicationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create B2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", bucketName, err)
	}

	return &B2{
		client:     client,
		bucketName: bucketName,
		bucket:     bucket,
	}, nil
}

func (s *B2) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	obj := s.bucket.Object(key)
	writer := obj.NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))

	// stream straight from the request into B2
	if _, err := io.Copy(writer, r); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload object to B2: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close B2 writer: %w", err)
	}
	return nil
}

func (s *B2) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.bucket.Object(key)

	// NewReader only fails on first read, so probe the object first
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat B2 object: %w", err)
	}
	return obj.NewReader(ctx), nil
}

func (s *B2) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.bucket.Object(key).Delete(ctx); err != nil {
			if b2.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to delete object from B2: %w", err)
		}
	}
	return nil
}
