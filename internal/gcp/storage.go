package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/tenderflow/internal/objectstore"
	"google.golang.org/api/iterator"
)

// BucketStore serves tender documents from a GCS bucket.
type BucketStore struct {
	bucket *storage.BucketHandle
	name   string
}

func NewBucketStore(client *storage.Client, bucket string) *BucketStore {
	return &BucketStore{bucket: client.Bucket(bucket), name: bucket}
}

func (b *BucketStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", b.name, prefix, err)
		}
		// Folder placeholders created by the console.
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (b *BucketStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	reader, err := b.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", objectstore.ErrNotFound, b.name, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", b.name, key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", b.name, key, err)
	}
	return data, nil
}

// Put overwrites key. Exports are regenerated from the current ledger, so the newest write wins.
func (b *BucketStore) Put(ctx context.Context, key string, data []byte) error {
	writer := b.bucket.Object(key).NewWriter(ctx)
	writer.ContentType = contentType(key)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(key, ".zip"):
		return "application/zip"
	}
	return "application/octet-stream"
}
