package service

import (
	"context"
	"io"
)

// ObjectStore is the durable object storage the orchestrators write to.
// The aws package provides the real S3 implementation, tests substitute
// a fake.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType, contentDisposition string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	Bucket() string
}
