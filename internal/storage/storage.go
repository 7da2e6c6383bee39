package storage

import (
	"context"
	"time"
)

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket           string
	Key              string
	ContentType      string
	Filename         string
	ProgressCallback func(done, total int64)
}

// Service copies produced archives to remote object storage.
type Service interface {
	UploadFile(ctx context.Context, localPath string, opts UploadOptions) (string, error)
	PresignURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}
