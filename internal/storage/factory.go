package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Xunop/bookworm/internal/config"
)

// NewAdapter builds the adapter named by opts.StorageAdapter. Local storage
// lives under the data directory.
func NewAdapter(ctx context.Context, opts *config.Options) (Adapter, error) {
	switch opts.StorageAdapter {
	case "", "local":
		return NewLocalAdapter(opts.Data)
	case "s3":
		return NewS3Adapter(ctx, S3Options{
			Endpoint:        opts.S3Endpoint,
			Region:          opts.S3Region,
			Bucket:          opts.S3Bucket,
			AccessKeyID:     opts.S3AccessKeyID,
			SecretAccessKey: opts.S3SecretAccessKey,
		})
	default:
		return nil, errors.Errorf("unknown storage adapter: %s", opts.StorageAdapter)
	}
}
