package repo

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Storage persists site map versions for the history.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Write stores data with the given key.
	Write(ctx context.Context, key string, data []byte) error

	// Read retrieves data for the given key.
	// Returns os.ErrNotExist if the key does not exist.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns keys matching the given prefix, sorted alphabetically descending (newest first).
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data for the given key.
	// Returns nil if the key does not exist (idempotent).
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the storage backend.
	Close() error
}

const (
	StorageTypeFilesystem = "filesystem"
	StorageTypeBlob       = "blob"
)

// NewStorage creates the backend named by storageType. dir is used by the
// filesystem backend, bucketURL and prefix by the blob backend.
func NewStorage(ctx context.Context, l *zap.Logger, storageType, dir, bucketURL, prefix string) (Storage, error) {
	if storageType != StorageTypeBlob && (bucketURL != "" || prefix != "") {
		l.Warn("blob storage flags are set but storage type is not 'blob'; blob config will be ignored",
			zap.String("storage_type", storageType),
			zap.String("blob_bucket", bucketURL),
			zap.String("blob_prefix", prefix),
		)
	}

	switch storageType {
	case StorageTypeBlob:
		if bucketURL == "" {
			return nil, errors.Errorf("blob bucket url is required when storage type is 'blob' (supported schemes: %v)", SupportedBlobSchemes)
		}
		if !IsValidBlobScheme(bucketURL) {
			return nil, errors.Errorf("unsupported blob storage url scheme in %q; supported schemes: %v", bucketURL, SupportedBlobSchemes)
		}
		l.Info("using blob storage",
			zap.String("bucket", bucketURL),
			zap.String("prefix", prefix),
			zap.String("provider", BlobProvider(bucketURL)),
		)
		return NewBlobStorage(ctx, bucketURL, prefix)
	case StorageTypeFilesystem, "":
		l.Info("using filesystem storage", zap.String("dir", dir))
		return NewFilesystemStorage(dir)
	default:
		return nil, errors.Errorf("unknown storage type: %s (supported: %s, %s)", storageType, StorageTypeFilesystem, StorageTypeBlob)
	}
}
