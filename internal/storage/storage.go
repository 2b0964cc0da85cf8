// Package storage publishes finished archives so clients can fetch them
// after the request that produced them has returned.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/jaki95/video-clip-tagger/config"
)

var ErrUnknownType = errors.New("unknown storage type")

// Storage defines where archives end up once a job completes.
type Storage interface {
	// Publish stores the file at localPath under objectName and returns the
	// location clients should download it from: a local path for the
	// filesystem backend, a URL for the remote ones.
	Publish(ctx context.Context, localPath, objectName string) (string, error)

	Close() error
}

// New creates the backend selected by cfg.Type. localDir is where the local
// backend keeps published archives.
func New(ctx context.Context, cfg config.StorageConfig, localDir string) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalFileStorage(localDir)
	case "gcs":
		return NewGCSStorage(ctx, cfg.GCS)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type)
	}
}

// IsRemote reports whether location is a URL rather than a local path.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func objectKey(prefix, objectName string) string {
	objectName = strings.TrimPrefix(objectName, "/")
	if prefix == "" {
		return objectName
	}
	return path.Join(strings.Trim(prefix, "/"), objectName)
}
