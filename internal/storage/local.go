package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileStorage keeps published archives in a directory on disk
type LocalFileStorage struct {
	dir string
}

// NewLocalFileStorage creates a new local file storage instance
func NewLocalFileStorage(dir string) (*LocalFileStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "clipper")
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &LocalFileStorage{dir: dir}, nil
}

// Publish moves the file into the storage directory. A file that is already
// there is left in place.
func (s *LocalFileStorage) Publish(ctx context.Context, localPath, objectName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(objectKey("", objectName)))
	if rel, err := filepath.Rel(s.dir, target); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid object name: %s", objectName)
	}

	srcAbs, err := filepath.Abs(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", localPath, err)
	}
	dstAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	if srcAbs == dstAbs {
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.Rename(localPath, target); err == nil {
		return target, nil
	}

	// rename fails across filesystems
	if err := copyFile(localPath, target); err != nil {
		return "", err
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove %s: %w", localPath, err)
	}
	return target, nil
}

// Close is a no-op for local storage
func (s *LocalFileStorage) Close() error {
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
