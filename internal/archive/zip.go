// Package archive packages the tagged clips of a run into a single ZIP.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	ErrNoFiles        = errors.New("no files to archive")
	ErrDuplicateEntry = errors.New("duplicate archive entry")
)

// Name returns the archive file name for a run stem.
func Name(stem string) string {
	return stem + ".zip"
}

// Zip writes files to w as a flat archive, one entry per file named by its
// base name, in the given order. MP3 data is already compressed, so entries
// are stored rather than deflated.
func Zip(w io.Writer, files []string) error {
	if len(files) == 0 {
		return ErrNoFiles
	}

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
		}
		seen[name] = struct{}{}
	}

	zipWriter := zip.NewWriter(w)
	for _, f := range files {
		if err := addFile(zipWriter, f); err != nil {
			zipWriter.Close()
			return err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize ZIP: %w", err)
	}
	return nil
}

// WriteFile creates the archive at path. The archive is written to a
// temporary file in the same directory and renamed into place, so path
// never holds a partial ZIP.
func WriteFile(path string, files []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".archive-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temporary archive: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Zip(tmp, files); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary archive: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

func addFile(zipWriter *zip.Writer, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", filePath, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build ZIP header: %w", err)
	}
	header.Name = filepath.Base(filePath)
	header.Method = zip.Store

	entry, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create ZIP entry: %w", err)
	}

	if _, err := io.Copy(entry, file); err != nil {
		return fmt.Errorf("failed to write file to ZIP: %w", err)
	}
	return nil
}
