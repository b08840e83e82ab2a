// Package storage defines the FileStore interface used to read model
// bundles and to write exported voice prompts. Model directories may live
// on local disk or in an S3-compatible bucket; callers address files by
// forward-slash paths relative to the store root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// ErrLocation is returned when a location string cannot be parsed.
var ErrLocation = errors.New("storage: invalid location")

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping fs.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing.
	// If the file already exists it is truncated.
	// The caller must close the returned WriteCloser to flush data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Missing files are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// ReadFile reads the whole named file from store.
func ReadFile(ctx context.Context, store FileStore, path string) ([]byte, error) {
	r, err := store.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to the named file, replacing any previous content.
func WriteFile(ctx context.Context, store FileStore, path string, data []byte) error {
	w, err := store.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return w.Close()
}

// Location is a parsed store address. A location is either a local
// directory or "s3://bucket/prefix".
type Location struct {
	Scheme string // "file" or "s3"
	Bucket string
	Path   string // local directory or S3 key prefix
}

// ParseLocation splits a location string into its parts.
func ParseLocation(loc string) (Location, error) {
	if loc == "" {
		return Location{}, fmt.Errorf("%w: empty", ErrLocation)
	}
	rest, ok := strings.CutPrefix(loc, "s3://")
	if !ok {
		return Location{Scheme: "file", Path: strings.TrimPrefix(loc, "file://")}, nil
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("%w: %q has no bucket", ErrLocation, loc)
	}
	return Location{Scheme: "s3", Bucket: bucket, Path: strings.Trim(prefix, "/")}, nil
}

// String formats the location back to its string form.
func (l Location) String() string {
	if l.Scheme == "s3" {
		if l.Path == "" {
			return "s3://" + l.Bucket
		}
		return "s3://" + l.Bucket + "/" + l.Path
	}
	return l.Path
}

// Open returns a FileStore for loc. S3 locations need a non-nil client.
func Open(loc string, client S3Client) (FileStore, error) {
	l, err := ParseLocation(loc)
	if err != nil {
		return nil, err
	}
	if l.Scheme == "s3" {
		if client == nil {
			return nil, fmt.Errorf("%w: %s requires an S3 client", ErrLocation, loc)
		}
		return NewS3(client, l.Bucket, l.Path), nil
	}
	return NewLocal(l.Path)
}

// IsNotExist reports whether err means a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
