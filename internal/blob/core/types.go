// Package core defines the abstractions shared by publication artifact stores.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs"
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory"
)

// ParseDriver maps a configuration string to a Driver. Empty selects the filesystem.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DriverFilesystem, nil
	case DriverFilesystem, DriverS3, DriverMemory:
		return d, nil
	default:
		return "", fmt.Errorf("unknown blob driver %q", s)
	}
}

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // User metadata (small, flat key-value)
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is the S3-like surface the publisher writes documents through. Put replaces
// any existing object under the same key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	// ErrNotFound is returned by Get and Head for a missing key.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for empty, absolute or traversing keys.
	ErrInvalidKey = errors.New("invalid blob key")
)

// CleanKey normalizes a key to a slash-separated relative path.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q escapes the root", ErrInvalidKey, key)
		}
	}
	return path.Clean(key), nil
}

// CloneMetadata copies user metadata; nil stays nil.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
