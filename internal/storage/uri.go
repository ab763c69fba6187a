package storage

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidURI is returned for gs:// URIs without a bucket or object path.
var ErrInvalidURI = errors.New("invalid GCS URI")

const gcsScheme = "gs://"

// IsGCSURI reports whether uri points at Cloud Storage.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, gcsScheme)
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object name.
func ParseGCSURI(uri string) (string, string, error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("ParseGCSURI: %w: %s", ErrInvalidURI, uri)
	}

	trimmed := strings.TrimPrefix(uri, gcsScheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("ParseGCSURI: %w (no object path): %s", ErrInvalidURI, uri)
	}
	return parts[0], parts[1], nil
}

// GCSURI joins a bucket and object name back into a URI.
func GCSURI(bucket, object string) string {
	return gcsScheme + bucket + "/" + strings.TrimPrefix(object, "/")
}

// ObjectName joins an optional prefix and a file name into an object path.
func ObjectName(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// BaseName extracts the file name from a local path or GCS URI.
// e.g., "gs://bucket/folder/file.csv" → "file.csv"
func BaseName(uri string) string {
	if !IsGCSURI(uri) {
		return filepath.Base(uri)
	}

	trimmed := strings.TrimPrefix(uri, gcsScheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
