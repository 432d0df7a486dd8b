package file

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// DefaultContentType is stored when the caller does not know the content type.
const DefaultContentType = "application/octet-stream"

// Storage persists uploaded objects under slash-separated keys.
type Storage interface {
	// Put streams size bytes from r into key. A negative size means unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*File, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool
	URL(key string) string
}

// File describes a stored object.
type File struct {
	Key         string
	Size        int64
	ContentType string
	URL         string
}

// CleanKey normalizes a storage key and rejects keys escaping the storage root.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, key)
		}
	}

	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidPath)
	}

	return key, nil
}

// JoinKey joins key segments with forward slashes, skipping empty ones.
func JoinKey(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

func contentTypeOrDefault(contentType string) string {
	if contentType == "" {
		return DefaultContentType
	}
	return contentType
}
