package storage

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("object not found")

type Storage interface {
	// Put stores data with the given key and returns the storage URL
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data stored under the given key or storage URL
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether data is stored under the given key
	Exists(ctx context.Context, key string) (bool, error)
}

type Config struct {
	// Backend is either "file" or "s3".
	Backend   string
	Directory string
	Bucket    string
}

func New(ctx context.Context, c Config) (Storage, error) {
	switch c.Backend {
	case "", "file":
		return NewFileStorage(ctx, FileConfig{Directory: c.Directory})
	case "s3":
		return NewS3Storage(ctx, S3Config{Bucket: c.Bucket})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Backend)
	}
}
