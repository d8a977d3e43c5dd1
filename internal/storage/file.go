package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type fileStorage struct {
	config FileConfig
}

type FileConfig struct {
	Directory string
}

// NewFileStorage creates a storage backend rooted at a local directory.
// Absolute keys bypass the root.
func NewFileStorage(ctx context.Context, f FileConfig) (Storage, error) {
	if f.Directory == "" {
		f.Directory = "."
	}

	return &fileStorage{
		config: f,
	}, nil
}

func (a *fileStorage) path(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(a.config.Directory, filepath.FromSlash(key))
}

// Put writes through a temporary file in the target directory so readers
// never observe a partially written image.
func (a *fileStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	filePath := a.path(key)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return filePath, nil
}

func (a *fileStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(a.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read file %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

func (a *fileStorage) Exists(ctx context.Context, key string) (bool, error) {
	info, err := os.Stat(a.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}

	return !info.IsDir(), nil
}
