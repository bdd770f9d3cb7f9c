package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/KaramelBytes/sheetlens/internal/utils"
	"github.com/google/uuid"
)

// Blobs stores the raw bytes of uploaded files.
type Blobs interface {
	// Put stores data and returns the key to fetch it with.
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes a blob; a missing blob is not an error.
	Delete(ctx context.Context, key string) error
}

// DiskBlobs keeps blobs as files in one directory.
type DiskBlobs struct {
	dir string
}

func NewDiskBlobs(dir string) (*DiskBlobs, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("ensure upload dir: %w", err)
	}
	return &DiskBlobs{dir: dir}, nil
}

func blobKey(name string) string {
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.NewString(), utils.SafeBaseName(name))
}

func (d *DiskBlobs) Put(_ context.Context, name string, data []byte) (string, error) {
	key := blobKey(name)
	if err := utils.SafeWriteFile(filepath.Join(d.dir, key), data); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return key, nil
}

func (d *DiskBlobs) path(key string) (string, error) {
	if key == "" || filepath.Base(key) != key || key == "." || key == ".." {
		return "", ErrNotFound
	}
	return filepath.Join(d.dir, key), nil
}

func (d *DiskBlobs) Get(_ context.Context, key string) ([]byte, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return b, nil
}

func (d *DiskBlobs) Delete(_ context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// MemoryBlobs keeps blobs in process memory.
type MemoryBlobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs { return &MemoryBlobs{blobs: map[string][]byte{}} }

func (m *MemoryBlobs) Put(_ context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := blobKey(name)
	m.blobs[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *MemoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *MemoryBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
