package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// FileStore keeps all keys in one JSON object on disk. Every Get re-reads the
// file so writes from other processes are visible, and every write replaces the
// whole file through a rename so readers never see a partial document.
// Writes hold an exclusive lock on path+".lock" so processes sharing the file
// do not overwrite each other's keys.
type FileStore struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewFileStore creates the parent directory of path if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{path: path, lock: flock.New(path + ".lock")}, nil
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) Set(ctx context.Context, key, value string) error {
	return f.update(ctx, func(values map[string]string) {
		values[key] = value
	})
}

func (f *FileStore) Delete(ctx context.Context, keys ...string) error {
	return f.update(ctx, func(values map[string]string) {
		for _, k := range keys {
			delete(values, k)
		}
	})
}

// update runs a read-modify-write cycle under both the in-process mutex and
// the inter-process file lock.
func (f *FileStore) update(ctx context.Context, fn func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock storage file: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock storage file %s", f.lock.Path())
	}
	defer func() {
		if err := f.lock.Unlock(); err != nil {
			log.Printf("Failed to unlock storage file %s: %v", f.lock.Path(), err)
		}
	}()

	values, err := f.load()
	if err != nil {
		return err
	}
	fn(values)
	return f.save(values)
}

func (f *FileStore) Close() error {
	return f.lock.Close()
}

func (f *FileStore) load() (map[string]string, error) {
	values := make(map[string]string)
	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}
	if len(b) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(b, &values); err != nil {
		log.Printf("Storage file %s is corrupt (%v), starting from empty state.", f.path, err)
		return make(map[string]string), nil
	}
	return values, nil
}

func (f *FileStore) save(values map[string]string) error {
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode storage file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp storage file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp storage file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}
