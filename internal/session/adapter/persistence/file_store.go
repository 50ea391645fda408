package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/session/domain/repository"
	"tenant-portal/internal/shared/logger"

	"github.com/fsnotify/fsnotify"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FileStore persists one JSON file per storage key inside a directory
type FileStore struct {
	dir    string
	logger logger.Logger

	mu sync.Mutex
	// lastWritten holds the bytes this process wrote per file, so Watch can
	// ignore its own writes.
	lastWritten     map[string][]byte
	pendingDeletion map[string]bool
}

// NewFileStore creates the directory if needed and returns a store rooted at it
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{
		dir:             dir,
		logger:          log.WithComponent("session_file_store"),
		lastWritten:     make(map[string][]byte),
		pendingDeletion: make(map[string]bool),
	}, nil
}

// Path returns the file a key is stored in
func (f *FileStore) Path(key string) string {
	return filepath.Join(f.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

// Load reads the snapshot stored under key
func (f *FileStore) Load(ctx context.Context, key string) (*model.Snapshot, error) {
	raw, err := os.ReadFile(f.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, repository.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", f.Path(key), err)
	}
	return &snap, nil
}

// Save writes the snapshot through a temporary file and an atomic rename
func (f *FileStore) Save(ctx context.Context, key string, snapshot *model.Snapshot) error {
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	path := f.Path(key)

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".session-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	f.lastWritten[path] = raw
	return nil
}

// Delete removes the file stored under key
func (f *FileStore) Delete(ctx context.Context, key string) error {
	path := f.Path(key)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lastWritten, path)
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	f.pendingDeletion[path] = true
	return nil
}

// Watch calls onChange whenever another process rewrites or removes the file
// for key. It returns once the watcher is running and stops when ctx is done.
func (f *FileStore) Watch(ctx context.Context, key string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}
	path := f.Path(key)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if f.ownWrite(path, event.Op) {
					continue
				}
				f.logger.Debugf("Session file changed externally: %s %s", event.Op, event.Name)
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warnf("Watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (f *FileStore) ownWrite(path string, op fsnotify.Op) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if f.pendingDeletion[path] {
			delete(f.pendingDeletion, path)
			return true
		}
		return false
	}
	written, tracked := f.lastWritten[path]
	if !tracked {
		return false
	}
	current, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Equal(current, written)
}
