package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend stores all keys in a single JSON document. Writes go to a
// temporary file that is renamed over the original, so a crash leaves either
// the old or the new document, never a torn one.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend returns a backend persisting to path. The file and its
// directory are created on first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the document location.
func (f *FileBackend) Path() string {
	return f.path
}

func (f *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileBackend) SetMany(ctx context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.load()
	if errors.Is(err, ErrCorruptValue) {
		// Rewriting replaces the damaged document.
		current, err = map[string]string{}, nil
	}
	if err != nil {
		return err
	}

	maps.Copy(current, values)
	return f.save(current)
}

func (f *FileBackend) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.load()
	if errors.Is(err, ErrCorruptValue) {
		current, err = map[string]string{}, nil
	}
	if err != nil {
		return err
	}

	changed := false
	for _, k := range keys {
		if _, ok := current[k]; ok {
			delete(current, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(current)
}

func (f *FileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Join(ErrBackendUnavailable, err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Join(ErrCorruptValue, err)
	}
	return values, nil
}

func (f *FileBackend) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrBackendUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrBackendUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrBackendUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	return nil
}
