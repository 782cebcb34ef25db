package repo

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// tempPrefix marks files that are still being written
const tempPrefix = ".tmp-"

// FilesystemStorage keeps history files flat in dir. Writes go to a temp
// file that is renamed into place, so a crash never leaves a truncated
// current site map behind.
type FilesystemStorage struct {
	dir string
}

func NewFilesystemStorage(dir string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create history dir")
	}
	return &FilesystemStorage{dir: dir}, nil
}

func (f *FilesystemStorage) Write(_ context.Context, key string, data []byte) error {
	filename, err := f.filename(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, tempPrefix+key+"-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	// no-op once renamed
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "failed to write %s", key)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "failed to sync %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", key)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "failed to move %s into place", key)
	}
	return nil
}

func (f *FilesystemStorage) Read(_ context.Context, key string) ([]byte, error) {
	filename, err := f.filename(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", key)
	}
	return data, nil
}

// List keys with prefix, newest first. Directories and unfinished writes are
// skipped.
func (f *FilesystemStorage) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list history dir")
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasPrefix(name, prefix) {
			continue
		}
		keys = append(keys, name)
	}
	slices.Sort(keys)
	slices.Reverse(keys)
	return keys, nil
}

func (f *FilesystemStorage) Delete(_ context.Context, key string) error {
	filename, err := f.filename(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

func (f *FilesystemStorage) Close() error {
	return nil
}

// filename of key, keys are plain file names
func (f *FilesystemStorage) filename(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, tempPrefix) {
		return "", errors.Errorf("invalid history key %q", key)
	}
	return filepath.Join(f.dir, key), nil
}
