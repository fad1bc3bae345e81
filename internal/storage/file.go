package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")

// FileSlots stores one file per key under dir.
type FileSlots struct {
	fs  afero.Fs
	dir string
}

// NewFileSlots creates dir if needed. Pass afero.NewOsFs() for real disk.
func NewFileSlots(fsys afero.Fs, dir string) (*FileSlots, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slot dir %s: %w", dir, err)
	}
	return &FileSlots{fs: fsys, dir: dir}, nil
}

var _ Slots = (*FileSlots)(nil)

func (f *FileSlots) path(key string) string {
	return filepath.Join(f.dir, keyReplacer.Replace(key)+".json")
}

func (f *FileSlots) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", key, err)
	}
	return data, nil
}

// Put writes to a temp file and renames it over the slot.
func (f *FileSlots) Put(_ context.Context, key string, data []byte) error {
	target := f.path(key)
	tmp := target + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}
	if err := f.fs.Rename(tmp, target); err != nil {
		return fmt.Errorf("commit slot %s: %w", key, err)
	}
	return nil
}

func (f *FileSlots) Delete(_ context.Context, key string) error {
	err := f.fs.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete slot %s: %w", key, err)
	}
	return nil
}
