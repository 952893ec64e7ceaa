package assets

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore writes assets into a directory on disk.
type LocalStore struct {
	Dir      string
	MaxBytes int64
}

func NewLocalStore(dir string, maxBytes int64) *LocalStore {
	return &LocalStore{Dir: dir, MaxBytes: maxBytes}
}

func (s *LocalStore) Put(ctx context.Context, up Upload) (string, error) {
	p, err := prepare(up, s.MaxBytes)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.Dir, p.name), p.data, 0o644); err != nil {
		return "", err
	}
	return Prefix + p.name, nil
}

func (s *LocalStore) Remove(ctx context.Context, ref string) error {
	name := nameOf(ref)
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
