// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStorage keeps one file per blob, sharded by the first two hex digits
// of the handle.
type FileStorage struct {
	baseDir string
}

// NewFileStorage creates baseDir if needed.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{baseDir: baseDir}, nil
}

func (s *FileStorage) path(h Handle) (string, error) {
	if !h.Valid() {
		return "", ErrInvalidHandle
	}
	return filepath.Join(s.baseDir, string(h[:2]), string(h)), nil
}

func (s *FileStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h := ComputeHandle(data)
	path, _ := s.path(h)

	if _, err := os.Stat(path); err == nil {
		return h, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}

	err := WriteFileAtomic(path, 0o600, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return "", err
	}
	return h, nil
}

func (s *FileStorage) Load(ctx context.Context, h Handle) ([]byte, error) {
	path, err := s.path(h)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FileStorage) Delete(ctx context.Context, h Handle) error {
	path, err := s.path(h)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (s *FileStorage) Exists(ctx context.Context, h Handle) (bool, error) {
	path, err := s.path(h)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat blob: %w", err)
	}
}

func (s *FileStorage) Close() error {
	return nil
}
