// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package storage keeps serialized ciphertexts under content-addressed
// handles, in memory, on the filesystem or in a badger database.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Common errors.
var (
	ErrNotFound      = errors.New("blob not found")
	ErrStorageFull   = errors.New("storage capacity exceeded")
	ErrInvalidHandle = errors.New("invalid blob handle")
	ErrClosed        = errors.New("storage closed")
)

// Handle is the hex sha256 of a stored blob.
type Handle string

// ComputeHandle returns the handle data is stored under.
func ComputeHandle(data []byte) Handle {
	sum := sha256.Sum256(data)
	return Handle(hex.EncodeToString(sum[:]))
}

// Valid reports whether h has the shape of a handle.
func (h Handle) Valid() bool {
	if len(h) != 2*sha256.Size {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// Storage is a content-addressed blob store. Storing the same bytes twice
// returns the same handle.
type Storage interface {
	Store(ctx context.Context, data []byte) (Handle, error)
	Load(ctx context.Context, handle Handle) ([]byte, error)
	Delete(ctx context.Context, handle Handle) error
	Exists(ctx context.Context, handle Handle) (bool, error)
	Close() error
}

// WriteFileAtomic writes path through a temporary file in the same
// directory and renames it into place, so readers never observe a partially
// written file.
func WriteFileAtomic(path string, perm os.FileMode, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
