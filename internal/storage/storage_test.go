// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	bs, err := NewBadgerStorage(BadgerConfig{InMemory: true})
	require.NoError(t, err)

	return map[string]Storage{
		"memory": NewMemoryStorage(1),
		"file":   fs,
		"badger": bs,
	}
}

func TestStorageRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			data := []byte("ciphertext blob")
			h, err := s.Store(ctx, data)
			require.NoError(t, err)
			require.Equal(t, ComputeHandle(data), h)
			require.True(t, h.Valid())

			again, err := s.Store(ctx, data)
			require.NoError(t, err)
			require.Equal(t, h, again)

			ok, err := s.Exists(ctx, h)
			require.NoError(t, err)
			require.True(t, ok)

			got, err := s.Load(ctx, h)
			require.NoError(t, err)
			require.Equal(t, data, got)

			require.NoError(t, s.Delete(ctx, h))
			require.ErrorIs(t, s.Delete(ctx, h), ErrNotFound)

			_, err = s.Load(ctx, h)
			require.ErrorIs(t, err, ErrNotFound)

			ok, err = s.Exists(ctx, h)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestMemoryStorageCapacity(t *testing.T) {
	s := NewMemoryStorage(1)
	ctx := context.Background()

	_, err := s.Store(ctx, make([]byte, 1<<20+1))
	require.ErrorIs(t, err, ErrStorageFull)

	_, err = s.Store(ctx, make([]byte, 1<<19))
	require.NoError(t, err)
	require.EqualValues(t, 1<<19, s.Size())
}

func TestFileStorageRejectsBadHandle(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(context.Background(), Handle("../../etc/passwd"))
	require.ErrorIs(t, err, ErrInvalidHandle)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob")

	require.NoError(t, WriteFileAtomic(path, 0o600, func(w io.Writer) error {
		_, err := w.Write([]byte("first"))
		return err
	}))

	err := WriteFileAtomic(path, 0o600, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return io.ErrUnexpectedEOF
	})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
