// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package storage

import (
	"context"
	"sync"
)

// MemoryStorage keeps blobs in a map, bounded by a byte capacity.
type MemoryStorage struct {
	mu       sync.RWMutex
	blobs    map[Handle][]byte
	capacity int64
	size     int64
}

// NewMemoryStorage returns a store holding at most capacityMB megabytes.
func NewMemoryStorage(capacityMB int64) *MemoryStorage {
	return &MemoryStorage{
		blobs:    make(map[Handle][]byte),
		capacity: capacityMB << 20,
	}
}

func (s *MemoryStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blobs == nil {
		return "", ErrClosed
	}

	h := ComputeHandle(data)
	if _, ok := s.blobs[h]; ok {
		return h, nil
	}
	if s.size+int64(len(data)) > s.capacity {
		return "", ErrStorageFull
	}

	s.blobs[h] = append([]byte(nil), data...)
	s.size += int64(len(data))
	return h, nil
}

func (s *MemoryStorage) Load(ctx context.Context, h Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[h]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[h]
	if !ok {
		return ErrNotFound
	}
	s.size -= int64(len(data))
	delete(s.blobs, h)
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, h Handle) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blobs[h]
	return ok, nil
}

// Size returns the number of bytes held.
func (s *MemoryStorage) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs = nil
	s.size = 0
	return nil
}
