// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures a BadgerStorage.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// SyncWrites flushes every write to disk before returning.
	SyncWrites bool
}

// BadgerStorage keeps blobs in a badger database keyed by handle.
type BadgerStorage struct {
	db          *badger.DB
	bytesStored atomic.Int64
}

// NewBadgerStorage opens the database described by cfg.
func NewBadgerStorage(cfg BadgerConfig) (*BadgerStorage, error) {
	// Value log files of 16MB, 8MB memtables; values above 256KB (bootstrapped
	// ciphertexts are larger) live in the value log.
	opt := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(8 << 20).
		WithValueThreshold(1 << 18)
	opt.Logger = nil

	db, err := badger.Open(opt)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

func (s *BadgerStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h := ComputeHandle(data)
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(h))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set([]byte(h), data); err != nil {
			return err
		}
		s.bytesStored.Add(int64(len(data)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	return h, nil
}

func (s *BadgerStorage) Load(ctx context.Context, h Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(h))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load blob: %w", err)
	}
	return data, nil
}

func (s *BadgerStorage) Delete(ctx context.Context, h Handle) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(h)); err != nil {
			return err
		}
		return txn.Delete([]byte(h))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *BadgerStorage) Exists(ctx context.Context, h Handle) (bool, error) {
	present := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(h))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		present = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("lookup blob: %w", err)
	}
	return present, nil
}

// BytesStored returns the bytes written through this handle since opening.
func (s *BadgerStorage) BytesStored() int64 {
	return s.bytesStored.Load()
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}
