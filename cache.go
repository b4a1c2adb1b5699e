// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package torus

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/luxfi/torus/internal/storage"
	"github.com/luxfi/torus/internal/timing"
)

// Key cache file names inside a fingerprint directory.
const (
	SecretKeyFile    = "secret_key"
	BootstrapKeyFile = "bootstrapping_key"
)

// CacheDir returns the directory GenerateWithCache uses under root.
func (kg *KeyGenerator) CacheDir(root string) string {
	return filepath.Join(root, kg.params.scheme.Fingerprint())
}

// GenerateWithCache returns the keys cached under root for these parameters,
// generating and persisting them first when the cache has no complete entry.
// An empty root disables the cache.
//
// Cached files are checked against the full parameter digest; keys cached
// for different parameters that share a directory fail with
// ErrCacheMismatch instead of loading.
func (kg *KeyGenerator) GenerateWithCache(root string) (*SecretKey, *PublicKey, error) {
	if root == "" {
		return kg.Generate()
	}

	dir := kg.CacheDir(root)
	skPath := filepath.Join(dir, SecretKeyFile)
	pkPath := filepath.Join(dir, BootstrapKeyFile)
	log := kg.log.With(zap.String("path", dir))

	hit, err := bothExist(skPath, pkPath)
	if err != nil {
		return nil, nil, ioError("key cache", err)
	}

	if hit {
		timer := timing.Start("loaded keys from cache", log)
		sk, pk, err := kg.loadCached(skPath, pkPath)
		if err != nil {
			log.Warn("key cache load failed", zap.Error(err))
			return nil, nil, err
		}
		timer.Stop()
		return sk, pk, nil
	}

	log.Info("key cache miss, generating keys")
	timer := timing.Start("generated and cached keys", log)

	sk, pk, err := kg.Generate()
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, ioError("key cache", fmt.Errorf("create cache dir: %w", err))
	}

	// The secret key goes last: a lone bootstrapping_key is never treated as
	// a cache hit.
	if err := storage.WriteFileAtomic(pkPath, 0o600, writerFunc(pk.WriteTo)); err != nil {
		return nil, nil, ioError("key cache", fmt.Errorf("write %s: %w", BootstrapKeyFile, err))
	}
	if err := storage.WriteFileAtomic(skPath, 0o600, writerFunc(sk.WriteTo)); err != nil {
		return nil, nil, ioError("key cache", fmt.Errorf("write %s: %w", SecretKeyFile, err))
	}

	timer.Stop()
	return sk, pk, nil
}

func (kg *KeyGenerator) loadCached(skPath, pkPath string) (*SecretKey, *PublicKey, error) {
	skFile, err := os.Open(skPath)
	if err != nil {
		return nil, nil, ioError("key cache", err)
	}
	defer skFile.Close()

	sk, err := ReadSecretKey(skFile, kg.params.scheme)
	if err != nil {
		return nil, nil, err
	}

	pkFile, err := os.Open(pkPath)
	if err != nil {
		return nil, nil, ioError("key cache", err)
	}
	defer pkFile.Close()

	pk, err := ReadPublicKey(pkFile, kg.params.scheme)
	if err != nil {
		return nil, nil, err
	}

	return sk, pk, nil
}

// LoadPublicKey reads only the bootstrapping key cached under root for
// params. It never generates keys and never touches the secret key file, so
// an evaluating party can run without the secret key.
func LoadPublicKey(root string, params SchemeParameters) (*PublicKey, error) {
	if root == "" {
		return nil, paramErrorf("load public key", "no cache root")
	}
	path := filepath.Join(root, params.Fingerprint(), BootstrapKeyFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("load public key", err)
	}
	defer f.Close()

	return ReadPublicKey(f, params)
}

func bothExist(paths ...string) (bool, error) {
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !info.Mode().IsRegular() {
			return false, fmt.Errorf("%s is not a regular file", p)
		}
	}
	return true, nil
}

func writerFunc(writeTo func(io.Writer) (int64, error)) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := writeTo(w)
		return err
	}
}
