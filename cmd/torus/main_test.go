// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/torus"
	"github.com/luxfi/torus/internal/queue"
	"github.com/luxfi/torus/internal/storage"
	"github.com/luxfi/torus/internal/worker"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInspect(t *testing.T) {
	out, err := execute(t, "inspect")
	require.NoError(t, err)
	for name, p := range torus.Presets {
		require.Contains(t, out, name)
		require.Contains(t, out, p.Fingerprint())
	}

	out, err = execute(t, "inspect", "--preset", "PN10QP30")
	require.NoError(t, err)
	require.Contains(t, out, "rlwe_1024_1_bs_10_3")
	require.NotContains(t, out, "PN11QP48")

	_, err = execute(t, "inspect", "--preset", "PN99")
	require.ErrorContains(t, err, "unknown preset")
}

func TestKeygenUnknownPreset(t *testing.T) {
	_, err := execute(t, "keygen", "--preset", "nope")
	require.ErrorContains(t, err, "unknown preset")
}

func TestOpenStorage(t *testing.T) {
	for _, kind := range []string{"file", "memory"} {
		store, err := openStorage(kind, t.TempDir())
		require.NoError(t, err)
		require.NoError(t, store.Close())
	}
	_, err := openStorage("tape", t.TempDir())
	require.Error(t, err)
}

func TestMetricsHandler(t *testing.T) {
	pool, err := worker.New(worker.Config{Encoding: torus.DefaultEncoding()},
		queue.NewMemoryQueue(1), storage.NewMemoryStorage(1))
	require.NoError(t, err)
	h := metricsHandler(pool)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(), `torus_jobs_total{status="success"} 0`)
	require.Contains(t, rec.Body.String(), `torus_jobs_total{status="failure"} 0`)
}

func TestLoadWorkerKey(t *testing.T) {
	pk, err := loadWorkerKey(&workerOptions{levelled: true}, torus.PN10QP30)
	require.NoError(t, err)
	require.Nil(t, pk)

	_, err = loadWorkerKey(&workerOptions{}, torus.PN10QP30)
	require.ErrorContains(t, err, "--cache is required")

	// An empty cache is an error, not a reason to generate keys.
	root := t.TempDir()
	_, err = loadWorkerKey(&workerOptions{cache: root}, torus.PN10QP30)
	require.ErrorIs(t, err, torus.ErrIO)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = execute(t, "worker", "--preset", "PN10QP30", "--metrics", "")
	require.ErrorContains(t, err, "--cache is required")
}
