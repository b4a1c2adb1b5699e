// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/torus"
	"github.com/luxfi/torus/internal/queue"
	"github.com/luxfi/torus/internal/storage"
	"github.com/luxfi/torus/internal/worker"
)

type workerOptions struct {
	preset      string
	cache       string
	levelled    bool
	bits        int
	padding     int
	workers     int
	redisAddr   string
	redisDB     int
	queueName   string
	storagePath string
	storageKind string
	metricsAddr string
}

func newWorkerCmd(root *rootOptions) *cobra.Command {
	opts := &workerOptions{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Evaluate queued ciphertext jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, root.log, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.preset, "preset", "PN11QP48", "parameter preset")
	f.StringVar(&opts.cache, "cache", "", "key cache root holding the bootstrapping key (required unless --levelled)")
	f.BoolVar(&opts.levelled, "levelled", false, "run without a bootstrapping key")
	f.IntVar(&opts.bits, "bits", 2, "cleartext bits")
	f.IntVar(&opts.padding, "padding", 3, "padding bits")
	f.IntVar(&opts.workers, "workers", 4, "number of worker goroutines")
	f.StringVar(&opts.redisAddr, "redis", "localhost:6379", "Redis address")
	f.IntVar(&opts.redisDB, "redis-db", 0, "Redis database number")
	f.StringVar(&opts.queueName, "queue", "default", "queue name")
	f.StringVar(&opts.storagePath, "storage", "/tmp/torus-storage", "ciphertext storage path")
	f.StringVar(&opts.storageKind, "storage-kind", "file", "ciphertext storage backend: file, badger or memory")
	f.StringVar(&opts.metricsAddr, "metrics", ":9090", "health and metrics listen address; empty disables")
	return cmd
}

func openStorage(kind, path string) (storage.Storage, error) {
	switch kind {
	case "file":
		return storage.NewFileStorage(path)
	case "badger":
		return storage.NewBadgerStorage(storage.BadgerConfig{Path: path})
	case "memory":
		return storage.NewMemoryStorage(1024), nil
	default:
		return nil, fmt.Errorf("unknown storage kind %q", kind)
	}
}

// loadWorkerKey returns the bootstrapping key a worker evaluates with, or
// nil for a levelled worker. Workers never generate keys.
func loadWorkerKey(opts *workerOptions, params torus.SchemeParameters) (*torus.PublicKey, error) {
	if opts.levelled {
		return nil, nil
	}
	if opts.cache == "" {
		return nil, errors.New("--cache is required unless --levelled is set")
	}
	pk, err := torus.LoadPublicKey(opts.cache, params)
	if err != nil {
		return nil, fmt.Errorf("load bootstrapping key: %w", err)
	}
	return pk, nil
}

func runWorker(ctx context.Context, log *zap.Logger, opts *workerOptions) error {
	params, err := lookupPreset(opts.preset)
	if err != nil {
		return err
	}
	enc, err := torus.NewEncodingContext(opts.bits, opts.padding)
	if err != nil {
		return err
	}

	log.Info("worker starting",
		zap.String("preset", opts.preset),
		zap.Int("workers", opts.workers),
		zap.String("redis", opts.redisAddr),
		zap.String("storage", opts.storagePath),
		zap.String("storage_kind", opts.storageKind),
	)

	pk, err := loadWorkerKey(opts, params)
	if err != nil {
		return err
	}

	q, err := queue.NewRedisQueue(queue.RedisConfig{Addr: opts.redisAddr, DB: opts.redisDB}, opts.queueName)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer q.Close()

	store, err := openStorage(opts.storageKind, opts.storagePath)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	pool, err := worker.New(worker.Config{
		Workers:   opts.workers,
		Encoding:  enc,
		PublicKey: pk,
		Logger:    log,
	}, q, store)
	if err != nil {
		return err
	}
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	var server *http.Server
	if opts.metricsAddr != "" {
		server = &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           metricsHandler(pool),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics server starting", zap.String("addr", opts.metricsAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if err := pool.Stop(); err != nil {
		return fmt.Errorf("stop workers: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

func metricsHandler(pool *worker.Pool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "# HELP torus_jobs_total Evaluation jobs processed.\n")
		fmt.Fprintf(w, "# TYPE torus_jobs_total counter\n")
		fmt.Fprintf(w, "torus_jobs_total{status=\"success\"} %d\n", pool.Succeeded())
		fmt.Fprintf(w, "torus_jobs_total{status=\"failure\"} %d\n", pool.Failed())
	})
	return mux
}

