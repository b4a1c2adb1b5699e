// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package worker runs ciphertext evaluation jobs from a queue on a pool of
// goroutines, each with its own evaluator.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/torus"
	"github.com/luxfi/torus/internal/queue"
	"github.com/luxfi/torus/internal/storage"
)

// Errors returned by the pool.
var (
	ErrRunning    = errors.New("pool already running")
	ErrNotRunning = errors.New("pool not running")
)

// popRetryDelay is how long a worker waits after a failed Pop.
const popRetryDelay = time.Second

// Config configures a Pool.
type Config struct {
	// Workers is the number of goroutines. Defaults to 1.
	Workers int
	// Encoding is the session encoding every job's ciphertexts use.
	Encoding torus.EncodingContext
	// PublicKey enables bootstrapped operations. Without it only levelled
	// operations succeed.
	PublicKey *torus.PublicKey
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Pool evaluates queued jobs. Evaluators are not safe for concurrent use,
// so each worker goroutine builds its own.
type Pool struct {
	cfg   Config
	queue queue.Queue
	store storage.Storage
	log   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group

	succeeded atomic.Int64
	failed    atomic.Int64
}

// New validates cfg and returns a stopped pool.
func New(cfg Config, q queue.Queue, store storage.Storage) (*Pool, error) {
	if q == nil || store == nil {
		return nil, errors.New("worker: queue and storage are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	// Fail early on an encoding the evaluators would reject.
	if _, err := newEvaluator(cfg); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	return &Pool{
		cfg:   cfg,
		queue: q,
		store: store,
		log:   cfg.Logger.Named("worker"),
	}, nil
}

func newEvaluator(cfg Config) (*torus.Evaluator, error) {
	if cfg.PublicKey == nil {
		return torus.NewLevelledEvaluator(cfg.Encoding)
	}
	return torus.NewEvaluator(cfg.PublicKey, cfg.Encoding)
}

// Start launches the workers. They run until Stop or until ctx is done.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.group != nil {
		return ErrRunning
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)

	p.log.Info("starting workers",
		zap.Int("workers", p.cfg.Workers),
		zap.Bool("bootstrap", p.cfg.PublicKey != nil),
	)

	for i := 0; i < p.cfg.Workers; i++ {
		eval, err := newEvaluator(p.cfg)
		if err != nil {
			p.cancel()
			return err
		}
		id := i
		p.group.Go(func() error {
			return p.run(ctx, id, eval)
		})
	}
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.group == nil {
		return ErrNotRunning
	}

	p.cancel()
	err := p.group.Wait()
	p.group, p.cancel = nil, nil

	p.log.Info("worker pool stopped",
		zap.Int64("succeeded", p.succeeded.Load()),
		zap.Int64("failed", p.failed.Load()),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Succeeded returns the number of completed jobs.
func (p *Pool) Succeeded() int64 { return p.succeeded.Load() }

// Failed returns the number of failed jobs.
func (p *Pool) Failed() int64 { return p.failed.Load() }

func (p *Pool) run(ctx context.Context, id int, eval *torus.Evaluator) error {
	log := p.log.With(zap.Int("worker", id))
	log.Debug("worker started")

	for {
		job, err := p.queue.Pop(ctx)
		switch {
		case ctx.Err() != nil:
			log.Debug("worker stopping")
			return nil
		case errors.Is(err, queue.ErrClosed):
			log.Debug("queue closed, worker stopping")
			return nil
		case err != nil:
			log.Warn("pop job failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(popRetryDelay):
			}
			continue
		}

		p.process(ctx, log, eval, job)
	}
}

// process runs a popped job to completion. Stop does not abort it: the job's
// result and status are recorded even after the pool context is cancelled.
func (p *Pool) process(ctx context.Context, log *zap.Logger, eval *torus.Evaluator, job *queue.Job) {
	ctx = context.WithoutCancel(ctx)
	log = log.With(zap.String("job", job.ID), zap.Stringer("op", job.Operation))
	log.Debug("processing job")

	job.Status = queue.StatusProcessing
	if err := p.queue.Update(ctx, job); err != nil {
		log.Warn("mark job processing failed", zap.Error(err))
	}

	handle, err := p.evaluate(ctx, eval, job)
	if err != nil {
		job.Status = queue.StatusFailed
		job.Error = err.Error()
		p.failed.Add(1)
		log.Info("job failed", zap.Error(err))
	} else {
		job.Status = queue.StatusCompleted
		job.ResultHandle = string(handle)
		p.succeeded.Add(1)
		log.Debug("job completed")
	}

	if err := p.queue.Update(ctx, job); err != nil {
		log.Warn("record job result failed", zap.Error(err))
	}
}

func (p *Pool) load(ctx context.Context, h string) (*torus.Ciphertext, error) {
	data, err := p.store.Load(ctx, storage.Handle(h))
	if err != nil {
		return nil, err
	}
	ct := new(torus.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return ct, nil
}

func (p *Pool) evaluate(ctx context.Context, eval *torus.Evaluator, job *queue.Job) (storage.Handle, error) {
	lhs, err := p.load(ctx, job.LHSHandle)
	if err != nil {
		return "", fmt.Errorf("load lhs: %w", err)
	}

	var rhs *torus.Ciphertext
	if job.Operation.Binary() {
		if rhs, err = p.load(ctx, job.RHSHandle); err != nil {
			return "", fmt.Errorf("load rhs: %w", err)
		}
	}

	var result *torus.Ciphertext
	switch job.Operation {
	case queue.OpAdd:
		result, err = eval.Add(lhs, rhs)
	case queue.OpAddScalar:
		result, err = eval.AddScalar(lhs, job.Scalar)
	case queue.OpMulScalar:
		result, err = eval.MulScalar(lhs, job.Scalar)
	case queue.OpMulAndBootstrap:
		result, err = eval.MulAndBootstrap(lhs, rhs)
	case queue.OpRelu:
		result, err = eval.Relu(lhs)
	case queue.OpRefresh:
		result, err = eval.Refresh(lhs)
	default:
		return "", fmt.Errorf("unsupported operation %s", job.Operation)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", job.Operation, err)
	}

	data, err := result.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	handle, err := p.store.Store(ctx, data)
	if err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return handle, nil
}
