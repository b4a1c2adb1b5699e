// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue backed by a buffered channel of job
// IDs. Jobs are stored by value, so callers can keep mutating their copy.
type MemoryQueue struct {
	pending chan string

	mu     sync.RWMutex
	jobs   map[string]Job
	closed bool
	done   chan struct{}
}

// NewMemoryQueue returns a queue holding up to capacity pending jobs; Push
// blocks when it is full.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{
		pending: make(chan string, capacity),
		jobs:    make(map[string]Job),
		done:    make(chan struct{}),
	}
}

func (q *MemoryQueue) Push(ctx context.Context, job *Job) error {
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	job.Status = StatusPending

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.jobs[job.ID] = *job
	q.mu.Unlock()

	select {
	case q.pending <- job.ID:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (*Job, error) {
	select {
	case id := <-q.pending:
		return q.Get(ctx, id)
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Update(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	job.UpdatedAt = time.Now()
	q.jobs[job.ID] = *job
	return nil
}

func (q *MemoryQueue) Get(_ context.Context, id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

// Len returns the number of jobs waiting to be popped.
func (q *MemoryQueue) Len() int {
	return len(q.pending)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
