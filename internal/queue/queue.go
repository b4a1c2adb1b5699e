// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package queue carries ciphertext evaluation jobs between producers and the
// worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors.
var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrJobNotFound = errors.New("job not found")
	ErrClosed      = errors.New("queue closed")
)

// JobStatus represents the state of a job.
type JobStatus uint8

const (
	StatusPending JobStatus = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Op names the evaluator operation a job runs.
type Op uint8

const (
	OpAdd Op = iota
	OpAddScalar
	OpMulScalar
	OpMulAndBootstrap
	OpRelu
	OpRefresh
)

func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpAddScalar:
		return "add_scalar"
	case OpMulScalar:
		return "mul_scalar"
	case OpMulAndBootstrap:
		return "mul_and_bootstrap"
	case OpRelu:
		return "relu"
	case OpRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// Binary reports whether op reads a second ciphertext operand.
func (op Op) Binary() bool {
	return op == OpAdd || op == OpMulAndBootstrap
}

// Bootstraps reports whether op needs a bootstrapping key.
func (op Op) Bootstraps() bool {
	return op == OpMulAndBootstrap || op == OpRelu || op == OpRefresh
}

// Job is one evaluation request. Operands and the result are storage handles
// of serialized ciphertexts.
type Job struct {
	ID           string    `json:"id"`
	Operation    Op        `json:"operation"`
	LHSHandle    string    `json:"lhs_handle"`
	RHSHandle    string    `json:"rhs_handle,omitempty"`
	Scalar       uint64    `json:"scalar,omitempty"`
	ResultHandle string    `json:"result_handle,omitempty"`
	Status       JobStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Queue defines the interface for job queue operations.
type Queue interface {
	// Push adds a job to the queue.
	Push(ctx context.Context, job *Job) error
	// Pop blocks until a job is available or ctx is done.
	Pop(ctx context.Context) (*Job, error)
	// Update stores the job's current status and result.
	Update(ctx context.Context, job *Job) error
	// Get retrieves a job by ID.
	Get(ctx context.Context, id string) (*Job, error)
	// Close releases the queue.
	Close() error
}
