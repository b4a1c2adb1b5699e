// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// jobTTL bounds how long finished jobs stay readable.
const jobTTL = 24 * time.Hour

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisQueue implements Queue on a Redis list of job IDs, with each job's
// JSON record under its own key.
type RedisQueue struct {
	client    *redis.Client
	queueKey  string
	jobPrefix string
}

// NewRedisQueue connects to Redis and checks the connection.
func NewRedisQueue(cfg RedisConfig, queueName string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisQueue{
		client:    client,
		queueKey:  "torus:queue:" + queueName,
		jobPrefix: "torus:job:" + queueName + ":",
	}, nil
}

func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	job.Status = StatusPending

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.jobPrefix+job.ID, data, jobTTL)
	pipe.LPush(ctx, q.queueKey, job.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*Job, error) {
	result, err := q.client.BRPop(ctx, 0, q.queueKey).Result()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, redis.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("pop job: %w", err)
	}

	if len(result) < 2 {
		return nil, ErrQueueEmpty
	}
	return q.Get(ctx, result[1])
}

func (q *RedisQueue) Update(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := q.client.Set(ctx, q.jobPrefix+job.ID, data, jobTTL).Err(); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, q.jobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
