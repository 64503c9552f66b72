/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package orderflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/internal/mailer"
	redis_db "github.com/printwell/orderflow/internal/redis-db"
)

const (
	TypeSendEmail      = "email:send"
	TypeReconcileSweep = "reconcile:sweep"

	emailRetention = 24 * time.Hour
)

// EmailTask is the payload of an email:send task.
type EmailTask struct {
	Kind    mailer.Kind         `json:"kind"`
	OrderID string              `json:"order_id"`
	To      string              `json:"to"`
	Data    mailer.TemplateData `json:"data"`
}

// TaskID is unique per order and milestone so a second enqueue is rejected by the queue.
func (t EmailTask) TaskID() string {
	return t.OrderID + ":" + string(t.Kind)
}

// Queue represents a queue for handling email and sweep tasks.
type Queue struct {
	Client     *asynq.Client
	Inspector  *asynq.Inspector
	emailQueue string
	sweepQueue string
	maxRetry   int
}

// RedisClientOpt converts the configured Redis address into asynq connection options.
func RedisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Username:  redisOption.Username,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
// - error: An error if the Redis address cannot be parsed.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	queueOptions, err := RedisClientOpt(conf)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %w", err)
	}

	maxRetry := conf.Queue.MaxRetryAttempts
	if maxRetry <= 0 {
		maxRetry = config.DefaultMaxRetryAttempts
	}
	emailQueue := conf.Queue.EmailQueue
	if emailQueue == "" {
		emailQueue = config.DefaultEmailQueue
	}
	sweepQueue := conf.Queue.SweepQueue
	if sweepQueue == "" {
		sweepQueue = config.DefaultSweepQueue
	}

	return &Queue{
		Client:     asynq.NewClient(queueOptions),
		Inspector:  asynq.NewInspector(queueOptions),
		emailQueue: emailQueue,
		sweepQueue: sweepQueue,
		maxRetry:   maxRetry,
	}, nil
}

// EnqueueEmail queues a milestone email. A task already queued for the same order
// and milestone is left as is and no error is returned.
func (q *Queue) EnqueueEmail(ctx context.Context, task EmailTask) error {
	ctx, span := tracer.Start(ctx, "Adding Email To Redis Queue")
	defer span.End()

	if !task.Kind.Valid() {
		return fmt.Errorf("unknown email kind %q", task.Kind)
	}
	if task.OrderID == "" {
		return errors.New("email task requires an order id")
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.Client.EnqueueContext(ctx, asynq.NewTask(TypeSendEmail, payload),
		asynq.TaskID(task.TaskID()),
		asynq.Queue(q.emailQueue),
		asynq.MaxRetry(q.maxRetry),
		asynq.Retention(emailRetention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		log.Printf(" [*] Email already queued: %s", task.TaskID())
		return nil
	}
	if err != nil {
		log.Println(err, info)
		span.RecordError(err)
		return err
	}
	log.Printf(" [*] Successfully enqueued %s email for order %s", task.Kind, task.OrderID)
	return nil
}

// NewSweepTask builds the periodic reconciliation task. It never retries;
// a failed sweep waits for the next tick.
func NewSweepTask(conf *config.Configuration) *asynq.Task {
	queue := conf.Queue.SweepQueue
	if queue == "" {
		queue = config.DefaultSweepQueue
	}
	return asynq.NewTask(TypeReconcileSweep, nil, asynq.Queue(queue), asynq.MaxRetry(0))
}

// EnqueueSweep queues a one-off sweep outside the schedule.
func (q *Queue) EnqueueSweep(ctx context.Context) error {
	_, err := q.Client.EnqueueContext(ctx, asynq.NewTask(TypeReconcileSweep, nil), asynq.Queue(q.sweepQueue), asynq.MaxRetry(0))
	return err
}

func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		return err
	}
	return q.Client.Close()
}
