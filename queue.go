/*
Copyright 2025 WagerOps Authors.

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

package p2pqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/hibiken/asynq"

	"github.com/wagerops/p2pqueue/config"
	redis_db "github.com/wagerops/p2pqueue/internal/redis-db"
	"github.com/wagerops/p2pqueue/model"
)

// Queue wraps the asynq client and inspector used for matching triggers,
// audit event delivery and customer webhooks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueMatchingPass schedules an asynchronous matching pass triggered by a
// freshly submitted item. Submissions are spread across the matching queues
// by customer ID, so all items of one customer trigger passes serially within
// the same queue while distinct customers fan out.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - item *model.QueueItem: The submission that triggered the pass.
//
// Returns:
// - error: An error if the task could not be enqueued.
func (q *Queue) EnqueueMatchingPass(ctx context.Context, item *model.QueueItem) error {
	ctx, span := tracer.Start(ctx, "Adding Matching Trigger To Redis Queue")
	defer span.End()

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	task, err := q.matchingTask(item, payload)
	if err != nil {
		return err
	}
	info, err := q.Client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued matching trigger: %+v", item.ItemID)

	return nil
}

// matchingTask builds the trigger task and assigns it to one of the matching
// queues by hashing the customer ID.
func (q *Queue) matchingTask(item *model.QueueItem, payload []byte) (*asynq.Task, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	queueIndex := hashCustomerID(item.CustomerID) % cnf.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cnf.Queue.MatchingQueue, queueIndex+1)

	taskOptions := []asynq.Option{asynq.TaskID(item.ItemID), asynq.Queue(queueName)}
	return asynq.NewTask(queueName, payload, taskOptions...), nil
}

// ProcessMatchingTrigger handles a matching-trigger task by running a full
// matching pass over this engine's store. The pass is global, so a trigger
// enqueued for one item may pair any compatible pair in the pools; duplicate
// triggers only cost a scan. The handler must be registered in the process
// that owns the queue store, which is why the server consumes the matching
// queues itself rather than leaving them to the delivery workers.
func (e *Engine) ProcessMatchingTrigger(ctx context.Context, t *asynq.Task) error {
	ctx, span := tracer.Start(ctx, "Process Matching Trigger From Redis Queue")
	defer span.End()

	var item model.QueueItem
	if err := json.Unmarshal(t.Payload(), &item); err != nil {
		return err
	}

	matches, err := e.RunMatchingPass(ctx)
	if err != nil {
		log.Printf("Matching pass for trigger %s pushed back for retry due to error: %v", item.ItemID, err)
		return err
	}

	log.Printf(" [*] Matching pass complete, %d pair(s) created", len(matches))
	return nil
}

// EnqueueAuditEvent hands an audit event to the audit queue. asynq's retry
// policy keeps redelivering until the audit worker confirms the post, which
// is the second half of the at-least-once guarantee.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - event *AuditEvent: The audit event to deliver.
//
// Returns:
// - error: An error if the task could not be enqueued.
func (q *Queue) EnqueueAuditEvent(ctx context.Context, event *AuditEvent) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(event.EventID),
		asynq.Queue(cfg.Queue.AuditQueue),
		asynq.MaxRetry(cfg.Queue.MaxAuditRetries),
	}
	task := asynq.NewTask(cfg.Queue.AuditQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// EnqueueWebhook queues a customer notification for delivery by the webhook
// worker.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - webhook NewWebhook: The notification to deliver.
//
// Returns:
// - error: An error if the task could not be enqueued.
func (q *Queue) EnqueueWebhook(ctx context.Context, webhook NewWebhook) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	if cfg.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := json.Marshal(webhook)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{asynq.Queue(cfg.Queue.WebhookQueue)}
	task := asynq.NewTask(cfg.Queue.WebhookQueue, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// hashCustomerID returns a consistent hash value for a customer ID.
//
// Parameters:
// - customerID string: The customer ID to hash.
//
// Returns:
// - int: The hash value of the customer ID.
func hashCustomerID(customerID string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(customerID))
	return int(hasher.Sum32())
}

// GetItemFromQueue retrieves a queue item's pending trigger task by its ID,
// for queue introspection from the dashboard.
//
// Parameters:
// - itemID string: The ID of the item to retrieve.
//
// Returns:
// - *model.QueueItem: A pointer to the QueueItem if a trigger is still queued.
// - error: An error if the lookup could not be performed.
func (q *Queue) GetItemFromQueue(itemID string) (*model.QueueItem, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	// Iterate over all specific matching queues
	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.MatchingQueue, i)
		task, err := q.Inspector.GetTaskInfo(queueName, itemID)
		if err == nil && task != nil {
			var item model.QueueItem
			if err := json.Unmarshal(task.Payload, &item); err != nil {
				return nil, err
			}
			return &item, nil
		}
	}
	return nil, nil // Return nil if the trigger is not found in any queue
}
