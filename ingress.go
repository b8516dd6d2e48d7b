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

	"github.com/sirupsen/logrus"

	"github.com/wagerops/p2pqueue/internal/apierror"
	"github.com/wagerops/p2pqueue/model"
)

// Submit validates and enqueues a new withdrawal or deposit request. The
// item enters the store as pending with zero attempts, and an asynchronous
// matching pass is triggered; the caller is never blocked on matching.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - req *SubmitRequest: The submission to validate and enqueue.
//
// Returns:
// - *model.QueueItem: A snapshot of the newly created item.
// - error: INVALID_REQUEST if the submission is malformed.
func (e *Engine) Submit(ctx context.Context, req *SubmitRequest) (*model.QueueItem, error) {
	ctx, span := tracer.Start(ctx, "Submit")
	defer span.End()

	priority := req.Priority
	if priority == 0 {
		priority = model.PriorityNormal
	}

	now := e.now()
	item := &model.QueueItem{
		ItemID:           model.GenerateUUIDWithSuffix("qitem"),
		Kind:             req.Kind,
		CustomerID:       req.CustomerID,
		Amount:           req.Amount,
		PaymentType:      req.PaymentType,
		PaymentDetails:   req.PaymentDetails,
		Priority:         priority,
		Status:           model.StatusPending,
		Attempts:         0,
		CreatedAt:        now,
		LastTransitionAt: now,
	}
	if err := item.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidRequest, err.Error(), req)
	}

	if err := e.store.Insert(item); err != nil {
		return nil, err
	}

	e.recordAudit(ctx, EventItemSubmitted, map[string]interface{}{
		"item_id":      item.ItemID,
		"kind":         string(item.Kind),
		"customer_id":  item.CustomerID,
		"amount":       item.Amount.String(),
		"payment_type": item.PaymentType,
	}, riskHintForAmount(item.Amount))

	e.triggerMatchingPass(ctx, item)
	return item.Copy(), nil
}

// triggerMatchingPass schedules a matching pass through the task queue so
// submission latency is never tied to matching latency. The periodic pass
// covers deployments running without a task queue.
func (e *Engine) triggerMatchingPass(ctx context.Context, item *model.QueueItem) {
	if e.queue == nil {
		return
	}
	if err := e.queue.EnqueueMatchingPass(ctx, item); err != nil {
		logrus.Warnf("failed to trigger matching pass for %s, periodic pass will pick it up: %v", item.ItemID, err)
	}
}

// Cancel transitions a pending item to cancelled. Cancellation is only
// permitted pre-match: once an item is matched or terminal the caller gets
// CONFLICT and must wait for settlement or timeout.
func (e *Engine) Cancel(ctx context.Context, itemID string) error {
	ctx, span := tracer.Start(ctx, "Cancel")
	defer span.End()

	item, err := e.store.Transition(itemID, model.StatusPending, model.StatusCancelled)
	if err != nil {
		if apierror.Is(err, apierror.ErrNotFound) {
			return err
		}
		return apierror.NewAPIError(apierror.ErrConflict, "queue item can only be cancelled while pending", itemID)
	}

	e.recordAudit(ctx, EventItemCancelled, map[string]interface{}{
		"item_id":     item.ItemID,
		"customer_id": item.CustomerID,
		"amount":      item.Amount.String(),
	}, riskHintForAmount(item.Amount))
	e.notify(ctx, item.CustomerID, EventItemCancelled, map[string]interface{}{"item_id": item.ItemID})
	return nil
}

// GetStatus returns a read-only snapshot of a queue item, or NOT_FOUND for
// unknown IDs (including terminal items already purged by cleanup).
func (e *Engine) GetStatus(ctx context.Context, itemID string) (*model.QueueItem, error) {
	_, span := tracer.Start(ctx, "GetStatus")
	defer span.End()

	return e.store.Get(itemID)
}

// GetItemFromQueue retrieves a submitted item's trigger task from the task
// queue by its ID, for queue introspection from the dashboard.
func (e *Engine) GetItemFromQueue(itemID string) (*model.QueueItem, error) {
	if e.queue == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "task queue not configured", itemID)
	}
	return e.queue.GetItemFromQueue(itemID)
}
