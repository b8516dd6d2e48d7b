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
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/model"
)

func newMiniredisQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})

	queueOptions := asynq.RedisClientOpt{Addr: mr.Addr()}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
	}
}

func TestEnqueueMatchingPassTrigger(t *testing.T) {
	q := newMiniredisQueue(t)

	item := getQueueItemMock(model.KindWithdrawal, 100, "bank_transfer", time.Now())
	require.NoError(t, q.EnqueueMatchingPass(context.Background(), item))

	// The trigger carries the item ID so duplicate submissions collapse.
	found, err := q.GetItemFromQueue(item.ItemID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, item.ItemID, found.ItemID)
	assert.Equal(t, item.CustomerID, found.CustomerID)
}

func TestEnqueueMatchingPassFansOutByCustomer(t *testing.T) {
	conf, err := config.Fetch()
	if err != nil {
		config.MockConfig(&config.Configuration{})
		conf, _ = config.Fetch()
	}

	// The queue index is stable for a customer and always in range.
	for i := 0; i < 50; i++ {
		customerID := fmt.Sprintf("cust_%d", i)
		first := hashCustomerID(customerID) % conf.Queue.NumberOfQueues
		second := hashCustomerID(customerID) % conf.Queue.NumberOfQueues
		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, conf.Queue.NumberOfQueues)
	}
}

func TestEnqueueMatchingPassErrorsWithoutConfig(t *testing.T) {
	q := newMiniredisQueue(t)
	item := getQueueItemMock(model.KindWithdrawal, 100, "bank_transfer", time.Now())

	config.ConfigStore = atomic.Value{}
	defer config.MockConfig(&config.Configuration{})

	// Must surface the config error, not hand asynq a nil task.
	err := q.EnqueueMatchingPass(context.Background(), item)
	assert.Error(t, err)
}

func TestProcessMatchingTriggerPairsOwnStore(t *testing.T) {
	engine, clock := newTestEngine()
	now := clock.Now()

	w := insertPending(engine.store, "qitem_w1", model.KindWithdrawal, 100, "bank_transfer", now)
	insertPending(engine.store, "qitem_d1", model.KindDeposit, 100, "bank_transfer", now)

	payload, err := json.Marshal(w)
	require.NoError(t, err)
	task := asynq.NewTask("new:matching_1", payload)

	require.NoError(t, engine.ProcessMatchingTrigger(context.Background(), task))

	// The pass ran against the store holding the submitted items, so the
	// trigger produced a real pair instead of scanning an empty pool.
	stored, err := engine.store.Get("qitem_w1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusMatched, stored.Status)
	assert.Len(t, engine.store.ListMatches(), 1)
}

func TestProcessMatchingTriggerRejectsMalformedPayload(t *testing.T) {
	engine, _ := newTestEngine()

	task := asynq.NewTask("new:matching_1", []byte("{not json"))
	assert.Error(t, engine.ProcessMatchingTrigger(context.Background(), task))
}

func TestEnqueueAuditEventDeduplicatesByEventID(t *testing.T) {
	q := newMiniredisQueue(t)

	event := &AuditEvent{
		EventID:    "audit_1",
		EventType:  EventItemSubmitted,
		OccurredAt: time.Now(),
	}
	require.NoError(t, q.EnqueueAuditEvent(context.Background(), event))

	// Same event ID again: asynq rejects the duplicate task ID.
	err := q.EnqueueAuditEvent(context.Background(), event)
	assert.Error(t, err)
}

func TestEnqueueWebhookSkippedWithoutEndpoint(t *testing.T) {
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})

	queueOptions := asynq.RedisClientOpt{Addr: mr.Addr()}
	q := &Queue{Client: asynq.NewClient(queueOptions), Inspector: asynq.NewInspector(queueOptions)}

	err := q.EnqueueWebhook(context.Background(), NewWebhook{Event: EventItemMatched})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys(), "no task should be enqueued without a webhook endpoint")
}

func TestGetItemFromQueueNotQueued(t *testing.T) {
	q := newMiniredisQueue(t)

	found, err := q.GetItemFromQueue("qitem_missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}
