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

// Package p2pqueue implements the peer-to-peer transaction reconciliation
// queue behind the operations dashboard: pending withdrawals and deposits are
// scored for compatibility, paired by a greedy matching pass, supervised for
// timeouts with bounded retries, and archived after cleanup.
package p2pqueue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/internal/archive"
	"github.com/wagerops/p2pqueue/internal/cache"
	redis_db "github.com/wagerops/p2pqueue/internal/redis-db"
	"github.com/wagerops/p2pqueue/model"
	"github.com/wagerops/p2pqueue/store"

	"github.com/redis/go-redis/v9"
)

var tracer = otel.Tracer("p2pqueue.engine")

// SettlementExecutor hands a newly created match to the external settlement
// collaborator. Execution is asynchronous: the engine never blocks on the
// result, which arrives later through Engine.ResolveSettlement.
type SettlementExecutor interface {
	ExecuteSettlement(ctx context.Context, match *model.Match) error
}

// AuditSink receives an event for every state transition. Delivery must be
// at-least-once; the engine retries with bounded backoff before falling back
// to a local warning log.
type AuditSink interface {
	RecordEvent(ctx context.Context, event *AuditEvent) error
}

// ArchivalStore receives terminal records from the cleanup scheduler. A
// record is only removed from the queue store after Archive returns nil.
type ArchivalStore interface {
	Archive(ctx context.Context, records []*model.ArchivedRecord) error
}

// NotificationDispatcher delivers best-effort customer notifications.
// Failures are logged but never block engine state transitions.
type NotificationDispatcher interface {
	Notify(ctx context.Context, customerID, eventKind string, detail map[string]interface{}) error
}

// Engine owns the queue store and coordinates the matching pass, timeout
// supervisor, cleanup scheduler and ingress operations. All state mutation
// goes through the store's compare-and-swap primitive, so every worker is
// safe to run concurrently; no lock is ever held across a collaborator call.
type Engine struct {
	store      *store.Store
	queue      *Queue
	cache      cache.Cache
	redis      redis.UniversalClient
	settlement SettlementExecutor
	audit      AuditSink
	notifier   NotificationDispatcher
	archive    ArchivalStore
	clock      func() time.Time
}

// SubmitRequest carries a validated submission into the engine.
type SubmitRequest struct {
	Kind           model.ItemKind
	CustomerID     string
	Amount         decimal.Decimal
	PaymentType    string
	PaymentDetails map[string]interface{}
	Priority       model.Priority
}

// NewEngine initializes a production engine from the loaded configuration:
// redis client, task queue, stats cache, archival store and the provided
// settlement executor. Audit events and customer notifications are delivered
// through the task queue.
//
// Parameters:
// - settlement SettlementExecutor: The external settlement collaborator.
//
// Returns:
// - *Engine: A pointer to the newly created Engine instance.
// - error: An error if any of the initialization steps fail.
func NewEngine(settlement SettlementExecutor) (*Engine, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	redisClient, err := redis_db.NewRedisClient(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	newQueue := NewQueue(conf)
	statsCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		store:      store.New(),
		queue:      newQueue,
		cache:      statsCache,
		redis:      redisClient.Client(),
		settlement: settlement,
		archive:    archive.NewFromConfig(conf),
		clock:      time.Now,
	}
	engine.audit = &queueAuditSink{queue: newQueue}
	engine.notifier = &webhookDispatcher{queue: newQueue}
	return engine, nil
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
