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
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/internal/request"
	"github.com/wagerops/p2pqueue/model"
)

// Event kinds recorded to the audit sink and dispatched to customers. Every
// state transition produces exactly one of these.
const (
	EventItemSubmitted = "item.submitted"
	EventItemMatched   = "item.matched"
	EventItemRetried   = "item.retried"
	EventItemExpired   = "item.expired"
	EventItemCancelled = "item.cancelled"
	EventMatchProposed = "match.proposed"
	EventMatchSettled  = "match.settled"
	EventMatchFailed   = "match.failed"
)

// AuditEvent is the unit handed to the audit/compliance sink. The risk hint
// is advisory; the sink owns real risk scoring.
type AuditEvent struct {
	EventID    string                 `json:"event_id"`
	EventType  string                 `json:"event_type"`
	RiskHint   float64                `json:"risk_hint"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// recordAudit delivers an event to the audit sink with bounded retries.
// Delivery is at-least-once: after exhausting retries the event is logged as
// a local fallback warning, never dropped silently. The store mutation has
// already completed by the time this runs, so a slow sink cannot block a
// state transition.
func (e *Engine) recordAudit(ctx context.Context, eventType string, payload map[string]interface{}, riskHint float64) {
	if e.audit == nil {
		return
	}

	event := &AuditEvent{
		EventID:    model.GenerateUUIDWithSuffix("audit"),
		EventType:  eventType,
		RiskHint:   riskHint,
		Payload:    payload,
		OccurredAt: e.now(),
	}

	maxRetries := 3
	if conf, err := config.Fetch(); err == nil {
		maxRetries = conf.Queue.MaxAuditRetries
	}

	operation := func() error {
		return e.audit.RecordEvent(ctx, event)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		logrus.Warnf("audit event %s (%s) undelivered after %d attempts, payload retained in log: %v",
			event.EventID, event.EventType, maxRetries+1, err)
		logrus.WithField("audit_event", event).Warn("audit fallback record")
	}
}

// notify dispatches a best-effort customer notification. Failures are logged
// and never surfaced to the mutating path.
func (e *Engine) notify(ctx context.Context, customerID, eventKind string, detail map[string]interface{}) {
	if e.notifier == nil || customerID == "" {
		return
	}
	if err := e.notifier.Notify(ctx, customerID, eventKind, detail); err != nil {
		logrus.Warnf("notification %s for customer %s failed: %v", eventKind, customerID, err)
	}
}

// riskHintForAmount derives the advisory risk hint from the transaction
// amount. Thresholds mirror the compliance team's manual review bands.
func riskHintForAmount(amount decimal.Decimal) float64 {
	switch {
	case amount.GreaterThanOrEqual(decimal.NewFromInt(10000)):
		return 0.8
	case amount.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		return 0.4
	default:
		return 0.1
	}
}

// queueAuditSink is the production AuditSink: events are enqueued to the
// audit task queue, and the audit worker posts them to the external sink.
// asynq's own retry policy gives a second at-least-once layer on top of the
// engine's bounded retry.
type queueAuditSink struct {
	queue *Queue
}

func (s *queueAuditSink) RecordEvent(ctx context.Context, event *AuditEvent) error {
	return s.queue.EnqueueAuditEvent(ctx, event)
}

// ProcessAuditEvent handles an audit task from the queue by posting the
// event to the configured audit/compliance endpoint.
//
// Parameters:
// - _ context.Context: The context for the operation.
// - task *asynq.Task: The task containing the audit event.
//
// Returns:
// - error: An error if delivery fails, which triggers an asynq retry.
func ProcessAuditEvent(_ context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Audit.Url == "" {
		return nil
	}

	var event AuditEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		logrus.Errorf("error unmarshaling audit task payload: %v", err)
		return err
	}

	payload, err := request.ToJsonReq(&event)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", conf.Audit.Url, payload)
	if err != nil {
		return err
	}
	for key, value := range conf.Audit.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	if _, err := request.Call(req, &response); err != nil {
		logrus.Warnf("audit sink rejected event %s: %v", event.EventID, err)
		return err
	}
	return nil
}
