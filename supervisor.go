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

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/model"
)

// RunTimeoutSweep scans for items that exceeded the match timeout and for
// matches whose settlement never confirmed.
//
// A pending item past the match timeout with retries left gets its attempt
// counter incremented, its priority escalated one level (capped at critical)
// and its wait clock reset. It stays pending and becomes more likely to win
// future scoring through the wait-time bonus. With retries exhausted it
// expires and the customer is notified, exactly once, on the expiry itself.
//
// An active match older than the settlement timeout is failed and both sides
// are re-queued or expired depending on their remaining retries.
//
// Every transition uses the store's compare-and-swap; a lost race against the
// matching engine or an ingress cancel is silently skipped, not retried
// within the same sweep.
func (e *Engine) RunTimeoutSweep(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RunTimeoutSweep")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	now := e.now()
	matchTimeout := conf.Matching.MatchTimeout()
	maxRetries := conf.Matching.MaxRetries

	for _, item := range e.store.ListByStatus(model.StatusPending) {
		if now.Sub(item.WaitingSince()) <= matchTimeout {
			continue
		}

		if item.Attempts < maxRetries {
			updated, err := e.store.Mutate(item.ItemID, model.StatusPending, func(it *model.QueueItem) {
				it.Attempts++
				it.Priority = it.Priority.Escalate()
				it.LastTransitionAt = now
			})
			if err != nil {
				continue // lost the race to a matching pass or a cancel
			}
			e.recordAudit(ctx, EventItemRetried, map[string]interface{}{
				"item_id":  updated.ItemID,
				"attempts": updated.Attempts,
				"priority": int(updated.Priority),
			}, riskHintForAmount(updated.Amount))
		} else {
			expired, err := e.store.Transition(item.ItemID, model.StatusPending, model.StatusExpired)
			if err != nil {
				continue
			}
			e.expireNotify(ctx, expired)
		}
	}

	settlementTimeout := conf.Matching.SettlementTimeout()
	for _, match := range e.store.ListMatches(model.MatchStatusProposed, model.MatchStatusProcessing) {
		if now.Sub(match.ProposedAt) <= settlementTimeout {
			continue
		}
		e.failMatch(ctx, match, "settlement timed out", maxRetries)
	}

	return nil
}

// expireNotify records the audit event and dispatches the single expiry
// notification for an item that exhausted its retries.
func (e *Engine) expireNotify(ctx context.Context, item *model.QueueItem) {
	e.recordAudit(ctx, EventItemExpired, map[string]interface{}{
		"item_id":     item.ItemID,
		"customer_id": item.CustomerID,
		"attempts":    item.Attempts,
		"amount":      item.Amount.String(),
	}, riskHintForAmount(item.Amount))
	e.notify(ctx, item.CustomerID, EventItemExpired, map[string]interface{}{"item_id": item.ItemID})
}

// failMatch moves an active match to failed and releases both sides back to
// the queue (or expires them when retries are exhausted). Lost races are
// skipped: if the match already settled concurrently there is nothing to do.
func (e *Engine) failMatch(ctx context.Context, match *model.Match, reason string, maxRetries int) {
	if _, err := e.store.TransitionMatch(match.MatchID, match.Status, model.MatchStatusFailed); err != nil {
		return
	}

	logrus.Warnf("match %s failed: %s", match.MatchID, reason)
	e.recordAudit(ctx, EventMatchFailed, map[string]interface{}{
		"match_id":      match.MatchID,
		"withdrawal_id": match.WithdrawalID,
		"deposit_id":    match.DepositID,
		"reason":        reason,
	}, riskHintForAmount(match.Amount))

	e.requeueOrExpire(ctx, match.WithdrawalID, maxRetries)
	e.requeueOrExpire(ctx, match.DepositID, maxRetries)
}

// requeueOrExpire returns a matched item to the pending pool after a failed
// settlement, counting the failure as a match attempt, or expires it when no
// retries remain.
func (e *Engine) requeueOrExpire(ctx context.Context, itemID string, maxRetries int) {
	item, err := e.store.Get(itemID)
	if err != nil || item.Status != model.StatusMatched {
		return
	}

	if item.Attempts < maxRetries {
		// One atomic update: a matching pass must never re-claim the item
		// between the re-queue and the attempt being charged.
		updated, err := e.store.TransitionMutate(itemID, model.StatusMatched, model.StatusPending, func(it *model.QueueItem) {
			it.Attempts++
		})
		if err != nil {
			return
		}
		e.recordAudit(ctx, EventItemRetried, map[string]interface{}{
			"item_id":  updated.ItemID,
			"attempts": updated.Attempts,
			"priority": int(updated.Priority),
		}, riskHintForAmount(updated.Amount))
	} else {
		expired, err := e.store.Transition(itemID, model.StatusMatched, model.StatusExpired)
		if err != nil {
			return
		}
		e.expireNotify(ctx, expired)
	}
}
