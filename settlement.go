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
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/internal/request"
	"github.com/wagerops/p2pqueue/model"
)

// dispatchSettlement hands a newly created match to the settlement executor
// without blocking the matching pass. A dispatch failure is only logged: the
// timeout supervisor re-queues both sides if no result ever arrives.
func (e *Engine) dispatchSettlement(match *model.Match) {
	if e.settlement == nil {
		return
	}
	handoff := match.Copy()
	go func() {
		if err := e.settlement.ExecuteSettlement(context.Background(), handoff); err != nil {
			logrus.Warnf("settlement handoff for match %s failed, supervisor will reclaim it: %v", handoff.MatchID, err)
		}
	}()
}

// ResolveSettlement applies an asynchronous settlement result to a match in
// processing. On success the match settles and both items complete; on
// failure the match fails and both items are re-queued or expired under the
// bounded-retry policy.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - matchID string: The match the result belongs to.
// - settled bool: Whether settlement succeeded.
//
// Returns:
// - error: NOT_FOUND for an unknown match, CONFLICT if the match already
//   left processing (e.g. reclaimed by the timeout supervisor).
func (e *Engine) ResolveSettlement(ctx context.Context, matchID string, settled bool) error {
	ctx, span := tracer.Start(ctx, "ResolveSettlement")
	defer span.End()

	match, err := e.store.GetMatch(matchID)
	if err != nil {
		return err
	}

	if !settled {
		conf, err := config.Fetch()
		if err != nil {
			return err
		}
		e.failMatch(ctx, match, "settlement reported failure", conf.Matching.MaxRetries)
		return nil
	}

	updated, err := e.store.TransitionMatch(matchID, model.MatchStatusProcessing, model.MatchStatusSettled)
	if err != nil {
		return err
	}

	for _, itemID := range []string{updated.WithdrawalID, updated.DepositID} {
		item, getErr := e.store.Get(itemID)
		if getErr != nil {
			continue
		}
		if _, trErr := e.store.Transition(itemID, model.StatusMatched, model.StatusCompleted); trErr != nil {
			logrus.Warnf("item %s not completed with match %s: %v", itemID, matchID, trErr)
			continue
		}
		e.notify(ctx, item.CustomerID, EventMatchSettled, map[string]interface{}{
			"item_id":  itemID,
			"match_id": matchID,
			"amount":   updated.Amount.String(),
		})
	}

	e.recordAudit(ctx, EventMatchSettled, map[string]interface{}{
		"match_id":      updated.MatchID,
		"withdrawal_id": updated.WithdrawalID,
		"deposit_id":    updated.DepositID,
		"amount":        updated.Amount.String(),
	}, riskHintForAmount(updated.Amount))
	return nil
}

// HTTPSettlementExecutor posts matches to an external settlement service.
// The service answers out-of-band by calling the settlement-result endpoint,
// which lands in Engine.ResolveSettlement.
type HTTPSettlementExecutor struct {
	Url     string
	Headers map[string]string
}

// NewHTTPSettlementExecutor builds the production executor from
// configuration. A missing URL yields a no-op executor so the engine can run
// match-only in staging environments.
func NewHTTPSettlementExecutor(conf *config.Configuration) *HTTPSettlementExecutor {
	return &HTTPSettlementExecutor{
		Url:     conf.Settlement.Url,
		Headers: conf.Settlement.Headers,
	}
}

func (x *HTTPSettlementExecutor) ExecuteSettlement(ctx context.Context, match *model.Match) error {
	if x.Url == "" {
		logrus.Infof("no settlement endpoint configured, match %s left to manual settlement", match.MatchID)
		return nil
	}

	payload, err := request.ToJsonReq(match)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", x.Url, payload)
	if err != nil {
		return err
	}
	for key, value := range x.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	if _, err := request.Call(req, &response); err != nil {
		return err
	}
	return nil
}
