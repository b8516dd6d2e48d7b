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
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/internal/apierror"
	"github.com/wagerops/p2pqueue/model"
)

// pairCandidate is one scored withdrawal/deposit combination considered by a
// matching pass.
type pairCandidate struct {
	withdrawal *model.QueueItem
	deposit    *model.QueueItem
	score      float64
}

// RunMatchingPass examines all pending withdrawals and deposits, scores every
// pairwise combination, and greedily selects the globally best-scoring pair
// repeatedly until no pair reaches the minimum acceptance score.
//
// Both sides of a selected pair are claimed with the store's compare-and-swap
// (pending -> matched). If a concurrent pass already claimed one side the
// pairing is discarded and the surviving side stays eligible for the rest of
// this pass. Given an identical snapshot of pending items the pass produces
// an identical set of matches: candidates are ordered by score, then by the
// longer-waiting pair, then by lexicographically smaller ID pair.
//
// Each created match is handed to the settlement executor without blocking;
// the match moves to processing immediately and the settlement result arrives
// asynchronously via ResolveSettlement.
//
// Returns:
// - []*model.Match: The newly created matches, in selection order.
// - error: An error if configuration could not be loaded.
func (e *Engine) RunMatchingPass(ctx context.Context) ([]*model.Match, error) {
	ctx, span := tracer.Start(ctx, "RunMatchingPass")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	now := e.now()
	withdrawals := e.store.ListPending(model.KindWithdrawal)
	deposits := e.store.ListPending(model.KindDeposit)
	if len(withdrawals) == 0 || len(deposits) == 0 {
		return nil, nil
	}

	candidates := e.scoreCandidates(withdrawals, deposits, conf)
	claimed := make(map[string]struct{})
	var created []*model.Match

	for _, candidate := range candidates {
		if _, taken := claimed[candidate.withdrawal.ItemID]; taken {
			continue
		}
		if _, taken := claimed[candidate.deposit.ItemID]; taken {
			continue
		}

		match := e.claimPair(ctx, candidate, claimed)
		if match == nil {
			continue
		}
		claimed[candidate.withdrawal.ItemID] = struct{}{}
		claimed[candidate.deposit.ItemID] = struct{}{}
		created = append(created, match)
	}

	if len(created) > 0 {
		logrus.Infof("matching pass created %d match(es) from %d withdrawal(s) and %d deposit(s) at %s",
			len(created), len(withdrawals), len(deposits), now.Format("15:04:05"))
	}
	return created, nil
}

// scoreCandidates computes every pairwise score at or above the acceptance
// threshold and sorts them best-first. Withdrawals arrive in ascending ID
// order from the store, which keeps candidate generation deterministic.
func (e *Engine) scoreCandidates(withdrawals, deposits []*model.QueueItem, conf *config.Configuration) []pairCandidate {
	now := e.now()
	matchTimeout := conf.Matching.MatchTimeout()

	candidates := make([]pairCandidate, 0, len(withdrawals)*len(deposits))
	for _, withdrawal := range withdrawals {
		for _, deposit := range deposits {
			score := ScorePair(withdrawal, deposit, now, matchTimeout)
			if score < conf.Matching.MinimumMatchScore {
				continue
			}
			candidates = append(candidates, pairCandidate{withdrawal: withdrawal, deposit: deposit, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return betterCandidate(candidates[i], candidates[j])
	})
	return candidates
}

// betterCandidate orders candidates: higher score first, then the pair whose
// longest-waiting item has waited longer, then the lexicographically smaller
// (withdrawalID, depositID) pair so repeated passes over the same snapshot
// select identically.
func betterCandidate(a, b pairCandidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	aWait := pairWaitingSince(a.withdrawal, a.deposit)
	bWait := pairWaitingSince(b.withdrawal, b.deposit)
	if !aWait.Equal(bWait) {
		return aWait.Before(bWait)
	}
	if a.withdrawal.ItemID != b.withdrawal.ItemID {
		return a.withdrawal.ItemID < b.withdrawal.ItemID
	}
	return a.deposit.ItemID < b.deposit.ItemID
}

// claimPair transitions both sides of a candidate pending -> matched and
// records the match. A lost race on either side aborts the pairing: the side
// that was already claimed elsewhere is marked so later candidates skip it,
// while the rolled-back side stays eligible within this pass.
func (e *Engine) claimPair(ctx context.Context, candidate pairCandidate, claimed map[string]struct{}) *model.Match {
	if _, err := e.store.Transition(candidate.withdrawal.ItemID, model.StatusPending, model.StatusMatched); err != nil {
		claimed[candidate.withdrawal.ItemID] = struct{}{}
		return nil
	}
	if _, err := e.store.Transition(candidate.deposit.ItemID, model.StatusPending, model.StatusMatched); err != nil {
		// Another pass took the deposit; release the withdrawal back to the pool.
		if _, rollbackErr := e.store.Transition(candidate.withdrawal.ItemID, model.StatusMatched, model.StatusPending); rollbackErr != nil {
			logrus.Errorf("failed to release withdrawal %s after lost deposit claim: %v", candidate.withdrawal.ItemID, rollbackErr)
		}
		claimed[candidate.deposit.ItemID] = struct{}{}
		delete(claimed, candidate.withdrawal.ItemID)
		return nil
	}

	match := &model.Match{
		MatchID:      model.GenerateUUIDWithSuffix("match"),
		WithdrawalID: candidate.withdrawal.ItemID,
		DepositID:    candidate.deposit.ItemID,
		Amount:       model.SettledAmount(candidate.withdrawal, candidate.deposit),
		MatchScore:   candidate.score,
		Status:       model.MatchStatusProposed,
		ProposedAt:   e.now(),
	}
	if err := e.store.InsertMatch(match); err != nil {
		e.releasePair(candidate)
		if !apierror.Is(err, apierror.ErrConflict) {
			logrus.Errorf("failed to record match for %s/%s: %v", match.WithdrawalID, match.DepositID, err)
		}
		return nil
	}

	// The engine does not block on settlement: the match moves to processing
	// now and the executor reports back through ResolveSettlement.
	if _, err := e.store.TransitionMatch(match.MatchID, model.MatchStatusProposed, model.MatchStatusProcessing); err != nil {
		logrus.Errorf("failed to move match %s to processing: %v", match.MatchID, err)
	} else {
		match.Status = model.MatchStatusProcessing
	}

	e.recordAudit(ctx, EventMatchProposed, map[string]interface{}{
		"match_id":      match.MatchID,
		"withdrawal_id": match.WithdrawalID,
		"deposit_id":    match.DepositID,
		"amount":        match.Amount.String(),
		"match_score":   match.MatchScore,
	}, riskHintForAmount(match.Amount))

	e.notify(ctx, candidate.withdrawal.CustomerID, EventItemMatched, map[string]interface{}{
		"item_id": match.WithdrawalID, "match_id": match.MatchID, "amount": match.Amount.String(),
	})
	e.notify(ctx, candidate.deposit.CustomerID, EventItemMatched, map[string]interface{}{
		"item_id": match.DepositID, "match_id": match.MatchID, "amount": match.Amount.String(),
	})

	e.dispatchSettlement(match)
	return match.Copy()
}

// releasePair rolls both sides of a failed pairing back to pending.
func (e *Engine) releasePair(candidate pairCandidate) {
	if _, err := e.store.Transition(candidate.withdrawal.ItemID, model.StatusMatched, model.StatusPending); err != nil {
		logrus.Errorf("failed to release withdrawal %s: %v", candidate.withdrawal.ItemID, err)
	}
	if _, err := e.store.Transition(candidate.deposit.ItemID, model.StatusMatched, model.StatusPending); err != nil {
		logrus.Errorf("failed to release deposit %s: %v", candidate.deposit.ItemID, err)
	}
}
