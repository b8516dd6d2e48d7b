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
	"time"

	"github.com/wagerops/p2pqueue/model"
)

// Scoring weights. They sum to 100, so a perfect pair scores the full range.
const (
	amountProximityWeight = 40.0
	paymentTypeWeight     = 20.0
	waitTimeWeight        = 20.0
	overdueWeight         = 20.0
)

// ScorePair computes the 0..100 compatibility score for a withdrawal/deposit
// pair. It is pure and deterministic: the same items, clock and timeout
// always produce the same score.
//
// The four weighted criteria:
//   - Amount proximity (40): 40 * (1 - |w-d| / max(w, d)), floored at 0.
//     Exact amount equality yields the full 40.
//   - Payment-type match (20): full bonus when both sides use the same
//     payment type, else 0.
//   - Wait-time bonus (20): scaled by the longer-waiting side's elapsed wait
//     relative to the match timeout.
//   - Overdue bonus (20): full bonus once either side has waited past the
//     match timeout and should be prioritized for forced pairing.
func ScorePair(withdrawal, deposit *model.QueueItem, now time.Time, matchTimeout time.Duration) float64 {
	score := amountProximityScore(withdrawal, deposit)

	if withdrawal.PaymentType == deposit.PaymentType {
		score += paymentTypeWeight
	}

	elapsed := longestWait(withdrawal, deposit, now)
	if matchTimeout > 0 {
		ratio := float64(elapsed) / float64(matchTimeout)
		if ratio > 1 {
			ratio = 1
		}
		if ratio > 0 {
			score += waitTimeWeight * ratio
		}
		if elapsed > matchTimeout {
			score += overdueWeight
		}
	}

	return score
}

// amountProximityScore returns the amount-proximity contribution, never
// negative even if the amounts differ by more than the larger amount.
func amountProximityScore(withdrawal, deposit *model.QueueItem) float64 {
	larger := withdrawal.Amount
	if deposit.Amount.GreaterThan(larger) {
		larger = deposit.Amount
	}
	if !larger.IsPositive() {
		return 0
	}

	diff := withdrawal.Amount.Sub(deposit.Amount).Abs()
	ratio, _ := diff.Div(larger).Float64()
	contribution := amountProximityWeight * (1 - ratio)
	if contribution < 0 {
		return 0
	}
	return contribution
}

// longestWait returns the larger elapsed wait of the pair, using each item's
// reset-aware wait clock.
func longestWait(withdrawal, deposit *model.QueueItem, now time.Time) time.Duration {
	wWait := now.Sub(withdrawal.WaitingSince())
	dWait := now.Sub(deposit.WaitingSince())
	if wWait > dWait {
		return wWait
	}
	return dWait
}

// pairWaitingSince returns the earlier wait-clock of the two sides, i.e. how
// long the pair's longest-waiting item has been in the queue. Used for
// tie-breaking between equal scores.
func pairWaitingSince(withdrawal, deposit *model.QueueItem) time.Time {
	if withdrawal.WaitingSince().Before(deposit.WaitingSince()) {
		return withdrawal.WaitingSince()
	}
	return deposit.WaitingSince()
}
