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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wagerops/p2pqueue/model"
)

const testMatchTimeout = 5 * time.Minute

func TestScorePairFreshIdenticalPair(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := getQueueItemMock(model.KindWithdrawal, 100, "bank_transfer", now)
	d := getQueueItemMock(model.KindDeposit, 100, "bank_transfer", now)

	// Full amount and payment-type contributions, no wait accumulated yet.
	score := ScorePair(w, d, now, testMatchTimeout)
	assert.InDelta(t, 60.0, score, 0.0001)
}

func TestScorePairAmountProximity(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := getQueueItemMock(model.KindWithdrawal, 100, "bank_transfer", now)
	d := getQueueItemMock(model.KindDeposit, 90, "bank_transfer", now)

	// 40 * (1 - 10/100) + 20 for the shared payment type.
	score := ScorePair(w, d, now, testMatchTimeout)
	assert.InDelta(t, 56.0, score, 0.0001)
}

func TestScorePairDifferentPaymentType(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := getQueueItemMock(model.KindWithdrawal, 100, "bank_transfer", now)
	d := getQueueItemMock(model.KindDeposit, 100, "crypto", now)

	score := ScorePair(w, d, now, testMatchTimeout)
	assert.InDelta(t, 40.0, score, 0.0001)
}

func TestScorePairAmountContributionNeverNegative(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := getQueueItemMock(model.KindWithdrawal, 1, "crypto", now)
	d := getQueueItemMock(model.KindDeposit, 100000, "bank_transfer", now)

	score := ScorePair(w, d, now, testMatchTimeout)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestScorePairWaitBonusScalesWithElapsed(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := getQueueItemMock(model.KindWithdrawal, 100, "bank_transfer", created)
	d := getQueueItemMock(model.KindDeposit, 100, "bank_transfer", created)

	halfway := created.Add(testMatchTimeout / 2)
	score := ScorePair(w, d, halfway, testMatchTimeout)
	assert.InDelta(t, 70.0, score, 0.0001)
}

func TestScorePairOverduePairScoresFull(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := getQueueItemMock(model.KindWithdrawal, 100, "bank_transfer", created)
	d := getQueueItemMock(model.KindDeposit, 100, "bank_transfer", created)

	overdue := created.Add(testMatchTimeout + time.Second)
	score := ScorePair(w, d, overdue, testMatchTimeout)
	assert.InDelta(t, 100.0, score, 0.0001)
}

func TestScorePairUsesLongerWaitingSide(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := getQueueItemMock(model.KindWithdrawal, 100, "bank_transfer", created)
	d := getQueueItemMock(model.KindDeposit, 100, "bank_transfer", created.Add(testMatchTimeout))

	// The withdrawal is overdue even though the deposit is fresh.
	now := created.Add(testMatchTimeout + time.Second)
	score := ScorePair(w, d, now, testMatchTimeout)
	assert.InDelta(t, 100.0, score, 0.0001)
}

func TestScorePairWaitClockResetAfterRetry(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := getQueueItemMock(model.KindWithdrawal, 100, "bank_transfer", created)
	d := getQueueItemMock(model.KindDeposit, 100, "bank_transfer", created)

	// A retried item measures its wait from the retry, not from creation.
	w.Attempts = 1
	w.LastTransitionAt = created.Add(testMatchTimeout)
	d.Attempts = 1
	d.LastTransitionAt = created.Add(testMatchTimeout)

	now := created.Add(testMatchTimeout)
	score := ScorePair(w, d, now, testMatchTimeout)
	assert.InDelta(t, 60.0, score, 0.0001)
}

func TestScorePairDeterministic(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := getQueueItemMock(model.KindWithdrawal, 123.45, "card", created)
	d := getQueueItemMock(model.KindDeposit, 120.00, "card", created)

	now := created.Add(90 * time.Second)
	first := ScorePair(w, d, now, testMatchTimeout)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ScorePair(w, d, now, testMatchTimeout))
	}
}
