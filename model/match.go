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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Match status constants. A match moves proposed -> processing once handed to
// the settlement executor, and ends settled or failed.
const (
	MatchStatusProposed   = "proposed"
	MatchStatusProcessing = "processing"
	MatchStatusSettled    = "settled"
	MatchStatusFailed     = "failed"
)

// Match represents a proposed or confirmed pairing of one withdrawal and one
// deposit. The settled amount is the smaller of the two item amounts, and the
// score is computed once at pairing time and never revised.
type Match struct {
	MatchID      string          `json:"match_id"`
	WithdrawalID string          `json:"withdrawal_id"`
	DepositID    string          `json:"deposit_id"`
	Amount       decimal.Decimal `json:"amount"`
	MatchScore   float64         `json:"match_score"`
	Status       string          `json:"status"`
	ProposedAt   time.Time       `json:"proposed_at"`
	SettledAt    *time.Time      `json:"settled_at,omitempty"`
}

// IsActive reports whether the match still holds a claim on its two items.
func (m *Match) IsActive() bool {
	return m.Status == MatchStatusProposed || m.Status == MatchStatusProcessing
}

// References reports whether the match references the given item on either side.
func (m *Match) References(itemID string) bool {
	return m.WithdrawalID == itemID || m.DepositID == itemID
}

// Copy returns a copy of the match safe for callers to retain.
func (m *Match) Copy() *Match {
	clone := *m
	if m.SettledAt != nil {
		settledAt := *m.SettledAt
		clone.SettledAt = &settledAt
	}
	return &clone
}

// SettledAmount returns the amount a withdrawal and deposit settle at, which
// is always the smaller of the two requested amounts.
func SettledAmount(withdrawal, deposit *QueueItem) decimal.Decimal {
	if withdrawal.Amount.LessThan(deposit.Amount) {
		return withdrawal.Amount
	}
	return deposit.Amount
}
