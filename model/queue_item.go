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
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind identifies which side of a pairing a queue item sits on.
type ItemKind string

const (
	KindWithdrawal ItemKind = "withdrawal"
	KindDeposit    ItemKind = "deposit"
)

// Status constants representing the various states a queue item can be in.
const (
	StatusPending    = "pending"    // Awaiting a counterparty.
	StatusMatched    = "matched"    // Paired with an opposite item, settlement in flight.
	StatusProcessing = "processing" // Settlement acknowledged by the executor.
	StatusCompleted  = "completed"  // Settled successfully. Terminal.
	StatusExpired    = "expired"    // Retries exhausted without a match. Terminal.
	StatusCancelled  = "cancelled"  // Cancelled by the customer pre-match. Terminal.
)

// Priority influences escalation on timeout, not initial scoring.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 2
	PriorityHigh     Priority = 3
	PriorityUrgent   Priority = 4
	PriorityCritical Priority = 5
)

// Escalate returns the next priority level, capped at PriorityCritical.
func (p Priority) Escalate() Priority {
	if p >= PriorityCritical {
		return PriorityCritical
	}
	return p + 1
}

// Valid reports whether the priority is within the allowed 1..5 range.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// QueueItem represents a single pending withdrawal or deposit request
// awaiting a counterparty in the reconciliation queue.
//
// Amount and Kind are immutable once created; corrections require a cancel
// followed by a fresh submission. Priority and Attempts are mutated by the
// timeout supervisor as wait time grows.
type QueueItem struct {
	ItemID           string                 `json:"id"`
	Kind             ItemKind               `json:"kind"`
	CustomerID       string                 `json:"customer_id"`
	Amount           decimal.Decimal        `json:"amount"`
	PaymentType      string                 `json:"payment_type"`
	PaymentDetails   map[string]interface{} `json:"payment_details,omitempty"`
	Priority         Priority               `json:"priority"`
	Status           string                 `json:"status"`
	Attempts         int                    `json:"attempts"`
	CreatedAt        time.Time              `json:"created_at"`
	LastTransitionAt time.Time              `json:"last_transition_at"`
}

// IsTerminal reports whether the item has reached a state from which no
// further transitions are permitted.
func (q *QueueItem) IsTerminal() bool {
	return IsTerminalStatus(q.Status)
}

// IsTerminalStatus reports whether the given item status is terminal.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// WaitingSince returns the reference time for wait-based scoring. Once the
// supervisor has retried an item its wait clock is reset, so the last
// transition timestamp takes over from the creation timestamp.
func (q *QueueItem) WaitingSince() time.Time {
	if q.Attempts > 0 && !q.LastTransitionAt.IsZero() {
		return q.LastTransitionAt
	}
	return q.CreatedAt
}

// Validate checks the invariants a queue item must satisfy before it is
// accepted into the store.
//
// Returns:
// - error: A descriptive error if any invariant is violated, nil otherwise.
func (q *QueueItem) Validate() error {
	if q.Kind != KindWithdrawal && q.Kind != KindDeposit {
		return errors.New("kind must be withdrawal or deposit")
	}
	if q.CustomerID == "" {
		return errors.New("customer id is required")
	}
	if !q.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if q.PaymentType == "" {
		return errors.New("payment type is required")
	}
	if !q.Priority.Valid() {
		return errors.New("priority must be between 1 (low) and 5 (critical)")
	}
	return nil
}

// Copy returns a deep copy of the item. The store hands out copies so callers
// can never mutate authoritative state directly.
func (q *QueueItem) Copy() *QueueItem {
	clone := *q
	if q.PaymentDetails != nil {
		details := make(map[string]interface{}, len(q.PaymentDetails))
		for k, v := range q.PaymentDetails {
			details[k] = v
		}
		clone.PaymentDetails = details
	}
	return &clone
}
