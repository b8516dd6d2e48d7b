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

// Package store holds the authoritative in-memory collection of queue items
// and matches. Every status mutation goes through a compare-and-swap on the
// current status; a stale expectation fails with CONFLICT and the caller must
// re-read and retry or abandon. This is the engine's sole concurrency-safety
// primitive.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wagerops/p2pqueue/internal/apierror"
	"github.com/wagerops/p2pqueue/model"
)

type kindStatus struct {
	kind   model.ItemKind
	status string
}

// Store owns all QueueItem and Match records. No other component retains
// authoritative state; every accessor hands out deep copies.
type Store struct {
	mu           sync.RWMutex
	items        map[string]*model.QueueItem
	matches      map[string]*model.Match
	byKindStatus map[kindStatus]map[string]struct{}
	activeByItem map[string]string // item ID -> active match ID
	now          func() time.Time
}

// New constructs an empty store. One store is created per process at startup;
// tests construct as many independent instances as they need.
func New() *Store {
	return &Store{
		items:        make(map[string]*model.QueueItem),
		matches:      make(map[string]*model.Match),
		byKindStatus: make(map[kindStatus]map[string]struct{}),
		activeByItem: make(map[string]string),
		now:          time.Now,
	}
}

// WithClock overrides the store's time source. Intended for tests that need
// to advance time deterministically.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Insert adds a new item to the store. Fails with CONFLICT if an item with
// the same ID already exists.
func (s *Store) Insert(item *model.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ItemID]; exists {
		return apierror.NewAPIError(apierror.ErrConflict, "queue item already exists", item.ItemID)
	}

	clone := item.Copy()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = s.now()
	}
	if clone.LastTransitionAt.IsZero() {
		clone.LastTransitionAt = clone.CreatedAt
	}
	s.items[clone.ItemID] = clone
	s.indexAdd(clone)
	return nil
}

// Get returns a copy of the item, or NOT_FOUND.
func (s *Store) Get(id string) (*model.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "queue item not found", id)
	}
	return item.Copy(), nil
}

// Transition atomically moves an item from one status to another.
//
// Failure semantics:
// - NOT_FOUND: the item does not exist.
// - INVALID_TRANSITION: the item is already in a terminal state.
// - CONFLICT: the current status does not equal from; the caller must re-read
//   and retry or abandon. This is how concurrent matching passes, sweeps, and
//   cancellations stay safe without long-lived locks.
func (s *Store) Transition(id, from, to string) (*model.QueueItem, error) {
	return s.TransitionMutate(id, from, to, nil)
}

// TransitionMutate moves an item between statuses and applies fn to it inside
// the same critical section, so the status change and its bookkeeping form
// one atomic update that no concurrent pass can interleave. fn may be nil and
// must not change the item's ID, kind or status.
func (s *Store) TransitionMutate(id, from, to string, fn func(item *model.QueueItem)) (*model.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "queue item not found", id)
	}
	if item.IsTerminal() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("queue item is terminal (%s)", item.Status), id)
	}
	if item.Status != from {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("queue item is %s, expected %s", item.Status, from), id)
	}

	s.indexRemove(item)
	item.Status = to
	item.LastTransitionAt = s.now()
	if fn != nil {
		fn(item)
	}
	s.indexAdd(item)
	return item.Copy(), nil
}

// Mutate applies fn to an item under the store lock, guarded by the same
// compare-and-swap contract as Transition: the item must currently be in
// expectStatus. The supervisor uses this for its retry bookkeeping (attempts,
// priority escalation, wait-clock reset) so the whole update is atomic.
//
// fn must not change the item's ID, kind or status.
func (s *Store) Mutate(id, expectStatus string, fn func(item *model.QueueItem)) (*model.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "queue item not found", id)
	}
	if item.IsTerminal() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("queue item is terminal (%s)", item.Status), id)
	}
	if item.Status != expectStatus {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("queue item is %s, expected %s", item.Status, expectStatus), id)
	}

	fn(item)
	return item.Copy(), nil
}

// ListPending returns copies of all pending items of the given kind, sorted
// ascending by ID so matching passes are deterministic for a given snapshot.
func (s *Store) ListPending(kind model.ItemKind) []*model.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byKindStatus[kindStatus{kind: kind, status: model.StatusPending}]
	pending := make([]*model.QueueItem, 0, len(ids))
	for id := range ids {
		pending = append(pending, s.items[id].Copy())
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ItemID < pending[j].ItemID })
	return pending
}

// ListByStatus returns copies of all items in any of the given statuses.
func (s *Store) ListByStatus(statuses ...string) []*model.QueueItem {
	wanted := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.QueueItem
	for _, item := range s.items {
		if _, ok := wanted[item.Status]; ok {
			out = append(out, item.Copy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// AllItems returns a copy of every item in the store.
func (s *Store) AllItems() []*model.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.QueueItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// Remove deletes a terminal item from the store. Only the cleanup scheduler
// calls this, after the archival sink has acknowledged the record.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return apierror.NewAPIError(apierror.ErrNotFound, "queue item not found", id)
	}
	if !item.IsTerminal() {
		return apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("cannot remove non-terminal queue item (%s)", item.Status), id)
	}

	s.indexRemove(item)
	delete(s.items, id)
	return nil
}

// InsertMatch records a new match. Fails with CONFLICT if either referenced
// item already holds an active match. An item has at most one active
// (proposed/processing) match at a time.
func (s *Store) InsertMatch(match *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.matches[match.MatchID]; exists {
		return apierror.NewAPIError(apierror.ErrConflict, "match already exists", match.MatchID)
	}
	if holder, ok := s.activeByItem[match.WithdrawalID]; ok {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("withdrawal already held by match %s", holder), match.WithdrawalID)
	}
	if holder, ok := s.activeByItem[match.DepositID]; ok {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("deposit already held by match %s", holder), match.DepositID)
	}

	clone := match.Copy()
	if clone.ProposedAt.IsZero() {
		clone.ProposedAt = s.now()
	}
	s.matches[clone.MatchID] = clone
	if clone.IsActive() {
		s.activeByItem[clone.WithdrawalID] = clone.MatchID
		s.activeByItem[clone.DepositID] = clone.MatchID
	}
	return nil
}

// GetMatch returns a copy of the match, or NOT_FOUND.
func (s *Store) GetMatch(id string) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, exists := s.matches[id]
	if !exists {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "match not found", id)
	}
	return match.Copy(), nil
}

// TransitionMatch atomically moves a match from one status to another under
// the same compare-and-swap contract as Transition. Moving to settled stamps
// SettledAt; leaving an active status releases the claim on both items.
func (s *Store) TransitionMatch(id, from, to string) (*model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, exists := s.matches[id]
	if !exists {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "match not found", id)
	}
	if match.Status == model.MatchStatusSettled || match.Status == model.MatchStatusFailed {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("match is terminal (%s)", match.Status), id)
	}
	if match.Status != from {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("match is %s, expected %s", match.Status, from), id)
	}

	wasActive := match.IsActive()
	match.Status = to
	if to == model.MatchStatusSettled {
		settledAt := s.now()
		match.SettledAt = &settledAt
	}
	if wasActive && !match.IsActive() {
		delete(s.activeByItem, match.WithdrawalID)
		delete(s.activeByItem, match.DepositID)
	}
	return match.Copy(), nil
}

// ListMatches returns copies of all matches in any of the given statuses, or
// every match when no status is given.
func (s *Store) ListMatches(statuses ...string) []*model.Match {
	wanted := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Match
	for _, match := range s.matches {
		if len(wanted) > 0 {
			if _, ok := wanted[match.Status]; !ok {
				continue
			}
		}
		out = append(out, match.Copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out
}

// ActiveMatchForItem returns the active match holding the given item, if any.
func (s *Store) ActiveMatchForItem(itemID string) (*model.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matchID, ok := s.activeByItem[itemID]
	if !ok {
		return nil, false
	}
	return s.matches[matchID].Copy(), true
}

// RemoveMatch deletes a settled or failed match from the store.
func (s *Store) RemoveMatch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, exists := s.matches[id]
	if !exists {
		return apierror.NewAPIError(apierror.ErrNotFound, "match not found", id)
	}
	if match.IsActive() {
		return apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("cannot remove active match (%s)", match.Status), id)
	}

	delete(s.matches, id)
	return nil
}

// indexAdd and indexRemove maintain the kind+status index. Callers must hold
// the write lock.
func (s *Store) indexAdd(item *model.QueueItem) {
	key := kindStatus{kind: item.Kind, status: item.Status}
	ids, ok := s.byKindStatus[key]
	if !ok {
		ids = make(map[string]struct{})
		s.byKindStatus[key] = ids
	}
	ids[item.ItemID] = struct{}{}
}

func (s *Store) indexRemove(item *model.QueueItem) {
	key := kindStatus{kind: item.Kind, status: item.Status}
	if ids, ok := s.byKindStatus[key]; ok {
		delete(ids, item.ItemID)
		if len(ids) == 0 {
			delete(s.byKindStatus, key)
		}
	}
}
