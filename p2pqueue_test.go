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
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/model"
	"github.com/wagerops/p2pqueue/store"
)

// testClock is a controllable time source shared by the engine and the store
// so tests can advance time deterministically.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestEngine builds an engine on a fresh store with default configuration
// and no external collaborators. Tests attach mocks to the fields they
// exercise.
func newTestEngine() (*Engine, *testClock) {
	config.MockConfig(&config.Configuration{})

	clock := newTestClock()
	st := store.New().WithClock(clock.Now)
	engine := &Engine{
		store: st,
		clock: clock.Now,
	}
	return engine, clock
}

// getQueueItemMock builds a pending item ready for insertion.
func getQueueItemMock(kind model.ItemKind, amount float64, paymentType string, at time.Time) *model.QueueItem {
	return &model.QueueItem{
		ItemID:           model.GenerateUUIDWithSuffix("qitem"),
		Kind:             kind,
		CustomerID:       gofakeit.UUID(),
		Amount:           decimal.NewFromFloat(amount),
		PaymentType:      paymentType,
		Priority:         model.PriorityNormal,
		Status:           model.StatusPending,
		CreatedAt:        at,
		LastTransitionAt: at,
	}
}

// insertPending inserts a pending item with a fixed ID, for tests that need
// deterministic ordering.
func insertPending(st *store.Store, id string, kind model.ItemKind, amount float64, paymentType string, at time.Time) *model.QueueItem {
	item := getQueueItemMock(kind, amount, paymentType, at)
	item.ItemID = id
	if err := st.Insert(item); err != nil {
		panic(err)
	}
	return item
}
