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

	"github.com/stretchr/testify/mock"

	"github.com/wagerops/p2pqueue/model"
)

// MockSettlementExecutor is a mock implementation of the SettlementExecutor interface
type MockSettlementExecutor struct {
	mock.Mock
}

func (m *MockSettlementExecutor) ExecuteSettlement(ctx context.Context, match *model.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

// MockAuditSink is a mock implementation of the AuditSink interface
type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) RecordEvent(ctx context.Context, event *AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockArchivalStore is a mock implementation of the ArchivalStore interface
type MockArchivalStore struct {
	mock.Mock
}

func (m *MockArchivalStore) Archive(ctx context.Context, records []*model.ArchivedRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

// MockNotificationDispatcher is a mock implementation of the NotificationDispatcher interface
type MockNotificationDispatcher struct {
	mock.Mock
}

func (m *MockNotificationDispatcher) Notify(ctx context.Context, customerID, eventKind string, detail map[string]interface{}) error {
	args := m.Called(ctx, customerID, eventKind, detail)
	return args.Error(0)
}
