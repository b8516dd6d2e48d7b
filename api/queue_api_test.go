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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wagerops/p2pqueue"
	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/internal/apierror"
	"github.com/wagerops/p2pqueue/model"
)

// MockQueueService mocks the engine surface the HTTP layer depends on.
type MockQueueService struct {
	mock.Mock
}

func (m *MockQueueService) Submit(ctx context.Context, req *p2pqueue.SubmitRequest) (*model.QueueItem, error) {
	args := m.Called(ctx, req)
	item, _ := args.Get(0).(*model.QueueItem)
	return item, args.Error(1)
}

func (m *MockQueueService) Cancel(ctx context.Context, itemID string) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *MockQueueService) GetStatus(ctx context.Context, itemID string) (*model.QueueItem, error) {
	args := m.Called(ctx, itemID)
	item, _ := args.Get(0).(*model.QueueItem)
	return item, args.Error(1)
}

func (m *MockQueueService) GetStats(ctx context.Context) (*model.QueueStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*model.QueueStats)
	return stats, args.Error(1)
}

func (m *MockQueueService) ResolveSettlement(ctx context.Context, matchID string, settled bool) error {
	args := m.Called(ctx, matchID, settled)
	return args.Error(0)
}

func (m *MockQueueService) GetItemFromQueue(itemID string) (*model.QueueItem, error) {
	args := m.Called(itemID)
	item, _ := args.Get(0).(*model.QueueItem)
	return item, args.Error(1)
}

func (m *MockQueueService) RunMatchingPass(ctx context.Context) ([]*model.Match, error) {
	args := m.Called(ctx)
	matches, _ := args.Get(0).([]*model.Match)
	return matches, args.Error(1)
}

func setupRouter(t *testing.T) (*MockQueueService, *gin.Engine) {
	t.Helper()
	config.MockConfig(&config.Configuration{})

	service := &MockQueueService{}
	a := NewAPI(service)
	require.NotNil(t, a)
	return service, a.Router()
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestSubmitQueueItemCreated(t *testing.T) {
	service, router := setupRouter(t)
	service.On("Submit", mock.Anything, mock.Anything).Return(&model.QueueItem{
		ItemID: "qitem_1",
		Status: model.StatusPending,
	}, nil)

	resp := performRequest(router, "POST", "/queue-items", map[string]interface{}{
		"kind":         "withdrawal",
		"customer_id":  "cust_1",
		"amount":       100.50,
		"payment_type": "bank_transfer",
	})

	assert.Equal(t, http.StatusCreated, resp.Code)

	var created model.QueueItem
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, "qitem_1", created.ItemID)
}

func TestSubmitQueueItemValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"missing kind", map[string]interface{}{
			"customer_id": "cust_1", "amount": 100.0, "payment_type": "bank_transfer",
		}},
		{"unknown kind", map[string]interface{}{
			"kind": "refund", "customer_id": "cust_1", "amount": 100.0, "payment_type": "bank_transfer",
		}},
		{"zero amount", map[string]interface{}{
			"kind": "deposit", "customer_id": "cust_1", "amount": 0.0, "payment_type": "bank_transfer",
		}},
		{"priority out of range", map[string]interface{}{
			"kind": "deposit", "customer_id": "cust_1", "amount": 100.0, "payment_type": "bank_transfer", "priority": 9,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, router := setupRouter(t)
			resp := performRequest(router, "POST", "/queue-items", tt.payload)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			service.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}
}

func TestGetQueueItemFound(t *testing.T) {
	service, router := setupRouter(t)
	service.On("GetStatus", mock.Anything, "qitem_1").Return(&model.QueueItem{
		ItemID: "qitem_1",
		Status: model.StatusMatched,
	}, nil)

	resp := performRequest(router, "GET", "/queue-items/qitem_1", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var item model.QueueItem
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &item))
	assert.Equal(t, model.StatusMatched, item.Status)
}

func TestGetQueueItemNotFound(t *testing.T) {
	service, router := setupRouter(t)
	service.On("GetStatus", mock.Anything, "qitem_missing").Return(nil,
		apierror.NewAPIError(apierror.ErrNotFound, "queue item not found", "qitem_missing"))

	resp := performRequest(router, "GET", "/queue-items/qitem_missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCancelQueueItem(t *testing.T) {
	service, router := setupRouter(t)
	service.On("Cancel", mock.Anything, "qitem_1").Return(nil)

	resp := performRequest(router, "DELETE", "/queue-items/qitem_1", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "queue item cancelled")
}

func TestCancelQueueItemConflict(t *testing.T) {
	service, router := setupRouter(t)
	service.On("Cancel", mock.Anything, "qitem_1").Return(
		apierror.NewAPIError(apierror.ErrConflict, "queue item can only be cancelled while pending", "qitem_1"))

	resp := performRequest(router, "DELETE", "/queue-items/qitem_1", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestGetQueueStats(t *testing.T) {
	service, router := setupRouter(t)
	service.On("GetStats", mock.Anything).Return(&model.QueueStats{
		TotalItems:         12,
		PendingWithdrawals: 4,
	}, nil)

	resp := performRequest(router, "GET", "/stats", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	var stats model.QueueStats
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, 12, stats.TotalItems)
	assert.Equal(t, 4, stats.PendingWithdrawals)
}

func TestResolveSettlementApplied(t *testing.T) {
	service, router := setupRouter(t)
	service.On("ResolveSettlement", mock.Anything, "match_1", true).Return(nil)

	resp := performRequest(router, "POST", "/matches/match_1/settlement", map[string]interface{}{
		"settled": true,
	})
	assert.Equal(t, http.StatusOK, resp.Code)
	service.AssertExpectations(t)
}

func TestResolveSettlementMissingVerdict(t *testing.T) {
	service, router := setupRouter(t)

	resp := performRequest(router, "POST", "/matches/match_1/settlement", map[string]interface{}{
		"reason": "no verdict given",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	service.AssertNotCalled(t, "ResolveSettlement", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveSettlementUnknownMatch(t *testing.T) {
	service, router := setupRouter(t)
	service.On("ResolveSettlement", mock.Anything, "match_missing", false).Return(
		apierror.NewAPIError(apierror.ErrNotFound, "match not found", "match_missing"))

	resp := performRequest(router, "POST", "/matches/match_missing/settlement", map[string]interface{}{
		"settled": false,
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTriggerMatchingPass(t *testing.T) {
	service, router := setupRouter(t)
	service.On("RunMatchingPass", mock.Anything).Return([]*model.Match{
		{MatchID: "match_1", WithdrawalID: "qitem_w", DepositID: "qitem_d"},
	}, nil)

	resp := performRequest(router, "POST", "/matching-pass", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "match_1")
}

func TestGetQueueInfoNoTrigger(t *testing.T) {
	service, router := setupRouter(t)
	service.On("GetItemFromQueue", "qitem_1").Return(nil, nil)

	resp := performRequest(router, "GET", "/queue-info/qitem_1", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHealthEndpoint(t *testing.T) {
	_, router := setupRouter(t)

	resp := performRequest(router, "GET", "/", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}
