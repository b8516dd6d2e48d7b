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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/wagerops/p2pqueue/api/model"
	"github.com/wagerops/p2pqueue/internal/apierror"
)

// SubmitQueueItem handles the submission of a new withdrawal or deposit.
// It binds the incoming JSON request to a SubmitQueueItem payload, validates
// it, and enqueues the item. The item enters the queue as pending; matching
// happens asynchronously.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If there's an error in binding JSON or validating the submission.
// - 201 Created: If the item is successfully enqueued.
func (a Api) SubmitQueueItem(c *gin.Context) {
	var newItem model2.SubmitQueueItem
	if err := c.ShouldBindJSON(&newItem); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	err := newItem.ValidateSubmitQueueItem()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.service.Submit(c.Request.Context(), newItem.ToSubmitRequest())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetQueueItem retrieves the current status of a queue item by its ID.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If the ID is missing from the route.
// - 404 Not Found: If no item with the given ID exists.
// - 200 OK: If the item is found.
func (a Api) GetQueueItem(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	item, err := a.service.GetStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, item)
}

// CancelQueueItem cancels a pending queue item. Items that are already
// matched or terminal cannot be cancelled and yield a conflict.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If the ID is missing from the route.
// - 404 Not Found: If no item with the given ID exists.
// - 409 Conflict: If the item already left pending.
// - 200 OK: If the item is cancelled.
func (a Api) CancelQueueItem(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	if err := a.service.Cancel(c.Request.Context(), id); err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "queue item cancelled"})
}

// GetQueueStats returns the current queue statistics for the dashboard.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 200 OK: The current statistics snapshot.
func (a Api) GetQueueStats(c *gin.Context) {
	stats, err := a.service.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ResolveSettlement applies a settlement result reported by the settlement
// service to a match in processing.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If the payload is malformed.
// - 404 Not Found: If the match does not exist.
// - 409 Conflict: If the match already left processing.
// - 200 OK: If the result is applied.
func (a Api) ResolveSettlement(c *gin.Context) {
	matchID, passed := c.Params.Get("match_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "match_id is required. pass match_id in the route /:match_id"})
		return
	}

	var result model2.SettlementResult
	if err := c.ShouldBindJSON(&result); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := result.ValidateSettlementResult(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.service.ResolveSettlement(c.Request.Context(), matchID, *result.Settled); err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "settlement result applied"})
}

// TriggerMatchingPass runs a matching pass immediately instead of waiting for
// the next scheduled one. Operators use this after bulk submissions.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 200 OK: The matches created by the pass.
func (a Api) TriggerMatchingPass(c *gin.Context) {
	matches, err := a.service.RunMatchingPass(c.Request.Context())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// GetQueueInfo retrieves a queue item's pending trigger task from the task
// queue, for introspection.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If the ID is missing from the route.
// - 404 Not Found: If no trigger for the item is queued.
// - 200 OK: If the trigger is found.
func (a Api) GetQueueInfo(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	item, err := a.service.GetItemFromQueue(id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no queued trigger for item"})
		return
	}

	c.JSON(http.StatusOK, item)
}
