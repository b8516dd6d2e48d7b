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

import "time"

// QueueStats is a point-in-time summary of the queue, computed for dashboard
// display. Values are only ever "as of" GeneratedAt; no linearizability is
// guaranteed against concurrently-completing matches.
type QueueStats struct {
	TotalItems         int       `json:"total_items"`
	PendingWithdrawals int       `json:"pending_withdrawals"`
	PendingDeposits    int       `json:"pending_deposits"`
	MatchedPairs       int       `json:"matched_pairs"`
	AverageWaitTimeMs  int64     `json:"average_wait_time_ms"`
	AverageSettleMs    int64     `json:"average_settle_ms"`
	ProcessingRate     float64   `json:"processing_rate"`
	GeneratedAt        time.Time `json:"generated_at"`
}
