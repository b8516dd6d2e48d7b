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

// Record types for archived entries.
const (
	RecordTypeQueueItem = "queue_item"
	RecordTypeMatch     = "match"
)

// ArchivedRecord wraps a terminal queue item or match for handoff to the
// external archival store. Exactly one of Item or Match is set, per
// RecordType.
type ArchivedRecord struct {
	RecordType string     `json:"record_type"`
	Item       *QueueItem `json:"item,omitempty"`
	Match      *Match     `json:"match,omitempty"`
	ArchivedAt time.Time  `json:"archived_at"`
}
