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

	"github.com/sirupsen/logrus"

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/model"
)

const statsCacheKey = "p2p:queue:stats"

// GetStats computes the dashboard summary of the queue. Results are cached
// for a short TTL because the dashboard polls aggressively; a stale-by-seconds
// snapshot is acceptable for operational display.
//
// Parameters:
// - ctx context.Context: The context for the operation.
//
// Returns:
// - *model.QueueStats: The current queue statistics.
// - error: An error if configuration could not be loaded.
func (e *Engine) GetStats(ctx context.Context) (*model.QueueStats, error) {
	ctx, span := tracer.Start(ctx, "GetStats")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		var cached model.QueueStats
		if err := e.cache.Get(ctx, statsCacheKey, &cached); err == nil && !cached.GeneratedAt.IsZero() {
			return &cached, nil
		}
	}

	stats := e.computeStats(conf)

	if e.cache != nil {
		if err := e.cache.Set(ctx, statsCacheKey, stats, conf.Matching.StatsCacheTTL()); err != nil {
			logrus.Warnf("failed to cache queue stats: %v", err)
		}
	}
	return stats, nil
}

// InvalidateStatsCache drops the cached snapshot so the next dashboard poll
// recomputes from the store.
func (e *Engine) InvalidateStatsCache(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Delete(ctx, statsCacheKey)
}

// computeStats walks the store once and derives every aggregate from that
// single snapshot.
func (e *Engine) computeStats(conf *config.Configuration) *model.QueueStats {
	now := e.now()
	lookback := now.Add(-conf.Matching.StatsLookback())

	stats := &model.QueueStats{GeneratedAt: now}

	var pendingWaitTotalMs int64
	var pendingCount int64
	var settleTotalMs int64
	var settleCount int64

	for _, item := range e.store.AllItems() {
		stats.TotalItems++
		switch item.Status {
		case model.StatusPending:
			if item.Kind == model.KindWithdrawal {
				stats.PendingWithdrawals++
			} else {
				stats.PendingDeposits++
			}
			pendingWaitTotalMs += now.Sub(item.CreatedAt).Milliseconds()
			pendingCount++
		case model.StatusCompleted:
			if item.LastTransitionAt.After(lookback) {
				settleTotalMs += item.LastTransitionAt.Sub(item.CreatedAt).Milliseconds()
				settleCount++
			}
		}
	}

	// Matched pairs cover both in-flight matches and those settled within
	// the lookback window, so a settlement does not drop the pair from the
	// dashboard count mid-window.
	var settledInWindow float64
	for _, match := range e.store.ListMatches(model.MatchStatusProposed, model.MatchStatusProcessing, model.MatchStatusSettled) {
		settledRecently := match.SettledAt != nil && match.SettledAt.After(lookback)
		if match.IsActive() || settledRecently {
			stats.MatchedPairs++
		}
		if settledRecently {
			settledInWindow++
		}
	}

	if pendingCount > 0 {
		stats.AverageWaitTimeMs = pendingWaitTotalMs / pendingCount
	}
	if settleCount > 0 {
		stats.AverageSettleMs = settleTotalMs / settleCount
	}
	if minutes := conf.Matching.StatsLookback().Minutes(); minutes > 0 {
		stats.ProcessingRate = settledInWindow / minutes
	}
	return stats
}
