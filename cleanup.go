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
	"github.com/wagerops/p2pqueue/internal/apierror"
	"github.com/wagerops/p2pqueue/internal/notification"
	"github.com/wagerops/p2pqueue/model"
)

// RunCleanup purges terminal records older than the configured max age.
// Records are archived first and removed from the store only after the
// archival store acknowledges the batch: on failure everything is retained
// and retried on the next cycle, so archival is at-least-once and nothing is
// ever silently lost. A failed match is only purged once both of its sides
// are terminal or already gone.
func (e *Engine) RunCleanup(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RunCleanup")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	now := e.now()
	cutoff := now.Add(-conf.Matching.MaxAge())

	var records []*model.ArchivedRecord
	var itemIDs, matchIDs []string

	for _, item := range e.store.ListByStatus(model.StatusCompleted, model.StatusExpired, model.StatusCancelled) {
		if item.LastTransitionAt.After(cutoff) {
			continue
		}
		records = append(records, &model.ArchivedRecord{RecordType: model.RecordTypeQueueItem, Item: item, ArchivedAt: now})
		itemIDs = append(itemIDs, item.ItemID)
	}

	for _, match := range e.store.ListMatches(model.MatchStatusSettled, model.MatchStatusFailed) {
		reference := match.ProposedAt
		if match.SettledAt != nil {
			reference = *match.SettledAt
		}
		if reference.After(cutoff) {
			continue
		}
		if match.Status == model.MatchStatusFailed && !e.bothSidesTerminal(match) {
			continue
		}
		records = append(records, &model.ArchivedRecord{RecordType: model.RecordTypeMatch, Match: match, ArchivedAt: now})
		matchIDs = append(matchIDs, match.MatchID)
	}

	if len(records) == 0 {
		return nil
	}
	if e.archive == nil {
		logrus.Debug("no archival store configured, retaining terminal records")
		return nil
	}

	// Durability beats storage growth: the records stay in the store until
	// the archival collaborator acknowledges them.
	if err := e.archive.Archive(ctx, records); err != nil {
		notification.NotifyError(err)
		logrus.Warnf("archival of %d record(s) failed, retaining for next cleanup cycle: %v", len(records), err)
		return apierror.NewAPIError(apierror.ErrCollaboratorUnavailable, "archival store rejected batch", err.Error())
	}

	for _, matchID := range matchIDs {
		if err := e.store.RemoveMatch(matchID); err != nil {
			logrus.Errorf("failed to remove archived match %s: %v", matchID, err)
		}
	}
	for _, itemID := range itemIDs {
		if err := e.store.Remove(itemID); err != nil {
			logrus.Errorf("failed to remove archived item %s: %v", itemID, err)
		}
	}

	logrus.Infof("cleanup archived and purged %d record(s)", len(records))
	return nil
}

// bothSidesTerminal reports whether both items of a match are terminal or
// already purged from the store.
func (e *Engine) bothSidesTerminal(match *model.Match) bool {
	for _, itemID := range []string{match.WithdrawalID, match.DepositID} {
		item, err := e.store.Get(itemID)
		if err != nil {
			continue // already purged
		}
		if !item.IsTerminal() {
			return false
		}
	}
	return true
}
