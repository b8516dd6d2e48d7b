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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wagerops/p2pqueue/config"
	"github.com/wagerops/p2pqueue/internal/apierror"
	redlock "github.com/wagerops/p2pqueue/internal/lock"
	"github.com/wagerops/p2pqueue/model"
)

const (
	serverLockKey = "p2p:lock:server"
	serverLockTTL = time.Minute
)

// StartSchedulers launches the periodic matching pass, the timeout sweep and
// the cleanup cycle. Each loop runs until the context is cancelled.
//
// The queue store is process-local, so every cycle runs in this process and
// nothing is split across instances. When redis is configured an instance
// lock is taken instead: a second server started against the same redis
// would silently fork the queue into two disjoint stores, so it is refused
// at startup.
func (e *Engine) StartSchedulers(ctx context.Context) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if err := e.acquireInstanceLock(ctx); err != nil {
		return err
	}

	go e.runEvery(ctx, conf.Matching.PassInterval(), "matching pass", func(ctx context.Context) error {
		_, err := e.RunMatchingPass(ctx)
		return err
	})
	go e.runEvery(ctx, conf.Matching.SweepInterval(), "timeout sweep", e.RunTimeoutSweep)
	go e.runEvery(ctx, conf.Matching.CleanupInterval(), "cleanup", e.RunCleanup)

	logrus.Infof("schedulers started: pass=%s sweep=%s cleanup=%s",
		conf.Matching.PassInterval(), conf.Matching.SweepInterval(), conf.Matching.CleanupInterval())
	return nil
}

func (e *Engine) runEvery(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("%s scheduler stopped", name)
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logrus.Warnf("%s cycle failed: %v", name, err)
			}
		}
	}
}

// acquireInstanceLock claims the server lock and keeps extending it until the
// context is cancelled. A failed claim means another server already owns the
// queue against this redis.
func (e *Engine) acquireInstanceLock(ctx context.Context) error {
	if e.redis == nil {
		return nil
	}

	locker := redlock.NewLocker(e.redis, serverLockKey, model.GenerateUUIDWithSuffix("srv"))
	if err := locker.Lock(ctx, serverLockTTL); err != nil {
		return apierror.NewAPIError(apierror.ErrConflict,
			"another queue server is already running against this redis", serverLockKey)
	}

	go func() {
		ticker := time.NewTicker(serverLockTTL / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if err := locker.Unlock(context.Background()); err != nil {
					logrus.Errorf("failed to release server lock: %v", err)
				}
				return
			case <-ticker.C:
				if err := locker.ExtendLock(ctx, serverLockTTL); err != nil {
					logrus.Errorf("failed to extend server lock: %v", err)
				}
			}
		}
	}()
	return nil
}
