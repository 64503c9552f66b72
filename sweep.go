/*
Copyright 2024 Blnk Finance Authors.

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

package orderflow

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/printwell/orderflow/config"
	redlock "github.com/printwell/orderflow/internal/lock"
	"github.com/printwell/orderflow/model"
)

const sweepLockKey = "orderflow:reconcile-sweep"

// ErrSweepInProgress is returned when another instance holds the sweep lock.
var ErrSweepInProgress = errors.New("reconciliation sweep already running")

// RunSweep reconciles the configured lookback window once. Only one instance runs
// at a time; the others skip. The lock is extended while the run lasts, and a
// run without Redis is bounded by the lock TTL instead. A non-empty report is posted to Slack and archived.
//
// Parameters:
// - ctx context.Context: The context for the operation.
//
// Returns:
// - *model.NAReport: The report produced by the sweep.
// - error: ErrSweepInProgress when the lock is held, or the reconciliation error.
func (o *Orderflow) RunSweep(ctx context.Context) (*model.NAReport, error) {
	ctx, span := tracer.Start(ctx, "RunSweep")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	lookback := time.Duration(cnf.Reconciliation.SweepLookbackHours) * time.Hour
	if lookback <= 0 {
		lookback = config.DefaultSweepLookbackHours * time.Hour
	}
	ttl := time.Duration(cnf.Reconciliation.SweepLockTTLSec) * time.Second
	if ttl <= 0 {
		ttl = config.DefaultSweepLockTTLSec * time.Second
	}

	if o.redis != nil {
		locker := redlock.NewLocker(o.redis, sweepLockKey, model.GenerateUUIDWithSuffix("sweep"))
		if err := locker.Lock(ctx, ttl); err != nil {
			if errors.Is(err, redlock.ErrLockHeld) {
				logrus.Info("reconciliation sweep skipped; another instance holds the lock")
				return nil, ErrSweepInProgress
			}
			return nil, err
		}
		defer func() {
			if err := locker.Unlock(context.Background()); err != nil {
				logrus.WithError(err).Warn("failed to release sweep lock")
			}
		}()

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go keepSweepLock(ctx, locker, ttl, ttl/3, cancel)
	} else {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ttl)
		defer cancel()
	}

	to := o.clock()
	from := to.Add(-lookback)
	report, err := o.FindNAPayments(ctx, model.NAParams{
		From:               &from,
		To:                 &to,
		MaxFetch:           cnf.Reconciliation.MaxFetch,
		OrdersBatchSize:    cnf.Reconciliation.OrdersBatchSize,
		CaseInsensitiveIDs: cnf.Reconciliation.CaseInsensitiveIDs,
		NAStatus:           cnf.Reconciliation.NAStatus,
	})
	if err != nil {
		span.RecordError(err)
		logrus.WithError(err).Error("reconciliation sweep failed")
		return nil, err
	}

	logger := logrus.WithField("na_count", report.Summary.NACount)
	if report.Summary.NACount == 0 {
		logger.Info("reconciliation sweep found no NA payments")
		return report, nil
	}

	if o.notify != nil {
		if err := o.notify(ctx, report); err != nil {
			logger.WithError(err).Warn("failed to post NA report")
		}
	}
	if o.archiver != nil {
		key, err := o.archiver.ArchiveNAReport(ctx, report)
		if err != nil {
			logger.WithError(err).Warn("failed to archive NA report")
		} else {
			logger = logger.WithField("archive_key", key)
		}
	}
	logger.Warn("reconciliation sweep found NA payments")
	return report, nil
}

// keepSweepLock extends the sweep lock every interval until ctx ends. A lost
// lock cancels the run so two instances never reconcile at once.
func keepSweepLock(ctx context.Context, locker *redlock.Locker, ttl, interval time.Duration, cancel context.CancelFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := locker.ExtendLock(ctx, ttl); err != nil {
				if ctx.Err() != nil {
					return
				}
				logrus.WithError(err).Error("sweep lock lost; aborting run")
				cancel()
				return
			}
		}
	}
}

// ProcessSweepTask runs a scheduled sweep. A held lock is not a failure.
func (o *Orderflow) ProcessSweepTask(ctx context.Context, _ *asynq.Task) error {
	_, err := o.RunSweep(ctx)
	if errors.Is(err, ErrSweepInProgress) {
		return nil
	}
	return err
}
