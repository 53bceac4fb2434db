// Copyright 2023 The pulse-core Authors
// This file is part of the pulse-core library.
//
// The pulse-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The pulse-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the pulse-core library. If not, see <http://www.gnu.org/licenses/>.

// Package jobs registers the maintenance job set: repository garbage
// collection and parser state upkeep, run through the scheduler.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsewallet/pulse-core/common/mclock"
	"github.com/pulsewallet/pulse-core/scheduler"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"
)

// Group tags every job in this package for the maintenance worker.
const Group = "maintenance"

// TransactionGC is the slice of the repository the transaction cleanup
// deletes from.
type TransactionGC interface {
	DeleteOlderThan(ctx context.Context, chain types.ChainID, cutoff time.Time) (int64, error)
}

// DeviceGC is the slice of the repository the subscription cleanup works
// on.
type DeviceGC interface {
	Inactive(ctx context.Context, minDays, maxDays int) ([]int64, error)
	DeleteSubscriptions(ctx context.Context, deviceIDs []int64) (int64, error)
}

// StateKeeper re-ensures the parser state rows.
type StateKeeper interface {
	EnsureChains(ctx context.Context, chains []types.ChainID) error
	AllStates(ctx context.Context) ([]types.ParserState, error)
}

// Config tunes the maintenance jobs. Zero values take the defaults
// below.
type Config struct {
	TxRetention       time.Duration // delete transactions older than this, default 720h
	InactiveMinDays   int           // device inactivity lower bound, default 30
	InactiveMaxDays   int           // device inactivity upper bound, default 180
	IntervalOverrides map[string]time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.TxRetention == 0 {
		cfg.TxRetention = 720 * time.Hour
	}
	if cfg.InactiveMinDays == 0 {
		cfg.InactiveMinDays = 30
	}
	if cfg.InactiveMaxDays == 0 {
		cfg.InactiveMaxDays = 180
	}
	return cfg
}

// Maintenance builds the validated maintenance plan.
func Maintenance(txs TransactionGC, devices DeviceGC, states StateKeeper, cfg Config, clock mclock.Clock, log logrus.FieldLogger) ([]scheduler.Job, error) {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = mclock.System{}
	}
	return scheduler.NewPlan(Group).
		Job("transactions_cleanup", time.Hour, transactionsCleanup(txs, cfg.TxRetention, clock, log)).
		Job("subscriptions_cleanup", 6*time.Hour, subscriptionsCleanup(devices, cfg, log)).
		Job("parser_state_touch", 15*time.Minute, parserStateTouch(states, clock, log)).
		Overrides(cfg.IntervalOverrides).
		Validate()
}

// transactionsCleanup deletes transactions past the retention window,
// chain by chain so one chain's bloated table cannot starve the rest.
func transactionsCleanup(txs TransactionGC, retention time.Duration, clock mclock.Clock, log logrus.FieldLogger) scheduler.JobFunc {
	return func(ctx context.Context) (int, error) {
		cutoff := clock.Now().Add(-retention)
		total := int64(0)
		for _, c := range types.AllChains() {
			n, err := txs.DeleteOlderThan(ctx, c, cutoff)
			if err != nil {
				return int(total), fmt.Errorf("cleanup %s: %w", c, err)
			}
			if n > 0 {
				log.WithField("chain", c).WithField("deleted", n).Debug("Old transactions deleted")
			}
			total += n
		}
		return int(total), nil
	}
}

// subscriptionsCleanup drops the subscriptions of devices that have not
// authenticated within the inactivity window. The device rows stay; a
// device that comes back re-subscribes through the API.
func subscriptionsCleanup(devices DeviceGC, cfg Config, log logrus.FieldLogger) scheduler.JobFunc {
	return func(ctx context.Context) (int, error) {
		total := 0
		for {
			ids, err := devices.Inactive(ctx, cfg.InactiveMinDays, cfg.InactiveMaxDays)
			if err != nil {
				return total, fmt.Errorf("inactive devices: %w", err)
			}
			if len(ids) == 0 {
				return total, nil
			}
			n, err := devices.DeleteSubscriptions(ctx, ids)
			if err != nil {
				return total, fmt.Errorf("delete subscriptions: %w", err)
			}
			total += int(n)
			if n == 0 {
				// The batch had devices but no subscriptions left; the next
				// Inactive call would return the same batch forever.
				return total, nil
			}
		}
	}
}

// parserStateTouch re-ensures a state row exists for every supported
// chain and logs pipelines whose cursor has not moved for a while.
func parserStateTouch(states StateKeeper, clock mclock.Clock, log logrus.FieldLogger) scheduler.JobFunc {
	return func(ctx context.Context) (int, error) {
		if err := states.EnsureChains(ctx, types.AllChains()); err != nil {
			return 0, fmt.Errorf("ensure chains: %w", err)
		}
		rows, err := states.AllStates(ctx)
		if err != nil {
			return 0, fmt.Errorf("read states: %w", err)
		}
		stale := 0
		now := clock.Now()
		for _, s := range rows {
			if !s.IsEnabled {
				continue
			}
			if age := now.Sub(s.UpdatedAt); age > staleAfter {
				stale++
				log.WithField("chain", s.Chain).WithField("age", age.Round(time.Second)).Warn("Parser cursor is stale")
			}
		}
		if stale > 0 {
			log.WithField("stale", stale).Warn("Stale parser pipelines detected")
		}
		return len(rows), nil
	}
}

// staleAfter is how long an enabled pipeline may go without a cursor
// update before the touch job flags it.
const staleAfter = time.Hour
