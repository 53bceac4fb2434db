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

// Package scheduler runs named periodic jobs. A cache-backed schedule
// coordinates replicas so each interval is worked roughly once; every job
// is idempotent, so the coordination can stay soft.
package scheduler

import (
	"context"
	"time"

	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/common/mclock"
)

// Decision is the schedule's answer for one job: run now, or come back
// after Wait.
type Decision struct {
	Run  bool
	Wait time.Duration
}

// Schedule decides whether a named job should run now. The last-run stamp
// lives in the shared cache with a TTL equal to the job's interval; the
// replica whose SetIfAbsent recreates the expired key wins the slot,
// everyone else waits out the stamp's remainder. A cache race can let two
// replicas through, which is acceptable by design.
type Schedule struct {
	cache cache.Cache
	clock mclock.Clock
}

// NewSchedule creates a schedule over the shared cache.
func NewSchedule(c cache.Cache, clock mclock.Clock) *Schedule {
	if clock == nil {
		clock = mclock.System{}
	}
	return &Schedule{cache: c, clock: clock}
}

// Evaluate claims the job's slot if the interval has elapsed.
func (s *Schedule) Evaluate(ctx context.Context, name string, interval time.Duration) (Decision, error) {
	now := s.clock.Now()
	won, err := s.cache.SetIfAbsent(ctx, cache.ScheduleKey(name), now.Unix(), interval)
	if err != nil {
		return Decision{}, err
	}
	if won {
		return Decision{Run: true}, nil
	}
	var stamp int64
	ok, err := s.cache.Get(ctx, cache.ScheduleKey(name), &stamp)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		// The stamp expired between our two calls; claim it on the next
		// evaluation rather than racing again now.
		return Decision{Wait: time.Second}, nil
	}
	elapsed := now.Sub(time.Unix(stamp, 0))
	if wait := interval - elapsed; wait > 0 {
		return Decision{Wait: wait}, nil
	}
	return Decision{Wait: time.Second}, nil
}

// MarkSuccess refreshes the job's stamp after a successful run, restarting
// the interval from completion time.
func (s *Schedule) MarkSuccess(ctx context.Context, name string, interval time.Duration) error {
	return s.cache.Set(ctx, cache.ScheduleKey(name), s.clock.Now().Unix(), interval)
}
