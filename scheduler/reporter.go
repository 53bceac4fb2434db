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

package scheduler

import (
	"context"
	"time"

	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/common/mclock"
	"github.com/pulsewallet/pulse-core/metrics"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"
)

// statusTTL outlives any sensible job interval so a stalled job is visible
// as a stale record rather than a missing one.
const statusTTL = 30 * 24 * time.Hour

// Reporter maintains JobStatus documents in the shared cache, keyed by
// "<service>:<job>". Stamps are last-writer-wins across replicas; the
// documents feed the metrics exporter, nothing authoritative.
type Reporter struct {
	cache   cache.Cache
	clock   mclock.Clock
	service string
	log     logrus.FieldLogger
}

// NewReporter creates a reporter for one service's jobs.
func NewReporter(c cache.Cache, service string, clock mclock.Clock, log logrus.FieldLogger) *Reporter {
	if clock == nil {
		clock = mclock.System{}
	}
	return &Reporter{cache: c, clock: clock, service: service, log: log}
}

func (r *Reporter) key(job string) string {
	return cache.JobStatusKey(r.service + ":" + job)
}

// Success records one completed run.
func (r *Reporter) Success(ctx context.Context, job string, interval, took time.Duration, processed int) {
	r.mutate(ctx, job, func(s *types.JobStatus) {
		now := r.clock.Now()
		s.IntervalSec = int64(interval / time.Second)
		s.LastRunMs = took.Milliseconds()
		s.LastSuccessUnix = now.Unix()
		s.TotalProcessed += int64(processed)
	})
}

// Error records one failed run. The message is sanitized and truncated so
// repeated failures converge onto one histogram entry.
func (r *Reporter) Error(ctx context.Context, job string, err error) {
	msg := metrics.SanitizeError(err.Error())
	r.mutate(ctx, job, func(s *types.JobStatus) { s.RecordError(msg, r.clock.Now()) })
}

// Status returns the current status document of a job.
func (r *Reporter) Status(ctx context.Context, job string) (types.JobStatus, bool, error) {
	var s types.JobStatus
	ok, err := r.cache.Get(ctx, r.key(job), &s)
	return s, ok, err
}

func (r *Reporter) mutate(ctx context.Context, job string, fn func(*types.JobStatus)) {
	key := r.key(job)
	var s types.JobStatus
	if _, err := r.cache.Get(ctx, key, &s); err != nil {
		r.log.WithError(err).WithField("job", job).Warn("Reading job status failed")
		return
	}
	fn(&s)
	if err := r.cache.Set(ctx, key, &s, statusTTL); err != nil {
		r.log.WithError(err).WithField("job", job).Warn("Writing job status failed")
	}
}
