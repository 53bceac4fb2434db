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

package bus

import (
	"context"
	"time"

	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/common/mclock"
	"github.com/pulsewallet/pulse-core/metrics"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"
)

// statusTTL keeps a consumer's status document alive long enough for the
// metrics exporter to notice a consumer that stopped reporting.
const statusTTL = 7 * 24 * time.Hour

// Reporter maintains the per-queue ConsumerStatus document in the shared
// cache. Each binding is the sole writer for its queue's key, so plain
// read-modify-write is safe.
type Reporter struct {
	cache cache.Cache
	clock mclock.Clock
	log   logrus.FieldLogger
}

// NewReporter creates a reporter over the shared cache.
func NewReporter(c cache.Cache, clock mclock.Clock, log logrus.FieldLogger) *Reporter {
	if clock == nil {
		clock = mclock.System{}
	}
	return &Reporter{cache: c, clock: clock, log: log}
}

// Success records one processed message.
func (r *Reporter) Success(ctx context.Context, q Queue, result string, took time.Duration) {
	r.mutate(ctx, q, func(s *types.ConsumerStatus) {
		s.RecordSuccess(result, took, r.clock.Now())
	})
}

// Skip records a delivery that ShouldProcess declined.
func (r *Reporter) Skip(ctx context.Context, q Queue) {
	r.mutate(ctx, q, func(s *types.ConsumerStatus) { s.Skipped++ })
}

// Exhausted records a delivery dropped after its retry budget ran out.
func (r *Reporter) Exhausted(ctx context.Context, q Queue) {
	r.mutate(ctx, q, func(s *types.ConsumerStatus) {
		s.RecordError("retry budget exhausted", r.clock.Now())
	})
}

// Error records one failed message. The message is sanitized so repeated
// failures with variable fragments fold into one histogram entry.
func (r *Reporter) Error(ctx context.Context, q Queue, err error) {
	msg := metrics.SanitizeError(err.Error())
	r.mutate(ctx, q, func(s *types.ConsumerStatus) { s.RecordError(msg, r.clock.Now()) })
}

// Status returns the current status document of a queue, or a zero record
// if none was written yet.
func (r *Reporter) Status(ctx context.Context, q Queue) (types.ConsumerStatus, error) {
	var s types.ConsumerStatus
	_, err := r.cache.Get(ctx, cache.ConsumerStatusKey(string(q)), &s)
	s.Queue = string(q)
	return s, err
}

func (r *Reporter) mutate(ctx context.Context, q Queue, fn func(*types.ConsumerStatus)) {
	key := cache.ConsumerStatusKey(string(q))
	var s types.ConsumerStatus
	if _, err := r.cache.Get(ctx, key, &s); err != nil {
		r.log.WithError(err).WithField("queue", q).Warn("Reading consumer status failed")
		return
	}
	s.Queue = string(q)
	fn(&s)
	if err := r.cache.Set(ctx, key, &s, statusTTL); err != nil {
		r.log.WithError(err).WithField("queue", q).Warn("Writing consumer status failed")
	}
}
