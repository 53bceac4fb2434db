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
	"math/rand"
	"time"
)

// RetryPolicy is delivered to the broker topology at declaration time. The
// consumer framework never sleeps between attempts: a nacked delivery
// dead-letters into the queue's retry companion, waits out the policy's
// delay there and dead-letters back.
type RetryPolicy struct {
	Delay       time.Duration // base hold time in the retry queue
	MaxDelay    time.Duration // ceiling after jitter
	MaxAttempts int           // deliveries beyond this are acked away
	JitterBps   int           // random spread in basis points of Delay
}

// DefaultRetryPolicy matches the broker defaults: three attempts thirty
// seconds apart with a tenth of jitter.
var DefaultRetryPolicy = RetryPolicy{
	Delay:       30 * time.Second,
	MaxDelay:    5 * time.Minute,
	MaxAttempts: 3,
	JitterBps:   1000,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Delay == 0 {
		p.Delay = DefaultRetryPolicy.Delay
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	return p
}

// holdTime returns the retry-queue TTL with jitter applied, capped at
// MaxDelay. Jitter keeps replicas from re-attempting a burst in lockstep.
func (p RetryPolicy) holdTime() time.Duration {
	d := p.Delay
	if p.JitterBps > 0 {
		d += time.Duration(rand.Int63n(int64(p.Delay) * int64(p.JitterBps) / 10000))
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
