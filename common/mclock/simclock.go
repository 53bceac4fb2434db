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

package mclock

import (
	"sync"
	"time"
)

// simEpoch is the starting instant of a Simulated clock. Any fixed non-zero
// instant works; status records carry Unix timestamps that must be positive.
var simEpoch = time.Unix(1700000000, 0).UTC()

// Simulated implements a virtual Clock for reproducible time-sensitive
// tests. The clock does not advance on its own; call Run to advance it and
// release sleepers whose deadline passed.
type Simulated struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	waiters []*simWaiter
}

type simWaiter struct {
	at time.Time
	ch chan time.Time
}

// NewSimulated returns a simulated clock positioned at a fixed epoch.
func NewSimulated() *Simulated {
	s := &Simulated{now: simEpoch}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Now returns the current virtual time.
func (s *Simulated) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Run advances the clock by d, waking every sleeper whose deadline falls
// within the advanced window.
func (s *Simulated) Run(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	var rest []*simWaiter
	for _, w := range s.waiters {
		if w.at.After(s.now) {
			rest = append(rest, w)
			continue
		}
		w.ch <- s.now
	}
	s.waiters = rest
	s.mu.Unlock()
}

// ActiveWaiters returns the number of sleepers that have not been released.
func (s *Simulated) ActiveWaiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// WaitForWaiters blocks until at least n sleepers are registered. Tests use
// it to synchronize with loops before advancing the clock.
func (s *Simulated) WaitForWaiters(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.waiters) < n {
		s.cond.Wait()
	}
}

// Sleep blocks until the clock has advanced by d.
func (s *Simulated) Sleep(d time.Duration) {
	<-s.After(d)
}

// After returns a channel receiving the virtual time once the clock has
// advanced by d.
func (s *Simulated) After(d time.Duration) <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- s.now
		return ch
	}
	s.waiters = append(s.waiters, &simWaiter{at: s.now.Add(d), ch: ch})
	s.cond.Broadcast()
	return ch
}
