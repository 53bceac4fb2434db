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

// Package mclock abstracts the clock so schedulers and pipelines can run
// against simulated time in tests. Timestamps are wall clock values: job
// status stamps and outdated-transaction checks compare against persisted
// times, so a monotonic-only source would not do.
package mclock

import "time"

// Clock is the time source of every loop in this module.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
}

// System implements Clock using the real clock.
type System struct{}

// Now returns the current wall clock time.
func (System) Now() time.Time { return time.Now() }

// Sleep blocks for the given duration.
func (System) Sleep(d time.Duration) { time.Sleep(d) }

// After returns a channel which receives the current time after d has
// elapsed.
func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }
