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

// Package shutdown carries the process-wide stop signal. Every long-lived
// loop gates on the signal between iterations and drains its in-flight work
// within its own grace window.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Signal is a broadcast stop flag. Once fired it stays fired; Fire is
// idempotent and safe from any goroutine. The zero value is not usable,
// construct with NewSignal.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal returns an unfired signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Fire trips the signal, releasing every current and future Done listener.
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.ch) })
}

// Done returns a channel closed when the signal fires.
func (s *Signal) Done() <-chan struct{} { return s.ch }

// Fired reports whether the signal has fired.
func (s *Signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// OnInterrupt fires the signal on SIGINT or SIGTERM. A second interrupt
// while draining exits the process immediately with code 1.
func (s *Signal) OnInterrupt() {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		s.Fire()
		<-sig
		os.Exit(1)
	}()
}

// Wait blocks until done closes or the grace window elapses after the
// signal fires. It reports whether done closed in time. Callers pass the
// completion channel of the work they are draining.
func (s *Signal) Wait(done <-chan struct{}, grace time.Duration) bool {
	select {
	case <-done:
		return true
	case <-s.ch:
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
