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
	"sort"
	"sync"
	"time"

	"github.com/pulsewallet/pulse-core/common/mclock"
	"github.com/pulsewallet/pulse-core/internal/shutdown"
	"github.com/sirupsen/logrus"
)

// defaultGrace bounds how long Run waits for in-flight iterations after
// the shutdown signal fires.
const defaultGrace = 30 * time.Second

// Runner executes a validated plan: one loop per job, gated on the shared
// schedule and the shutdown signal.
type Runner struct {
	jobs     []Job
	schedule *Schedule
	reporter *Reporter
	stop     *shutdown.Signal
	clock    mclock.Clock
	grace    time.Duration
	log      logrus.FieldLogger

	mu      sync.Mutex
	running map[string]bool
}

// NewRunner creates a runner for the given validated jobs.
func NewRunner(jobs []Job, schedule *Schedule, reporter *Reporter, stop *shutdown.Signal, clock mclock.Clock, log logrus.FieldLogger) *Runner {
	if clock == nil {
		clock = mclock.System{}
	}
	return &Runner{
		jobs:     jobs,
		schedule: schedule,
		reporter: reporter,
		stop:     stop,
		clock:    clock,
		grace:    defaultGrace,
		log:      log,
		running:  make(map[string]bool),
	}
}

// SetGrace overrides the shutdown grace window.
func (r *Runner) SetGrace(d time.Duration) { r.grace = d }

// Run spawns every job loop and blocks until the shutdown signal fires and
// the loops drain, or the grace window expires. It returns the names of
// jobs still mid-iteration at that point; the owner decides whether to
// force-terminate.
func (r *Runner) Run(ctx context.Context) []string {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			r.loop(ctx, j)
		}(job)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	if r.stop.Wait(done, r.grace) {
		return nil
	}
	return r.stillRunning()
}

// loop is one job's lifetime: evaluate, run, report, sleep.
func (r *Runner) loop(ctx context.Context, j Job) {
	log := r.log.WithField("job", j.Name)
	for {
		if r.stop.Fired() {
			return
		}
		decision, err := r.schedule.Evaluate(ctx, j.Name, j.Interval)
		if err != nil {
			log.WithError(err).Warn("Schedule evaluation failed")
			r.reporter.Error(ctx, j.Name, err)
			if !r.sleep(j.Interval) {
				return
			}
			continue
		}
		if !decision.Run {
			if !r.sleep(decision.Wait) {
				return
			}
			continue
		}

		r.setRunning(j.Name, true)
		start := r.clock.Now()
		processed, err := j.Run(ctx)
		took := r.clock.Now().Sub(start)
		r.setRunning(j.Name, false)

		if err != nil {
			log.WithError(err).Warn("Job failed")
			r.reporter.Error(ctx, j.Name, err)
		} else {
			if err := r.schedule.MarkSuccess(ctx, j.Name, j.Interval); err != nil {
				log.WithError(err).Warn("Marking job success failed")
			}
			r.reporter.Success(ctx, j.Name, j.Interval, took, processed)
			log.WithField("took", took).WithField("processed", processed).Debug("Job completed")
		}
		if !r.sleep(j.Interval) {
			return
		}
	}
}

// sleep waits d on the runner's clock, returning false when the shutdown
// signal cut it short.
func (r *Runner) sleep(d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-r.clock.After(d):
		return true
	case <-r.stop.Done():
		return false
	}
}

func (r *Runner) setRunning(name string, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v {
		r.running[name] = true
	} else {
		delete(r.running, name)
	}
}

func (r *Runner) stillRunning() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.running))
	for name := range r.running {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
