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
	"fmt"
	"time"
)

// JobFunc is the work of one scheduled job. It returns how many items it
// processed; the count feeds the job's status document.
type JobFunc func(ctx context.Context) (processed int, err error)

// Job is one validated plan entry.
type Job struct {
	Name     string
	Group    string
	Interval time.Duration
	Run      JobFunc
}

// Plan enumerates a group's jobs before anything spawns. Construction is
// fluent: add every job, apply configured interval overrides, then
// Validate. Nothing runs from an invalid plan.
type Plan struct {
	group     string
	jobs      []Job
	overrides map[string]time.Duration
	errs      []error
}

// NewPlan starts an empty plan for one worker group.
func NewPlan(group string) *Plan {
	return &Plan{group: group, overrides: make(map[string]time.Duration)}
}

// Job appends a job to the plan.
func (p *Plan) Job(name string, interval time.Duration, fn JobFunc) *Plan {
	p.jobs = append(p.jobs, Job{Name: name, Group: p.group, Interval: interval, Run: fn})
	return p
}

// JobInGroup appends a job tagged for a different worker group. Validate
// rejects it; the method exists so misrouted registrations fail loudly
// instead of silently running in the wrong worker.
func (p *Plan) JobInGroup(group, name string, interval time.Duration, fn JobFunc) *Plan {
	p.jobs = append(p.jobs, Job{Name: name, Group: group, Interval: interval, Run: fn})
	return p
}

// Overrides applies configured per-job intervals. Keys that name no
// registered job fail validation.
func (p *Plan) Overrides(intervals map[string]time.Duration) *Plan {
	for name, d := range intervals {
		p.overrides[name] = d
	}
	return p
}

// Validate checks the whole plan and returns the runnable job set. It
// fails on duplicate names, non-positive intervals, group mismatches and
// override keys without a job.
func (p *Plan) Validate() ([]Job, error) {
	seen := make(map[string]bool, len(p.jobs))
	out := make([]Job, 0, len(p.jobs))
	for _, j := range p.jobs {
		if j.Name == "" {
			return nil, fmt.Errorf("scheduler: job with empty name in group %q", p.group)
		}
		if seen[j.Name] {
			return nil, fmt.Errorf("scheduler: duplicate job %q", j.Name)
		}
		seen[j.Name] = true
		if j.Group != p.group {
			return nil, fmt.Errorf("scheduler: job %q tagged for group %q, plan is %q", j.Name, j.Group, p.group)
		}
		if d, ok := p.overrides[j.Name]; ok {
			j.Interval = d
		}
		if j.Interval <= 0 {
			return nil, fmt.Errorf("scheduler: job %q has non-positive interval %s", j.Name, j.Interval)
		}
		if j.Run == nil {
			return nil, fmt.Errorf("scheduler: job %q has no work function", j.Name)
		}
		out = append(out, j)
	}
	for name := range p.overrides {
		if !seen[name] {
			return nil, fmt.Errorf("scheduler: interval override for unknown job %q", name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("scheduler: group %q has no jobs", p.group)
	}
	return out, nil
}

// Names returns the registered job names in order.
func (p *Plan) Names() []string {
	out := make([]string, len(p.jobs))
	for i, j := range p.jobs {
		out[i] = j.Name
	}
	return out
}
