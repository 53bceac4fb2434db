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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context) (int, error) { return 0, nil }

func TestPlanValidate(t *testing.T) {
	jobs, err := NewPlan("maintenance").
		Job("transactions_cleanup", time.Hour, noop).
		Job("subscriptions_cleanup", 6*time.Hour, noop).
		Validate()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "transactions_cleanup", jobs[0].Name)
}

func TestPlanDuplicateName(t *testing.T) {
	_, err := NewPlan("maintenance").
		Job("cleanup", time.Hour, noop).
		Job("cleanup", time.Hour, noop).
		Validate()
	require.ErrorContains(t, err, "duplicate job")
}

func TestPlanGroupMismatch(t *testing.T) {
	_, err := NewPlan("maintenance").
		JobInGroup("pricing", "update_rates", time.Minute, noop).
		Validate()
	require.ErrorContains(t, err, `group "pricing"`)
}

func TestPlanOverride(t *testing.T) {
	jobs, err := NewPlan("maintenance").
		Job("cleanup", time.Hour, noop).
		Overrides(map[string]time.Duration{"cleanup": 10 * time.Minute}).
		Validate()
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, jobs[0].Interval)
}

func TestPlanOverrideUnknownJob(t *testing.T) {
	_, err := NewPlan("maintenance").
		Job("cleanup", time.Hour, noop).
		Overrides(map[string]time.Duration{"celanup": 10 * time.Minute}).
		Validate()
	require.ErrorContains(t, err, "unknown job")
}

func TestPlanNonPositiveInterval(t *testing.T) {
	_, err := NewPlan("maintenance").Job("cleanup", 0, noop).Validate()
	require.ErrorContains(t, err, "non-positive interval")
}

func TestPlanEmpty(t *testing.T) {
	_, err := NewPlan("maintenance").Validate()
	require.ErrorContains(t, err, "no jobs")
}
