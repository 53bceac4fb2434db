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

package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/pulsewallet/pulse-core/common/mclock"
	"github.com/pulsewallet/pulse-core/internal/testlog"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/stretchr/testify/require"
)

type fakeTxGC struct {
	cutoffs map[types.ChainID]time.Time
	deleted map[types.ChainID]int64
}

func (f *fakeTxGC) DeleteOlderThan(ctx context.Context, chain types.ChainID, cutoff time.Time) (int64, error) {
	if f.cutoffs == nil {
		f.cutoffs = make(map[types.ChainID]time.Time)
	}
	f.cutoffs[chain] = cutoff
	return f.deleted[chain], nil
}

type fakeDeviceGC struct {
	batches [][]int64 // successive Inactive answers
	perSub  int64     // subscriptions deleted per device
	deleted [][]int64
}

func (f *fakeDeviceGC) Inactive(ctx context.Context, minDays, maxDays int) ([]int64, error) {
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeDeviceGC) DeleteSubscriptions(ctx context.Context, ids []int64) (int64, error) {
	f.deleted = append(f.deleted, ids)
	return f.perSub * int64(len(ids)), nil
}

type fakeStates struct {
	ensured []types.ChainID
	rows    []types.ParserState
}

func (f *fakeStates) EnsureChains(ctx context.Context, chains []types.ChainID) error {
	f.ensured = chains
	return nil
}

func (f *fakeStates) AllStates(ctx context.Context) ([]types.ParserState, error) {
	return f.rows, nil
}

func TestMaintenancePlanValidates(t *testing.T) {
	jobs, err := Maintenance(&fakeTxGC{}, &fakeDeviceGC{}, &fakeStates{}, Config{}, nil, testlog.Logger(t))
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for _, j := range jobs {
		require.Equal(t, Group, j.Group)
	}
}

func TestMaintenanceIntervalOverride(t *testing.T) {
	cfg := Config{IntervalOverrides: map[string]time.Duration{"transactions_cleanup": 10 * time.Minute}}
	jobs, err := Maintenance(&fakeTxGC{}, &fakeDeviceGC{}, &fakeStates{}, cfg, nil, testlog.Logger(t))
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, jobs[0].Interval)
	require.Equal(t, 6*time.Hour, jobs[1].Interval)

	cfg = Config{IntervalOverrides: map[string]time.Duration{"no_such_job": time.Minute}}
	_, err = Maintenance(&fakeTxGC{}, &fakeDeviceGC{}, &fakeStates{}, cfg, nil, testlog.Logger(t))
	require.Error(t, err)
}

func TestTransactionsCleanup(t *testing.T) {
	clock := mclock.NewSimulated()
	gc := &fakeTxGC{deleted: map[types.ChainID]int64{types.Ethereum: 40, types.Bitcoin: 2}}
	fn := transactionsCleanup(gc, 720*time.Hour, clock, testlog.Logger(t))

	processed, err := fn(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, processed)
	require.Len(t, gc.cutoffs, len(types.AllChains()))
	require.Equal(t, clock.Now().Add(-720*time.Hour), gc.cutoffs[types.Ethereum])
}

func TestSubscriptionsCleanupDrainsBatches(t *testing.T) {
	gc := &fakeDeviceGC{batches: [][]int64{{1, 2, 3}, {4}}, perSub: 2}
	fn := subscriptionsCleanup(gc, Config{}.withDefaults(), testlog.Logger(t))

	processed, err := fn(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8, processed)
	require.Equal(t, [][]int64{{1, 2, 3}, {4}}, gc.deleted)
}

func TestSubscriptionsCleanupStopsOnEmptyDelete(t *testing.T) {
	// Devices keep showing up as inactive but have nothing left to delete;
	// the job must not loop on them.
	gc := &fakeDeviceGC{batches: [][]int64{{1}, {1}, {1}}, perSub: 0}
	fn := subscriptionsCleanup(gc, Config{}.withDefaults(), testlog.Logger(t))

	processed, err := fn(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, processed)
	require.Len(t, gc.deleted, 1)
}

func TestParserStateTouch(t *testing.T) {
	clock := mclock.NewSimulated()
	states := &fakeStates{rows: []types.ParserState{
		{Chain: types.Ethereum, IsEnabled: true, UpdatedAt: clock.Now().Add(-2 * time.Hour)},
		{Chain: types.Bitcoin, IsEnabled: true, UpdatedAt: clock.Now().Add(-time.Minute)},
		{Chain: types.Solana, IsEnabled: false, UpdatedAt: clock.Now().Add(-48 * time.Hour)},
	}}
	fn := parserStateTouch(states, clock, testlog.Logger(t))

	processed, err := fn(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, processed)
	require.Equal(t, types.AllChains(), states.ensured)
}
