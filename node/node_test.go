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

package node

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsewallet/pulse-core/internal/shutdown"
	"github.com/pulsewallet/pulse-core/internal/testlog"
	"github.com/stretchr/testify/require"
)

type journalService struct {
	name     string
	journal  *[]string
	startErr error
	stopErr  error
}

func (s *journalService) Start(ctx context.Context) error {
	*s.journal = append(*s.journal, "start "+s.name)
	return s.startErr
}

func (s *journalService) Stop(ctx context.Context) error {
	*s.journal = append(*s.journal, "stop "+s.name)
	return s.stopErr
}

func TestNodeStartStopOrder(t *testing.T) {
	var journal []string
	n := New(shutdown.NewSignal(), testlog.Logger(t))
	n.Register("store", &journalService{name: "store", journal: &journal})
	n.Register("broker", &journalService{name: "broker", journal: &journal})
	n.Register("metrics", &journalService{name: "metrics", journal: &journal})

	ctx := context.Background()
	require.NoError(t, n.Start(ctx))
	require.NoError(t, n.Stop(ctx))
	require.Equal(t, []string{
		"start store", "start broker", "start metrics",
		"stop metrics", "stop broker", "stop store",
	}, journal)
}

func TestNodeStartFailureUnwinds(t *testing.T) {
	var journal []string
	n := New(shutdown.NewSignal(), testlog.Logger(t))
	n.Register("store", &journalService{name: "store", journal: &journal})
	n.Register("broker", &journalService{name: "broker", journal: &journal, startErr: errors.New("amqp refused")})
	n.Register("metrics", &journalService{name: "metrics", journal: &journal})

	err := n.Start(context.Background())
	require.ErrorContains(t, err, "starting broker")
	// Only the service that came up gets stopped; the failed and the
	// never-started ones do not.
	require.Equal(t, []string{"start store", "start broker", "stop store"}, journal)
}

func TestNodeStopJoinsErrors(t *testing.T) {
	var journal []string
	n := New(shutdown.NewSignal(), testlog.Logger(t))
	n.Register("a", &journalService{name: "a", journal: &journal, stopErr: errors.New("a failed")})
	n.Register("b", &journalService{name: "b", journal: &journal, stopErr: errors.New("b failed")})

	ctx := context.Background()
	require.NoError(t, n.Start(ctx))
	err := n.Stop(ctx)
	require.ErrorContains(t, err, "stopping a")
	require.ErrorContains(t, err, "stopping b")
	require.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, journal)
}

func TestNodeRunWaitsForSignal(t *testing.T) {
	var journal []string
	stop := shutdown.NewSignal()
	n := New(stop, testlog.Logger(t))
	n.Register("svc", &journalService{name: "svc", journal: &journal})

	done := make(chan struct{})
	var clean bool
	var runErr error
	go func() {
		clean, runErr = n.Run(context.Background())
		close(done)
	}()
	stop.Fire()
	<-done
	require.NoError(t, runErr)
	require.True(t, clean)
	require.Equal(t, []string{"start svc", "stop svc"}, journal)
}

func TestServiceFuncNilStop(t *testing.T) {
	started := false
	s := ServiceFunc{OnStart: func(ctx context.Context) error { started = true; return nil }}
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.True(t, started)
}
