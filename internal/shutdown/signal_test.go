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

package shutdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignalFireIdempotent(t *testing.T) {
	s := NewSignal()
	require.False(t, s.Fired())
	s.Fire()
	s.Fire()
	require.True(t, s.Fired())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Fire")
	}
}

func TestWaitCompletesBeforeSignal(t *testing.T) {
	s := NewSignal()
	done := make(chan struct{})
	close(done)
	require.True(t, s.Wait(done, time.Millisecond))
}

func TestWaitGraceExpires(t *testing.T) {
	s := NewSignal()
	s.Fire()
	done := make(chan struct{}) // never closes
	require.False(t, s.Wait(done, 10*time.Millisecond))
}

func TestWaitDrainWithinGrace(t *testing.T) {
	s := NewSignal()
	done := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(done)
	}()
	s.Fire()
	require.True(t, s.Wait(done, time.Second))
}
