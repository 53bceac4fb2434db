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

package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeedFanOut(t *testing.T) {
	var feed Feed[int]
	a := feed.Subscribe(4)
	b := feed.Subscribe(4)

	require.Equal(t, 2, feed.Send(7))
	require.Equal(t, 7, <-a.C)
	require.Equal(t, 7, <-b.C)
}

func TestFeedDropsWhenFull(t *testing.T) {
	var feed Feed[int]
	sub := feed.Subscribe(1)

	require.Equal(t, 1, feed.Send(1))
	require.Equal(t, 0, feed.Send(2), "full buffer must not block the sender")
	require.Equal(t, 1, sub.Missed())
	require.Equal(t, 1, <-sub.C)
}

func TestFeedUnsubscribe(t *testing.T) {
	var feed Feed[string]
	sub := feed.Subscribe(1)
	require.Equal(t, 1, feed.Len())

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	require.Equal(t, 0, feed.Len())
	require.Equal(t, 0, feed.Send("x"))

	_, open := <-sub.C
	require.False(t, open)
}

func TestFeedZeroValue(t *testing.T) {
	var feed Feed[int]
	require.Equal(t, 0, feed.Send(1), "send on an empty feed is a no-op")
}
