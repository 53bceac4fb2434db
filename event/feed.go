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

// Package event implements typed one-to-many in-process feeds. Producers
// must never block on a slow consumer, so delivery is best effort: a
// subscriber whose buffer is full misses the value and can detect the gap
// through Missed.
package event

import "sync"

// Feed is a one-to-many broadcast of values of type T. The zero value is
// ready to use.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[*Subscription[T]]struct{}
}

// Subscription is one receiver of a feed. Values arrive on C until
// Unsubscribe, which closes it.
type Subscription[T any] struct {
	C <-chan T

	feed   *Feed[T]
	ch     chan T
	once   sync.Once
	mu     sync.Mutex
	missed int
}

// Subscribe registers a new receiver with the given buffer size. A send
// that finds the buffer full is counted as missed instead of blocking the
// producer, so size the buffer for the consumer's burst tolerance.
func (f *Feed[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan T, buffer)
	sub := &Subscription[T]{C: ch, feed: f, ch: ch}
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[*Subscription[T]]struct{})
	}
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	return sub
}

// Send delivers v to every subscriber whose buffer has room and returns
// how many received it.
func (f *Feed[T]) Send(v T) (nsent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		select {
		case sub.ch <- v:
			nsent++
		default:
			sub.mu.Lock()
			sub.missed++
			sub.mu.Unlock()
		}
	}
	return nsent
}

// Len returns the number of active subscriptions.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed[T]) remove(sub *Subscription[T]) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
}

// Unsubscribe removes the receiver and closes C. Safe to call more than
// once and from any goroutine.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s)
		close(s.ch)
	})
}

// Missed returns how many values were dropped because the subscriber's
// buffer was full.
func (s *Subscription[T]) Missed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missed
}
