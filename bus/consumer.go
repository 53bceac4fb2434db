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

package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pulsewallet/pulse-core/internal/shutdown"
	"github.com/sirupsen/logrus"
)

// Consumer handles payloads of one queue. ShouldProcess is the dedup and
// policy gate; a false return acks the delivery without work. Process does
// the work and returns a short human-readable result for the status
// record.
type Consumer[P any] interface {
	ShouldProcess(ctx context.Context, payload P) bool
	Process(ctx context.Context, payload P) (string, error)
}

// Binding runs one Consumer against one queue's delivery stream.
type Binding[P any] struct {
	queue       Queue
	consumer    Consumer[P]
	reporter    *Reporter
	log         logrus.FieldLogger
	stop        *shutdown.Signal
	timeout     time.Duration // per-message processing budget
	maxAttempts int
}

// BindingConfig tunes one consumer binding.
type BindingConfig struct {
	Timeout     time.Duration // default 30s
	MaxAttempts int           // default from the broker's retry policy
}

func (cfg BindingConfig) withDefaults() BindingConfig {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	return cfg
}

// NewBinding wires a consumer to a queue.
func NewBinding[P any](q Queue, c Consumer[P], reporter *Reporter, stop *shutdown.Signal, cfg BindingConfig, log logrus.FieldLogger) *Binding[P] {
	cfg = cfg.withDefaults()
	return &Binding[P]{
		queue:       q,
		consumer:    c,
		reporter:    reporter,
		log:         log.WithField("queue", q),
		stop:        stop,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Run drains deliveries until the stream closes or the shutdown signal
// fires. The in-flight message is always settled before returning.
func (b *Binding[P]) Run(ctx context.Context, deliveries <-chan Delivery) {
	for {
		select {
		case <-b.stop.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.handle(ctx, d)
		}
	}
}

// handle settles exactly one delivery. Decode failures and exhausted
// retries are acked away so the message stops cycling; processing errors
// are nacked without requeue and the dead-letter topology owns the retry.
func (b *Binding[P]) handle(ctx context.Context, d Delivery) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var payload P
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		// Acked, not nacked: a nack would dead-letter into the retry
		// queue and the message would cycle forever, since it can never
		// decode.
		b.log.WithError(err).Warn("Undecodable message dropped")
		b.reporter.Error(ctx, b.queue, err)
		b.settle(d, true)
		return
	}
	if d.Attempt > b.maxAttempts {
		b.log.WithField("attempt", d.Attempt).Warn("Retry budget exhausted, message dropped")
		b.reporter.Exhausted(ctx, b.queue)
		b.settle(d, true)
		return
	}
	if !b.consumer.ShouldProcess(ctx, payload) {
		b.reporter.Skip(ctx, b.queue)
		b.settle(d, true)
		return
	}

	start := time.Now()
	result, err := b.consumer.Process(ctx, payload)
	if err != nil {
		b.log.WithError(err).WithField("attempt", d.Attempt).Warn("Processing failed")
		b.reporter.Error(ctx, b.queue, err)
		b.settle(d, false)
		return
	}
	b.reporter.Success(ctx, b.queue, result, time.Since(start))
	b.settle(d, true)
}

func (b *Binding[P]) settle(d Delivery, ack bool) {
	var err error
	if ack {
		err = d.Ack()
	} else {
		err = d.Nack(false)
	}
	if err != nil {
		b.log.WithError(err).Warn("Settling delivery failed")
	}
}

// RunPerChain starts fn once per chain and waits for all of them. One
// chain's failure is logged and does not abort the others; the combined
// error count is returned.
func RunPerChain[C ~string](log logrus.FieldLogger, chains []C, fn func(chain C) error) int {
	type outcome struct {
		chain C
		err   error
	}
	results := make(chan outcome, len(chains))
	for _, c := range chains {
		go func(c C) {
			results <- outcome{chain: c, err: fn(c)}
		}(c)
	}
	failed := 0
	for range chains {
		r := <-results
		if r.err != nil {
			failed++
			log.WithField("chain", r.chain).WithError(r.err).Error("Chain worker exited with error")
		}
	}
	return failed
}
