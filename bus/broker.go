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
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	publishTimeout  = 5 * time.Second
	defaultPrefetch = 1
)

// Broker holds the process-wide AMQP connection. Channels are cheap and
// one is opened per publisher and per consumer binding.
type Broker struct {
	conn     *amqp.Connection
	retry    RetryPolicy
	prefetch int
	log      logrus.FieldLogger
}

// Dial connects to the broker and declares the full queue topology under
// the given retry policy.
func Dial(url string, retry RetryPolicy, log logrus.FieldLogger) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("bus: dial: %w", err)
	}
	b := &Broker{conn: conn, retry: retry.withDefaults(), prefetch: defaultPrefetch, log: log}
	if err := b.declareAll(); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// Close shuts the connection, closing every derived channel.
func (b *Broker) Close() error { return b.conn.Close() }

// declareAll declares each queue with its retry companion. A nack without
// requeue dead-letters into the companion, which holds the message for the
// policy's delay and dead-letters it back to the main queue.
func (b *Broker) declareAll() error {
	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	for _, q := range AllQueues() {
		_, err = ch.QueueDeclare(string(q), true, false, false, false, amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": q.retryName(),
		})
		if err != nil {
			return fmt.Errorf("bus: declare %s: %w", q, err)
		}
		_, err = ch.QueueDeclare(q.retryName(), true, false, false, false, amqp.Table{
			"x-message-ttl":             b.retry.holdTime().Milliseconds(),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": string(q),
		})
		if err != nil {
			return fmt.Errorf("bus: declare %s: %w", q.retryName(), err)
		}
	}
	return nil
}

// MaxAttempts exposes the retry budget so consumer bindings can ack away
// exhausted deliveries.
func (b *Broker) MaxAttempts() int { return b.retry.MaxAttempts }

// SetPrefetch overrides the per-consumer unacked message window. Call
// before Consume.
func (b *Broker) SetPrefetch(n int) {
	if n > 0 {
		b.prefetch = n
	}
}

// Publisher opens a dedicated channel for publishing.
func (b *Broker) Publisher() (*Publisher, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

// Publisher writes JSON messages to queues over its own channel. Not safe
// for concurrent use; each goroutine takes its own Publisher.
type Publisher struct {
	ch *amqp.Channel
}

// Publish encodes v as JSON and enqueues it durably.
func (p *Publisher) Publish(ctx context.Context, q Queue, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("bus: encode for %s: %w", q, err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(ctx, "", string(q), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Close releases the publisher's channel.
func (p *Publisher) Close() error { return p.ch.Close() }

// Acker settles one delivery. Exactly one of Ack or Nack is called per
// delivery.
type Acker interface {
	Ack() error
	Nack(requeue bool) error
}

// Delivery is one message handed to a consumer binding.
type Delivery struct {
	Queue   Queue
	Body    []byte
	Attempt int // 1 on first delivery
	Acker
}

// Consume opens a channel with prefetch 1 and adapts the AMQP delivery
// stream. The returned channel closes when the broker channel closes or
// ctx is done.
func (b *Broker) Consume(ctx context.Context, q Queue) (<-chan Delivery, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, err
	}
	tag := string(q) + "-" + uuid.NewString()[:8]
	deliveries, err := ch.Consume(string(q), tag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- Delivery{Queue: q, Body: d.Body, Attempt: attemptOf(d), Acker: amqpAcker{d}}:
				case <-ctx.Done():
					// Not settled here: the channel close requeues it.
					return
				}
			}
		}
	}()
	return out, nil
}

type amqpAcker struct {
	d amqp.Delivery
}

func (a amqpAcker) Ack() error { return a.d.Ack(false) }

func (a amqpAcker) Nack(requeue bool) error { return a.d.Nack(false, requeue) }

// attemptOf derives the delivery attempt from the x-death header the
// dead-letter cycle accumulates.
func attemptOf(d amqp.Delivery) int {
	deaths, ok := d.Headers["x-death"].([]any)
	if !ok {
		return 1
	}
	for _, raw := range deaths {
		entry, ok := raw.(amqp.Table)
		if !ok {
			continue
		}
		if entry["queue"] == string(d.RoutingKey) {
			if n, ok := entry["count"].(int64); ok {
				return int(n) + 1
			}
		}
	}
	return 1
}
