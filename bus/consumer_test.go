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
	"errors"
	"testing"

	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/common/mclock"
	"github.com/pulsewallet/pulse-core/internal/shutdown"
	"github.com/pulsewallet/pulse-core/internal/testlog"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Address string `json:"address"`
}

type fakeAcker struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcker) Ack() error { f.acked = true; return nil }

func (f *fakeAcker) Nack(requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

type scriptedConsumer struct {
	accept bool
	result string
	err    error
	calls  int
}

func (c *scriptedConsumer) ShouldProcess(ctx context.Context, p testPayload) bool {
	return c.accept
}

func (c *scriptedConsumer) Process(ctx context.Context, p testPayload) (string, error) {
	c.calls++
	return c.result, c.err
}

type consumerHarness struct {
	binding  *Binding[testPayload]
	consumer *scriptedConsumer
	reporter *Reporter
	cache    *cache.Memory
}

func newConsumerHarness(t *testing.T, c *scriptedConsumer) *consumerHarness {
	mem := cache.NewMemory()
	log := testlog.Logger(t)
	rep := NewReporter(mem, mclock.System{}, log)
	stop := shutdown.NewSignal()
	b := NewBinding[testPayload](QueueTokenAddresses, c, rep, stop, BindingConfig{}, log)
	return &consumerHarness{binding: b, consumer: c, reporter: rep, cache: mem}
}

func delivery(t *testing.T, attempt int, payload any) (Delivery, *fakeAcker) {
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	acker := &fakeAcker{}
	return Delivery{Queue: QueueTokenAddresses, Body: body, Attempt: attempt, Acker: acker}, acker
}

func TestBindingSuccessAcks(t *testing.T) {
	ctx := context.Background()
	h := newConsumerHarness(t, &scriptedConsumer{accept: true, result: "done"})

	d, acker := delivery(t, 1, testPayload{Address: "0xabc"})
	h.binding.handle(ctx, d)

	require.True(t, acker.acked)
	require.False(t, acker.nacked)
	require.Equal(t, 1, h.consumer.calls)

	status, err := h.reporter.Status(ctx, QueueTokenAddresses)
	require.NoError(t, err)
	require.Equal(t, int64(1), status.Processed)
	require.Equal(t, "done", status.LastResult)
}

func TestBindingErrorNacksWithoutRequeue(t *testing.T) {
	ctx := context.Background()
	h := newConsumerHarness(t, &scriptedConsumer{accept: true, err: errors.New("upstream down")})

	d, acker := delivery(t, 1, testPayload{Address: "0xabc"})
	h.binding.handle(ctx, d)

	require.False(t, acker.acked)
	require.True(t, acker.nacked)
	require.False(t, acker.requeue, "retries go through the dead-letter cycle, not requeue")

	status, err := h.reporter.Status(ctx, QueueTokenAddresses)
	require.NoError(t, err)
	require.Equal(t, int64(1), status.TotalErrors)
	require.Equal(t, int64(0), status.Processed)
}

func TestBindingSkipAcks(t *testing.T) {
	ctx := context.Background()
	h := newConsumerHarness(t, &scriptedConsumer{accept: false})

	d, acker := delivery(t, 1, testPayload{Address: "0xabc"})
	h.binding.handle(ctx, d)

	require.True(t, acker.acked)
	require.Equal(t, 0, h.consumer.calls)

	status, err := h.reporter.Status(ctx, QueueTokenAddresses)
	require.NoError(t, err)
	require.Equal(t, int64(1), status.Skipped)
}

func TestBindingExhaustedAcksAway(t *testing.T) {
	ctx := context.Background()
	h := newConsumerHarness(t, &scriptedConsumer{accept: true, result: "done"})

	d, acker := delivery(t, DefaultRetryPolicy.MaxAttempts+1, testPayload{Address: "0xabc"})
	h.binding.handle(ctx, d)

	require.True(t, acker.acked, "exhausted deliveries must leave the cycle")
	require.Equal(t, 0, h.consumer.calls)

	status, err := h.reporter.Status(ctx, QueueTokenAddresses)
	require.NoError(t, err)
	require.Equal(t, int64(1), status.TotalErrors)
	require.Equal(t, "retry budget exhausted", status.Errors[0].Message)
}

func TestBindingUndecodableAcksAway(t *testing.T) {
	ctx := context.Background()
	h := newConsumerHarness(t, &scriptedConsumer{accept: true})

	// A message that never decodes would fail before the attempt budget
	// on every redelivery; acking is the only way it leaves the cycle.
	acker := &fakeAcker{}
	d := Delivery{Queue: QueueTokenAddresses, Body: []byte("{not json"), Attempt: 100, Acker: acker}
	h.binding.handle(ctx, d)

	require.True(t, acker.acked)
	require.False(t, acker.nacked, "a nack would dead-letter the message back into the cycle")
	require.Equal(t, 0, h.consumer.calls)

	status, err := h.reporter.Status(ctx, QueueTokenAddresses)
	require.NoError(t, err)
	require.Equal(t, int64(1), status.TotalErrors)
}

func TestBindingRunStopsOnSignal(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	log := testlog.Logger(t)
	stop := shutdown.NewSignal()
	b := NewBinding[testPayload](QueueTransactions, &scriptedConsumer{accept: true}, NewReporter(mem, mclock.System{}, log), stop, BindingConfig{}, log)

	deliveries := make(chan Delivery)
	done := make(chan struct{})
	go func() {
		b.Run(ctx, deliveries)
		close(done)
	}()
	stop.Fire()
	<-done
}

func TestBindingRunStopsOnClosedStream(t *testing.T) {
	ctx := context.Background()
	h := newConsumerHarness(t, &scriptedConsumer{accept: true, result: "ok"})

	deliveries := make(chan Delivery, 1)
	d, acker := delivery(t, 1, testPayload{Address: "0xabc"})
	deliveries <- d
	close(deliveries)

	h.binding.Run(ctx, deliveries)
	require.True(t, acker.acked)
}

func TestParseQueue(t *testing.T) {
	for _, q := range AllQueues() {
		got, err := ParseQueue(string(q))
		require.NoError(t, err)
		require.Equal(t, q, got)
	}
	_, err := ParseQueue("no_such_queue")
	require.Error(t, err)
}

func TestRunPerChain(t *testing.T) {
	log := testlog.Logger(t)
	chains := []string{"a", "b", "c"}
	failed := RunPerChain(log, chains, func(c string) error {
		if c == "b" {
			return errors.New("boom")
		}
		return nil
	})
	require.Equal(t, 1, failed)
}
