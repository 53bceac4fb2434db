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

// Package parser drives one ingestion worker per chain: sense the head,
// fetch a batch of blocks, normalize and filter, persist, publish and
// advance the cursor. Workers are independent; nothing orders one chain
// against another.
package parser

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/pulsewallet/pulse-core/bus"
	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/common/mclock"
	"github.com/pulsewallet/pulse-core/event"
	"github.com/pulsewallet/pulse-core/internal/shutdown"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// StateStore is the slice of the repository holding the chain cursor.
type StateStore interface {
	GetState(ctx context.Context, chain types.ChainID) (types.ParserState, error)
	SetLatestBlock(ctx context.Context, chain types.ChainID, n int64) error
	SetCurrentBlock(ctx context.Context, chain types.ChainID, n int64) error
}

// TxStore is the slice of the repository persisting transactions.
type TxStore interface {
	UpsertMany(ctx context.Context, txs []types.Transaction, addrs []types.TransactionAddress) error
	KnownHashes(ctx context.Context, chain types.ChainID, hashes []string) (map[string]bool, error)
}

// Publisher hands persisted transactions to the queue layer.
type Publisher interface {
	Publish(ctx context.Context, q bus.Queue, v any) error
}

// StatusReporter records iteration outcomes. *scheduler.Reporter satisfies
// it.
type StatusReporter interface {
	Success(ctx context.Context, job string, interval, took time.Duration, processed int)
	Error(ctx context.Context, job string, err error)
}

// StateUpdate is broadcast on the worker's event feed after every
// successful iteration.
type StateUpdate struct {
	Chain        types.ChainID
	CurrentBlock int64
	LatestBlock  int64
	Transactions int // persisted by the iteration
}

// Config tunes one chain's worker. Zero fields fall back to the chain's
// defaults.
type Config struct {
	PollInterval       time.Duration // idle time when the head has not advanced
	BatchSize          int           // blocks per iteration
	MaxParallelFetches int           // concurrent block fetches within a batch
	ErrorBackoff       time.Duration // sleep after a failed iteration
}

func (cfg Config) withDefaults(c types.ChainID) Config {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = c.DefaultPollInterval()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = c.DefaultBatchSize()
	}
	if cfg.MaxParallelFetches == 0 {
		cfg.MaxParallelFetches = 4
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = 10 * time.Second
	}
	return cfg
}

// Worker is the per-chain ingestion loop. Exactly one worker per chain is
// active in a deployment; the cursor row is the worker's alone to mutate.
type Worker struct {
	chain    types.ChainID
	provider chain.Provider
	states   StateStore
	txs      TxStore
	pub      Publisher
	reporter StatusReporter
	stop     *shutdown.Signal
	clock    mclock.Clock
	cfg      Config
	log      logrus.FieldLogger
	events   *event.Feed[StateUpdate]
}

// NewWorker assembles a worker for the provider's chain.
func NewWorker(p chain.Provider, states StateStore, txs TxStore, pub Publisher, reporter StatusReporter, stop *shutdown.Signal, clock mclock.Clock, cfg Config, log logrus.FieldLogger) *Worker {
	if clock == nil {
		clock = mclock.System{}
	}
	c := p.Chain()
	return &Worker{
		chain:    c,
		provider: p,
		states:   states,
		txs:      txs,
		pub:      pub,
		reporter: reporter,
		stop:     stop,
		clock:    clock,
		cfg:      cfg.withDefaults(c),
		log:      log.WithField("chain", c),
	}
}

// SetEvents attaches a feed that receives a StateUpdate after every
// successful iteration. Must be called before Run.
func (w *Worker) SetEvents(feed *event.Feed[StateUpdate]) {
	w.events = feed
}

// Run iterates until the shutdown signal fires. The signal is only
// checked between iterations: an in-flight batch always drains through its
// last block and advances the cursor before the worker exits.
func (w *Worker) Run(ctx context.Context) error {
	w.log.WithField("batch", w.cfg.BatchSize).Info("Pipeline worker started")
	for {
		if w.stop.Fired() {
			w.log.Info("Pipeline worker stopped")
			return nil
		}
		start := w.clock.Now()
		processed, advanced, err := w.runIteration(ctx)
		took := w.clock.Now().Sub(start)

		switch {
		case err != nil && errors.Is(err, chain.ErrNotYetAvailable):
			// The head we sensed is not servable yet. Not a failure.
			if !w.sleep(w.cfg.PollInterval) {
				return nil
			}
		case err != nil:
			w.log.WithError(err).Warn("Iteration failed")
			w.reporter.Error(ctx, string(w.chain), err)
			if !w.sleep(w.cfg.ErrorBackoff) {
				return nil
			}
		case !advanced:
			if !w.sleep(w.cfg.PollInterval) {
				return nil
			}
		default:
			w.reporter.Success(ctx, string(w.chain), w.cfg.PollInterval, took, processed)
			// Still behind: start the next batch immediately.
		}
	}
}

// runIteration performs one full pipeline pass. advanced reports whether
// the cursor moved; a false return with nil error means the worker is at
// the head and should idle.
func (w *Worker) runIteration(ctx context.Context) (processed int, advanced bool, err error) {
	latest, err := w.provider.LatestBlock(ctx)
	if err != nil {
		return 0, false, err
	}
	if err := w.states.SetLatestBlock(ctx, w.chain, latest); err != nil {
		return 0, false, err
	}
	st, err := w.states.GetState(ctx, w.chain)
	if err != nil {
		return 0, false, err
	}
	from := st.CurrentBlock
	to := from + int64(w.cfg.BatchSize)
	if to > latest {
		to = latest
	}
	if to <= from {
		return 0, false, nil
	}

	blocks, err := w.fetchBlocks(ctx, from+1, to)
	if err != nil {
		return 0, false, err
	}

	var kept []types.Transaction
	for _, b := range blocks {
		filtered, err := w.filter(ctx, b.txs)
		if err != nil {
			return 0, false, err
		}
		kept = append(kept, filtered...)
	}

	addrs := types.AddressRowsFor(kept)
	if err := w.txs.UpsertMany(ctx, kept, addrs); err != nil {
		return 0, false, err
	}
	// Publish only after the batch is committed; a failure here leaves the
	// cursor behind so the blocks replay, and the upsert keeps the replay
	// idempotent.
	for i := range kept {
		payload := bus.TransactionPayload{
			Transaction: kept[i],
			Addresses:   kept[i].AddressRows(),
		}
		if err := w.pub.Publish(ctx, bus.QueueTransactions, payload); err != nil {
			return 0, false, err
		}
	}
	if err := w.states.SetCurrentBlock(ctx, w.chain, to); err != nil {
		return 0, false, err
	}
	if w.events != nil {
		w.events.Send(StateUpdate{
			Chain:        w.chain,
			CurrentBlock: to,
			LatestBlock:  latest,
			Transactions: len(kept),
		})
	}
	w.log.WithField("from", from+1).WithField("to", to).
		WithField("txs", len(kept)).Debug("Batch ingested")
	return len(kept), true, nil
}

type fetchedBlock struct {
	number int64
	txs    []types.Transaction
}

// fetchBlocks pulls blocks [from, to] with bounded parallelism and returns
// them sorted by block number. A skipped slot yields an empty block; a
// block that is not yet servable aborts the whole batch so the cursor
// never jumps a gap.
func (w *Worker) fetchBlocks(ctx context.Context, from, to int64) ([]fetchedBlock, error) {
	n := int(to - from + 1)
	results := make([]fetchedBlock, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxParallelFetches)
	for i := 0; i < n; i++ {
		i := i
		number := from + int64(i)
		g.Go(func() error {
			txs, err := w.provider.Transactions(ctx, number)
			if errors.Is(err, chain.ErrSkippedBlock) {
				txs, err = nil, nil
			}
			if err != nil {
				return err
			}
			results[i] = fetchedBlock{number: number, txs: txs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].number < results[j].number })
	return results, nil
}

// filter applies the normalization-side drops: indeterminate state, dust
// transfers below the chain's minimum, and transactions older than the
// chain's outdated window unless they are already persisted.
func (w *Worker) filter(ctx context.Context, txs []types.Transaction) ([]types.Transaction, error) {
	minTransfer := w.chain.MinimumTransferAmount()
	window := w.chain.OutdatedWindow()
	now := w.clock.Now()

	var stale []string
	for i := range txs {
		if w.isOutdated(&txs[i], now, window) {
			stale = append(stale, txs[i].Hash)
		}
	}
	known := map[string]bool{}
	if len(stale) > 0 {
		var err error
		known, err = w.txs.KnownHashes(ctx, w.chain, stale)
		if err != nil {
			return nil, err
		}
	}

	kept := txs[:0:0]
	for i := range txs {
		tx := &txs[i]
		if !tx.State.Valid() {
			continue
		}
		if tx.Kind == types.KindTransfer && minTransfer.Sign() > 0 && tx.Value.CmpBig(minTransfer) < 0 {
			continue
		}
		if w.isOutdated(tx, now, window) && !known[tx.Hash] {
			continue
		}
		kept = append(kept, *tx)
	}
	return kept, nil
}

func (w *Worker) isOutdated(tx *types.Transaction, now time.Time, window time.Duration) bool {
	return !tx.CreatedAt.IsZero() && now.Sub(tx.CreatedAt) > window
}

// sleep waits d, returning false when the shutdown signal cut it short.
func (w *Worker) sleep(d time.Duration) bool {
	select {
	case <-w.clock.After(d):
		return true
	case <-w.stop.Done():
		return false
	}
}
