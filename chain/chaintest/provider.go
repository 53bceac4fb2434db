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

// Package chaintest provides a scriptable in-memory chain.Provider for
// exercising the ingestion pipeline without a network.
package chaintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/types"
)

// Provider is a chain.Provider whose answers are scripted by the test.
// All methods are safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	chain     types.ChainID
	latest    int64
	latestErr error
	blocks    map[int64][]types.Transaction
	blockErrs map[int64][]error
	byAddress map[string][]types.Transaction
	tokens    map[string]types.Asset
	calls     []string
}

// New creates an empty provider for the given chain with latest block 0.
func New(c types.ChainID) *Provider {
	return &Provider{
		chain:     c,
		blocks:    make(map[int64][]types.Transaction),
		blockErrs: make(map[int64][]error),
		byAddress: make(map[string][]types.Transaction),
		tokens:    make(map[string]types.Asset),
	}
}

// SetLatest moves the scripted chain tip.
func (p *Provider) SetLatest(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = n
}

// SetLatestErr makes LatestBlock fail with err until reset with nil.
func (p *Provider) SetLatestErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latestErr = err
}

// AddBlock scripts the transactions of block n. Blocks at or below the
// tip that were never added answer with no transactions.
func (p *Provider) AddBlock(n int64, txs ...types.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocks[n] = append(p.blocks[n], txs...)
	if n > p.latest {
		p.latest = n
	}
}

// FailBlock queues err as the answer to the next Transactions call for
// block n. Queued errors are consumed in order before the scripted block
// content is served.
func (p *Provider) FailBlock(n int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockErrs[n] = append(p.blockErrs[n], err)
}

// SetAddressTransactions scripts the TransactionsByAddress answer.
func (p *Provider) SetAddressTransactions(addr string, txs ...types.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byAddress[addr] = txs
}

// SetToken scripts a TokenData answer.
func (p *Provider) SetToken(tokenID string, asset types.Asset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[tokenID] = asset
}

// Calls returns the journal of provider calls made so far.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *Provider) Chain() types.ChainID { return p.chain }

func (p *Provider) LatestBlock(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "latest")
	if p.latestErr != nil {
		return 0, p.latestErr
	}
	return p.latest, nil
}

func (p *Provider) Transactions(ctx context.Context, block int64) ([]types.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, fmt.Sprintf("block/%d", block))
	if errs := p.blockErrs[block]; len(errs) > 0 {
		err := errs[0]
		p.blockErrs[block] = errs[1:]
		return nil, err
	}
	if block > p.latest {
		return nil, chain.ErrNotYetAvailable
	}
	txs := p.blocks[block]
	out := make([]types.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}

func (p *Provider) TransactionsByAddress(ctx context.Context, address string) ([]types.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "address/"+address)
	txs := p.byAddress[address]
	out := make([]types.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}

func (p *Provider) TokenData(ctx context.Context, tokenID string) (types.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "token/"+tokenID)
	asset, ok := p.tokens[tokenID]
	if !ok {
		return types.Asset{}, chain.ErrNotAToken
	}
	return asset, nil
}
