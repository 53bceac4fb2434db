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

// Package bitcoin implements chain.Provider for bitcoind-style nodes.
// It serves bitcoin, litecoin and dogecoin; the wire protocol is the
// same for all three.
//
// Inputs are not resolved to addresses, since that needs a transaction
// index the reference deployment does not run. Records carry the output
// side only: one transfer per (transaction, receiving address), outputs
// to the same address summed.
package bitcoin

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/types"
)

func init() {
	chain.RegisterBuilder("bitcoin", New)
}

// bitcoind reports heights past the tip with this error code.
const errCodeOutOfRange = -8

// Provider talks to a single bitcoind-style node.
type Provider struct {
	chainID types.ChainID
	client  *chain.Client
}

// New constructs a UTXO provider from an endpoint config.
func New(cfg chain.Config) (chain.Provider, error) {
	if cfg.URL == "" {
		return nil, errors.New("bitcoin: endpoint URL required")
	}
	return &Provider{
		chainID: cfg.Chain,
		client: chain.NewClient(chain.ClientConfig{
			URL:       cfg.URL,
			AuthToken: cfg.AuthToken,
			RateLimit: cfg.RateLimit,
			Timeout:   cfg.Timeout,
		}),
	}, nil
}

func (p *Provider) Chain() types.ChainID { return p.chainID }

func (p *Provider) LatestBlock(ctx context.Context) (int64, error) {
	var n int64
	if err := p.client.Call(ctx, "getblockcount", nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Provider) Transactions(ctx context.Context, block int64) ([]types.Transaction, error) {
	var hashStr string
	if err := p.client.Call(ctx, "getblockhash", []any{block}, &hashStr); err != nil {
		var ue *chain.UpstreamError
		if errors.As(err, &ue) && ue.Code == errCodeOutOfRange {
			return nil, chain.ErrNotYetAvailable
		}
		return nil, err
	}
	hash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil {
		return nil, &chain.UpstreamError{Method: "getblockhash", Msg: "bad block hash " + hashStr}
	}
	var blk btcjson.GetBlockVerboseTxResult
	if err := p.client.Call(ctx, "getblock", []any{hash.String(), 2}, &blk); err != nil {
		return nil, err
	}
	ts := time.Unix(blk.Time, 0).UTC()
	var txs []types.Transaction
	for _, tx := range blk.Tx {
		txs = append(txs, p.normalize(tx, blk.Height, ts)...)
	}
	return txs, nil
}

// normalize flattens a raw transaction into one transfer per receiving
// address. Outputs without a decodable address (OP_RETURN and friends)
// are dropped.
func (p *Provider) normalize(tx btcjson.TxRawResult, height int64, ts time.Time) []types.Transaction {
	totals := make(map[string]btcutil.Amount)
	var order []string
	for _, out := range tx.Vout {
		addr := outputAddress(out)
		if addr == "" {
			continue
		}
		amt, err := btcutil.NewAmount(out.Value)
		if err != nil || amt <= 0 {
			continue
		}
		if _, seen := totals[addr]; !seen {
			order = append(order, addr)
		}
		totals[addr] += amt
	}
	txs := make([]types.Transaction, 0, len(order))
	for _, addr := range order {
		txs = append(txs, types.Transaction{
			Hash:        tx.Txid,
			Asset:       types.NativeAsset(p.chainID),
			To:          addr,
			Kind:        types.KindTransfer,
			State:       types.StateConfirmed,
			BlockNumber: height,
			Value:       types.NewAmount(int64(totals[addr])),
			FeeAsset:    types.NativeAsset(p.chainID),
			CreatedAt:   ts,
		})
	}
	return txs
}

func outputAddress(out btcjson.Vout) string {
	if out.ScriptPubKey.Address != "" {
		return out.ScriptPubKey.Address
	}
	if len(out.ScriptPubKey.Addresses) > 0 {
		return out.ScriptPubKey.Addresses[0]
	}
	return ""
}

// TransactionsByAddress needs an address index that bitcoind does not
// provide. It reports no transactions rather than failing, since UTXO
// chains also carry no tokens to discover.
func (p *Provider) TransactionsByAddress(ctx context.Context, address string) ([]types.Transaction, error) {
	return nil, nil
}

func (p *Provider) TokenData(ctx context.Context, tokenID string) (types.Asset, error) {
	return types.Asset{}, chain.ErrNotAToken
}
