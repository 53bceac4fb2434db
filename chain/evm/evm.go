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

// Package evm implements chain.Provider for every EVM chain over plain
// JSON-RPC. One implementation serves all EVM chains, parameterized by
// chain id and endpoint.
package evm

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/types"
)

func init() {
	chain.RegisterBuilder("evm", New)
}

// transferTopic is the Transfer(address,address,uint256) event signature.
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// logWindow is how many blocks back TransactionsByAddress scans for
// token transfer logs.
const logWindow = 10_000

var (
	selTransfer = []byte{0xa9, 0x05, 0x9c, 0xbb} // transfer(address,uint256)
	selApprove  = []byte{0x09, 0x5e, 0xa7, 0xb3} // approve(address,uint256)
)

// Provider talks to a single EVM node.
type Provider struct {
	chainID types.ChainID
	client  *chain.Client
}

// New constructs an EVM provider from an endpoint config.
func New(cfg chain.Config) (chain.Provider, error) {
	if cfg.URL == "" {
		return nil, errors.New("evm: endpoint URL required")
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
	var n hexutil.Uint64
	if err := p.client.Call(ctx, "eth_blockNumber", nil, &n); err != nil {
		return 0, err
	}
	return int64(n), nil
}

func (p *Provider) Transactions(ctx context.Context, block int64) ([]types.Transaction, error) {
	var blk rpcBlock
	err := p.client.Call(ctx, "eth_getBlockByNumber", []any{hexutil.EncodeUint64(uint64(block)), true}, &blk)
	if err != nil {
		return nil, err
	}
	ts := time.Unix(int64(blk.Timestamp), 0).UTC()
	txs := make([]types.Transaction, 0, len(blk.Transactions))
	for _, tx := range blk.Transactions {
		txs = append(txs, p.normalize(tx, int64(blk.Number), ts))
	}
	return txs, nil
}

// normalize maps a raw transaction to the wallet model. Transfers of the
// native asset, ERC-20 transfer and approve calls are decoded; everything
// else becomes a contract call.
func (p *Provider) normalize(tx rpcTransaction, block int64, ts time.Time) types.Transaction {
	out := types.Transaction{
		Hash:        tx.Hash.Hex(),
		Asset:       types.NativeAsset(p.chainID),
		From:        tx.From.Hex(),
		Kind:        types.KindTransfer,
		State:       types.StateConfirmed,
		BlockNumber: block,
		Sequence:    int64(tx.Nonce),
		Fee:         feeOf(tx),
		FeeAsset:    types.NativeAsset(p.chainID),
		Value:       types.AmountFromBig(tx.Value.ToInt()),
		CreatedAt:   ts,
	}
	if tx.To != nil {
		out.To = tx.To.Hex()
	}
	switch {
	case len(tx.Input) == 0:
		// Plain value transfer.
	case tx.To != nil && len(tx.Input) == 68 && bytes.HasPrefix(tx.Input, selTransfer):
		out.Kind = types.KindTokenTransfer
		out.Asset = types.TokenAsset(p.chainID, tx.To.Hex())
		out.To = common.BytesToAddress(tx.Input[4:36]).Hex()
		out.Value = types.AmountFromBig(new(big.Int).SetBytes(tx.Input[36:68]))
	case tx.To != nil && len(tx.Input) == 68 && bytes.HasPrefix(tx.Input, selApprove):
		out.Kind = types.KindTokenApprove
		out.Asset = types.TokenAsset(p.chainID, tx.To.Hex())
		out.To = common.BytesToAddress(tx.Input[4:36]).Hex()
		out.Value = types.AmountFromBig(new(big.Int).SetBytes(tx.Input[36:68]))
	default:
		out.Kind = types.KindContractCall
	}
	return out
}

// feeOf computes the fee ceiling from the gas limit and price. Receipts
// are not fetched during block ingestion, so the effective fee is not
// known here.
func feeOf(tx rpcTransaction) types.Amount {
	price := tx.GasPrice
	if price == nil {
		price = tx.MaxFeePerGas
	}
	if price == nil {
		return types.Amount{}
	}
	fee := new(big.Int).Mul(price.ToInt(), new(big.Int).SetUint64(uint64(tx.Gas)))
	return types.AmountFromBig(fee)
}

// TransactionsByAddress scans recent Transfer logs touching the address.
// Plain JSON-RPC nodes carry no account index, so the scan is bounded to
// the trailing logWindow blocks.
func (p *Provider) TransactionsByAddress(ctx context.Context, address string) ([]types.Transaction, error) {
	if !common.IsHexAddress(address) {
		return nil, &chain.UpstreamError{Method: "eth_getLogs", Msg: "invalid address " + address}
	}
	latest, err := p.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}
	from := latest - logWindow
	if from < 0 {
		from = 0
	}
	addrTopic := common.BytesToHash(common.HexToAddress(address).Bytes())

	var all []types.Transaction
	// Outgoing transfers, then incoming.
	for _, topics := range [][]any{
		{[]any{transferTopic}, []any{addrTopic}},
		{[]any{transferTopic}, nil, []any{addrTopic}},
	} {
		var logs []rpcLog
		err := p.client.Call(ctx, "eth_getLogs", []any{map[string]any{
			"fromBlock": hexutil.EncodeUint64(uint64(from)),
			"toBlock":   "latest",
			"topics":    topics,
		}}, &logs)
		if err != nil {
			if errors.Is(err, chain.ErrNotYetAvailable) {
				continue // empty log set decodes as null on some nodes
			}
			return nil, err
		}
		for _, lg := range logs {
			if tx, ok := p.normalizeLog(lg); ok {
				all = append(all, tx)
			}
		}
	}
	return all, nil
}

func (p *Provider) normalizeLog(lg rpcLog) (types.Transaction, bool) {
	if len(lg.Topics) != 3 || lg.Topics[0] != transferTopic {
		return types.Transaction{}, false
	}
	return types.Transaction{
		Hash:        lg.TxHash.Hex(),
		Asset:       types.TokenAsset(p.chainID, lg.Address.Hex()),
		From:        common.BytesToAddress(lg.Topics[1].Bytes()[12:]).Hex(),
		To:          common.BytesToAddress(lg.Topics[2].Bytes()[12:]).Hex(),
		Kind:        types.KindTokenTransfer,
		State:       types.StateConfirmed,
		BlockNumber: int64(lg.BlockNumber),
		Value:       types.AmountFromBig(new(big.Int).SetBytes(lg.Data)),
		FeeAsset:    types.NativeAsset(p.chainID),
	}, true
}
