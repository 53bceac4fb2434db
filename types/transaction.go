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

package types

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// TransactionKind classifies what a normalized transaction does. Unknown
// on-chain operations are dropped by providers, never mapped to a kind.
type TransactionKind string

const (
	KindTransfer        TransactionKind = "transfer"
	KindTokenTransfer   TransactionKind = "tokenTransfer"
	KindTokenApprove    TransactionKind = "tokenApprove"
	KindStakeDelegate   TransactionKind = "stakeDelegate"
	KindStakeUndelegate TransactionKind = "stakeUndelegate"
	KindStakeRedelegate TransactionKind = "stakeRedelegate"
	KindStakeRewards    TransactionKind = "stakeRewards"
	KindStakeWithdraw   TransactionKind = "stakeWithdraw"
	KindSwap            TransactionKind = "swap"
	KindContractCall    TransactionKind = "contractCall"
)

// TransactionState is the lifecycle state of a transaction at normalization
// time.
type TransactionState string

const (
	StatePending   TransactionState = "pending"
	StateConfirmed TransactionState = "confirmed"
	StateFailed    TransactionState = "failed"
	StateReverted  TransactionState = "reverted"
)

// Valid reports whether the state is one of the known lifecycle states.
// Providers occasionally surface records with indeterminate state; the
// pipeline drops those.
func (s TransactionState) Valid() bool {
	switch s {
	case StatePending, StateConfirmed, StateFailed, StateReverted:
		return true
	}
	return false
}

// Direction is a transaction's movement relative to a viewpoint address.
type Direction string

const (
	DirectionIncoming     Direction = "incoming"
	DirectionOutgoing     Direction = "outgoing"
	DirectionSelfTransfer Direction = "self"
)

// Transaction is the chain-agnostic transaction record. Providers are the
// only producers; everything downstream (pipeline, repository, notifier)
// treats the fields as already normalized.
//
// Invariants:
//   - Asset.Chain equals the chain of the block the transaction came from.
//   - FeeAsset.Chain equals Asset.Chain.
//   - State == StateConfirmed implies BlockNumber > 0.
//   - (Asset.Chain, Hash) is the upsert identity.
type Transaction struct {
	Hash        string           `json:"hash" db:"hash"`
	Asset       AssetID          `json:"asset" db:"asset_id"`
	From        string           `json:"from" db:"from_address"`
	To          string           `json:"to" db:"to_address"`
	Kind        TransactionKind  `json:"kind" db:"kind"`
	State       TransactionState `json:"state" db:"state"`
	BlockNumber int64            `json:"block_number" db:"block_number"`
	Sequence    int64            `json:"sequence" db:"sequence"`
	Fee         Amount           `json:"fee" db:"fee"`
	FeeAsset    AssetID          `json:"fee_asset" db:"fee_asset_id"`
	Value       Amount           `json:"value" db:"value"`
	Memo        string           `json:"memo,omitempty" db:"memo"`
	Direction   Direction        `json:"direction" db:"direction"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

// Chain returns the chain the transaction belongs to.
func (t *Transaction) Chain() ChainID { return t.Asset.Chain }

// ID returns the (chain, hash) identity string used for dedup keys.
func (t *Transaction) ID() string {
	return fmt.Sprintf("%s_%s", t.Asset.Chain, t.Hash)
}

// DirectionFor computes the transaction direction as seen from addr.
func (t *Transaction) DirectionFor(addr string) Direction {
	switch {
	case addr == t.From && addr == t.To:
		return DirectionSelfTransfer
	case addr == t.From:
		return DirectionOutgoing
	default:
		return DirectionIncoming
	}
}

// Involves reports whether addr participates in the transaction.
func (t *Transaction) Involves(addr string) bool {
	return addr != "" && (addr == t.From || addr == t.To)
}

// TransactionAddress is the join row linking a transaction to one address
// that participates in it. Every persisted transaction has at least one.
// Rows are garbage-collected together with their parent transaction.
type TransactionAddress struct {
	Chain     ChainID   `json:"chain" db:"chain"`
	Address   string    `json:"address" db:"address"`
	TxHash    string    `json:"tx_hash" db:"tx_hash"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AddressRows derives the TransactionAddress rows for the transaction: one
// row per distinct participating address, empty addresses skipped.
func (t *Transaction) AddressRows() []TransactionAddress {
	seen := mapset.NewThreadUnsafeSet[string]()
	var rows []TransactionAddress
	for _, addr := range []string{t.From, t.To} {
		if addr == "" || !seen.Add(addr) {
			continue
		}
		rows = append(rows, TransactionAddress{
			Chain:     t.Asset.Chain,
			Address:   addr,
			TxHash:    t.Hash,
			CreatedAt: t.CreatedAt,
		})
	}
	return rows
}

// AddressRowsFor derives the join rows for a whole batch, deduplicating
// (chain, address, hash) tuples across transactions.
func AddressRowsFor(txs []Transaction) []TransactionAddress {
	seen := mapset.NewThreadUnsafeSet[string]()
	var rows []TransactionAddress
	for i := range txs {
		for _, row := range txs[i].AddressRows() {
			key := string(row.Chain) + "/" + row.Address + "/" + row.TxHash
			if !seen.Add(key) {
				continue
			}
			rows = append(rows, row)
		}
	}
	return rows
}
