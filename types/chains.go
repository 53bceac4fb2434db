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

// Package types contains the canonical data model shared by every pulse-core
// service: the closed chain set, asset identifiers, normalized transactions
// and the device/subscription records the notifier consumes.
package types

import (
	"fmt"
	"math/big"
	"time"
)

// ChainID identifies one of the supported blockchains. The set is closed:
// values not present in the chain table are rejected by ParseChain and must
// never be persisted.
type ChainID string

const (
	Bitcoin     ChainID = "bitcoin"
	Litecoin    ChainID = "litecoin"
	Doge        ChainID = "doge"
	Ethereum    ChainID = "ethereum"
	SmartChain  ChainID = "smartchain"
	Polygon     ChainID = "polygon"
	Arbitrum    ChainID = "arbitrum"
	Optimism    ChainID = "optimism"
	Base        ChainID = "base"
	AvalancheC  ChainID = "avalanchec"
	OpBNB       ChainID = "opbnb"
	Fantom      ChainID = "fantom"
	Gnosis      ChainID = "gnosis"
	Manta       ChainID = "manta"
	Blast       ChainID = "blast"
	ZkSync      ChainID = "zksync"
	Linea       ChainID = "linea"
	Mantle      ChainID = "mantle"
	Celo        ChainID = "celo"
	World       ChainID = "world"
	Sonic       ChainID = "sonic"
	Abstract    ChainID = "abstract"
	Berachain   ChainID = "berachain"
	Ink         ChainID = "ink"
	Unichain    ChainID = "unichain"
	Hyperliquid ChainID = "hyperliquid"
	Monad       ChainID = "monad"
	Solana      ChainID = "solana"
	Tron        ChainID = "tron"
	Ton         ChainID = "ton"
	Aptos       ChainID = "aptos"
	Sui         ChainID = "sui"
	Near        ChainID = "near"
	XRP         ChainID = "xrp"
	Stellar     ChainID = "stellar"
	Algorand    ChainID = "algorand"
	Cardano     ChainID = "cardano"
	Polkadot    ChainID = "polkadot"
	Cosmos      ChainID = "cosmos"
	Osmosis     ChainID = "osmosis"
	Celestia    ChainID = "celestia"
	Injective   ChainID = "injective"
	Sei         ChainID = "sei"
	Noble       ChainID = "noble"
	Thorchain   ChainID = "thorchain"
)

// ChainKind groups chains by their ledger model. Pipelines and providers key
// default behaviour off the kind, never off individual chains.
type ChainKind int

const (
	KindUTXO ChainKind = iota
	KindEVM
	KindCosmos
	KindSubstrate
	KindMove
	KindOther
)

func (k ChainKind) String() string {
	switch k {
	case KindUTXO:
		return "utxo"
	case KindEVM:
		return "evm"
	case KindCosmos:
		return "cosmos"
	case KindSubstrate:
		return "substrate"
	case KindMove:
		return "move"
	default:
		return "other"
	}
}

// chainInfo holds the static per-chain properties. Poll interval defaults
// track the chain's block time; batch sizes are sized so one iteration stays
// well under the poll interval on a healthy upstream.
type chainInfo struct {
	name        string
	kind        ChainKind
	decimals    int32
	denom       string
	poll        time.Duration
	batch       int
	minTransfer int64 // dust threshold for plain transfers, native units
	outdated    time.Duration
}

const (
	outdatedDefault = 15 * time.Minute
	outdatedSlow    = 30 * time.Minute
	outdatedBitcoin = 2 * time.Hour
)

var chainTable = map[ChainID]chainInfo{
	Bitcoin:     {"Bitcoin", KindUTXO, 8, "", 10 * time.Minute, 1, 0, outdatedBitcoin},
	Litecoin:    {"Litecoin", KindUTXO, 8, "", 150 * time.Second, 2, 0, outdatedSlow},
	Doge:        {"Dogecoin", KindUTXO, 8, "", time.Minute, 2, 0, outdatedSlow},
	Ethereum:    {"Ethereum", KindEVM, 18, "", 12 * time.Second, 10, 0, outdatedDefault},
	SmartChain:  {"BNB Chain", KindEVM, 18, "", 3 * time.Second, 15, 0, outdatedDefault},
	Polygon:     {"Polygon", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	Arbitrum:    {"Arbitrum", KindEVM, 18, "", time.Second, 25, 0, outdatedDefault},
	Optimism:    {"Optimism", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	Base:        {"Base", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	AvalancheC:  {"Avalanche C-Chain", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	OpBNB:       {"opBNB", KindEVM, 18, "", time.Second, 25, 0, outdatedDefault},
	Fantom:      {"Fantom", KindEVM, 18, "", time.Second, 25, 0, outdatedDefault},
	Gnosis:      {"Gnosis Chain", KindEVM, 18, "", 5 * time.Second, 15, 0, outdatedDefault},
	Manta:       {"Manta Pacific", KindEVM, 18, "", 10 * time.Second, 10, 0, outdatedDefault},
	Blast:       {"Blast", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	ZkSync:      {"zkSync Era", KindEVM, 18, "", time.Second, 25, 0, outdatedDefault},
	Linea:       {"Linea", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	Mantle:      {"Mantle", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	Celo:        {"Celo", KindEVM, 18, "", 5 * time.Second, 15, 0, outdatedDefault},
	World:       {"World Chain", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	Sonic:       {"Sonic", KindEVM, 18, "", time.Second, 25, 0, outdatedDefault},
	Abstract:    {"Abstract", KindEVM, 18, "", time.Second, 25, 0, outdatedDefault},
	Berachain:   {"Berachain", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	Ink:         {"Ink", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	Unichain:    {"Unichain", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	Hyperliquid: {"Hyperliquid EVM", KindEVM, 18, "", 2 * time.Second, 20, 0, outdatedDefault},
	Monad:       {"Monad", KindEVM, 18, "", time.Second, 25, 0, outdatedDefault},
	Solana:      {"Solana", KindOther, 9, "", time.Second, 25, 1_000, outdatedDefault},
	Tron:        {"Tron", KindOther, 6, "", 3 * time.Second, 15, 5_000, outdatedDefault},
	Ton:         {"TON", KindOther, 9, "", 5 * time.Second, 10, 0, outdatedDefault},
	Aptos:       {"Aptos", KindMove, 8, "", time.Second, 25, 0, outdatedDefault},
	Sui:         {"Sui", KindMove, 9, "", time.Second, 25, 0, outdatedDefault},
	Near:        {"NEAR", KindOther, 24, "", time.Second, 25, 0, outdatedDefault},
	XRP:         {"XRP Ledger", KindOther, 6, "", 4 * time.Second, 10, 5_000, outdatedDefault},
	Stellar:     {"Stellar", KindOther, 7, "", 5 * time.Second, 10, 50_000, outdatedDefault},
	Algorand:    {"Algorand", KindOther, 6, "", 3 * time.Second, 15, 0, outdatedDefault},
	Cardano:     {"Cardano", KindUTXO, 6, "", 20 * time.Second, 5, 0, outdatedDefault},
	Polkadot:    {"Polkadot", KindSubstrate, 10, "", 6 * time.Second, 10, 10_000_000, outdatedDefault},
	Cosmos:      {"Cosmos Hub", KindCosmos, 6, "uatom", 6 * time.Second, 10, 0, outdatedDefault},
	Osmosis:     {"Osmosis", KindCosmos, 6, "uosmo", 6 * time.Second, 10, 0, outdatedDefault},
	Celestia:    {"Celestia", KindCosmos, 6, "utia", 6 * time.Second, 10, 0, outdatedDefault},
	Injective:   {"Injective", KindCosmos, 18, "inj", 3 * time.Second, 15, 0, outdatedDefault},
	Sei:         {"Sei", KindCosmos, 6, "usei", time.Second, 25, 0, outdatedDefault},
	Noble:       {"Noble", KindCosmos, 6, "uusdc", 6 * time.Second, 10, 0, outdatedDefault},
	Thorchain:   {"THORChain", KindCosmos, 8, "rune", 6 * time.Second, 10, 0, outdatedDefault},
}

// allChains preserves a stable iteration order for AllChains. Keep in sync
// with the constant block above.
var allChains = []ChainID{
	Bitcoin, Litecoin, Doge,
	Ethereum, SmartChain, Polygon, Arbitrum, Optimism, Base, AvalancheC,
	OpBNB, Fantom, Gnosis, Manta, Blast, ZkSync, Linea, Mantle, Celo,
	World, Sonic, Abstract, Berachain, Ink, Unichain, Hyperliquid, Monad,
	Solana, Tron, Ton, Aptos, Sui, Near, XRP, Stellar, Algorand, Cardano,
	Polkadot, Cosmos, Osmosis, Celestia, Injective, Sei, Noble, Thorchain,
}

// AllChains returns every supported chain in a stable order. The returned
// slice is shared; callers must not mutate it.
func AllChains() []ChainID {
	return allChains
}

// ParseChain validates a raw chain string against the closed chain set.
func ParseChain(s string) (ChainID, error) {
	id := ChainID(s)
	if _, ok := chainTable[id]; !ok {
		return "", fmt.Errorf("unknown chain %q", s)
	}
	return id, nil
}

// Valid reports whether the chain belongs to the supported set.
func (c ChainID) Valid() bool {
	_, ok := chainTable[c]
	return ok
}

func (c ChainID) String() string { return string(c) }

// Name returns the human readable chain name.
func (c ChainID) Name() string { return chainTable[c].name }

// Kind returns the ledger model of the chain.
func (c ChainID) Kind() ChainKind { return chainTable[c].kind }

// Decimals returns the native asset decimals.
func (c ChainID) Decimals() int32 { return chainTable[c].decimals }

// Denom returns the on-chain denom string for chains that carry one
// (Cosmos-SDK chains); empty otherwise.
func (c ChainID) Denom() string { return chainTable[c].denom }

// DefaultPollInterval is the pipeline idle interval when the head has not
// advanced; roughly the chain's block time.
func (c ChainID) DefaultPollInterval() time.Duration { return chainTable[c].poll }

// DefaultBatchSize is the number of blocks one pipeline iteration covers at
// most. UTXO chains batch small, fast finality chains batch large.
func (c ChainID) DefaultBatchSize() int { return chainTable[c].batch }

// MinimumTransferAmount is the dust threshold applied to plain transfers
// during normalization, in the chain's smallest native unit. Zero disables
// the filter.
func (c ChainID) MinimumTransferAmount() *big.Int {
	return big.NewInt(chainTable[c].minTransfer)
}

// OutdatedWindow is the wall-clock age beyond which an unknown transaction
// is dropped by the pipeline.
func (c ChainID) OutdatedWindow() time.Duration { return chainTable[c].outdated }
