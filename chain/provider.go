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

// Package chain defines the upstream provider contract and the registry
// that assembles one provider per enabled chain.
package chain

import (
	"context"

	"github.com/pulsewallet/pulse-core/types"
)

// Provider is the capability a chain integration exposes to the rest of
// the system. Implementations normalize upstream data into types values
// and upstream failures into the error vocabulary of this package; callers
// never see raw node responses or transport errors.
type Provider interface {
	// Chain returns the chain this provider serves.
	Chain() types.ChainID

	// LatestBlock returns the current chain tip height.
	LatestBlock(ctx context.Context) (int64, error)

	// Transactions returns all normalized transactions in the given block.
	// It returns ErrNotYetAvailable when the block is past the node's tip
	// and ErrSkippedBlock when the chain legitimately has no block at this
	// height.
	Transactions(ctx context.Context, block int64) ([]types.Transaction, error)

	// TransactionsByAddress returns recent transactions touching the
	// address, newest first. The depth is provider-defined.
	TransactionsByAddress(ctx context.Context, address string) ([]types.Transaction, error)

	// TokenData resolves metadata for a token identifier on this chain.
	// It returns ErrNotAToken for chains or identifiers without token
	// semantics.
	TokenData(ctx context.Context, tokenID string) (types.Asset, error)
}
