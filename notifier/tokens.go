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

package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pulsewallet/pulse-core/bus"
	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"
)

// ProviderSource resolves the chain provider for a chain. *chain.Registry
// satisfies it.
type ProviderSource interface {
	Provider(c types.ChainID) (chain.Provider, bool)
}

// AssetSource is the slice of the repository holding token metadata.
type AssetSource interface {
	GetMany(ctx context.Context, ids []types.AssetID) ([]types.Asset, error)
	UpsertToken(ctx context.Context, asset types.Asset) error
}

// TokenAddressConsumer consumes ChainAddressPayload: it scans the
// address's recent activity for token assets the repository has never
// seen and forwards the unknown ones to fetch_assets.
type TokenAddressConsumer struct {
	registry ProviderSource
	assets   AssetSource
	pub      Publisher
	cache    cache.Cache
	log      logrus.FieldLogger
}

// NewTokenAddressConsumer wires the address scanner.
func NewTokenAddressConsumer(reg ProviderSource, assets AssetSource, pub Publisher, c cache.Cache, log logrus.FieldLogger) *TokenAddressConsumer {
	return &TokenAddressConsumer{registry: reg, assets: assets, pub: pub, cache: c, log: log}
}

// ShouldProcess rate-limits rescans of the same address to one per hour.
func (t *TokenAddressConsumer) ShouldProcess(ctx context.Context, p bus.ChainAddressPayload) bool {
	won, err := cache.Once(ctx, t.cache, "token_addresses:"+p.Fingerprint(), time.Hour)
	if err != nil {
		t.log.WithError(err).Warn("Dedup check failed, processing anyway")
		return true
	}
	return won
}

// Process diffs the address's token assets against the repository and
// enqueues metadata fetches for the unknown ones.
func (t *TokenAddressConsumer) Process(ctx context.Context, p bus.ChainAddressPayload) (string, error) {
	provider, ok := t.registry.Provider(p.Chain)
	if !ok {
		return "", fmt.Errorf("no provider for chain %s", p.Chain)
	}
	txs, err := provider.TransactionsByAddress(ctx, p.Address)
	if err != nil {
		return "", fmt.Errorf("scan %s:%s: %w", p.Chain, p.Address, err)
	}

	seen := make(map[types.AssetID]bool)
	var ids []types.AssetID
	for i := range txs {
		id := txs[i].Asset
		if id.IsNative() || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "no tokens", nil
	}

	existing, err := t.assets.GetMany(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("asset lookup: %w", err)
	}
	have := make(map[types.AssetID]bool, len(existing))
	for _, a := range existing {
		have[a.ID] = true
	}
	var unknown bus.AssetsPayload
	for _, id := range ids {
		if !have[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return "all known", nil
	}
	if err := t.pub.Publish(ctx, bus.QueueAssets, unknown); err != nil {
		return "", fmt.Errorf("enqueue asset fetch: %w", err)
	}
	return strconv.Itoa(len(unknown)) + " unknown tokens", nil
}

// AssetsConsumer consumes AssetsPayload: it resolves metadata for each
// token id through the chain provider and persists it.
type AssetsConsumer struct {
	registry ProviderSource
	assets   AssetSource
	cache    cache.Cache
	log      logrus.FieldLogger
}

// NewAssetsConsumer wires the metadata fetcher.
func NewAssetsConsumer(reg ProviderSource, assets AssetSource, c cache.Cache, log logrus.FieldLogger) *AssetsConsumer {
	return &AssetsConsumer{registry: reg, assets: assets, cache: c, log: log}
}

// ShouldProcess always accepts; dedup is per asset id inside Process so a
// batch with one fresh id still does useful work.
func (a *AssetsConsumer) ShouldProcess(ctx context.Context, p bus.AssetsPayload) bool {
	return true
}

// Process fetches and persists each id's metadata. Identifiers that turn
// out not to be tokens are dropped; transient provider failures fail the
// whole message so the broker retries it.
func (a *AssetsConsumer) Process(ctx context.Context, p bus.AssetsPayload) (string, error) {
	stored := 0
	for _, id := range p {
		won, err := cache.Once(ctx, a.cache, "asset:"+id.String(), time.Hour)
		if err == nil && !won {
			continue
		}
		provider, ok := a.registry.Provider(id.Chain)
		if !ok {
			a.log.WithField("asset", id).Warn("No provider for asset's chain")
			continue
		}
		asset, err := provider.TokenData(ctx, id.TokenID)
		if errors.Is(err, chain.ErrNotAToken) {
			a.log.WithField("asset", id).Debug("Identifier is not a token")
			continue
		}
		if err != nil {
			return "", fmt.Errorf("token data %s: %w", id, err)
		}
		if err := a.assets.UpsertToken(ctx, asset); err != nil {
			return "", fmt.Errorf("persist %s: %w", id, err)
		}
		stored++
	}
	return strconv.Itoa(stored) + " assets stored", nil
}
