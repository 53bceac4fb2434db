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
	"testing"

	"github.com/pulsewallet/pulse-core/bus"
	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/chain/chaintest"
	"github.com/pulsewallet/pulse-core/internal/testlog"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/stretchr/testify/require"
)

type fakeProviders map[types.ChainID]*chaintest.Provider

func (f fakeProviders) Provider(c types.ChainID) (chain.Provider, bool) {
	p, ok := f[c]
	return p, ok
}

type fakeAssets struct {
	known    map[types.AssetID]types.Asset
	upserted []types.Asset
}

func newFakeAssets(known ...types.Asset) *fakeAssets {
	f := &fakeAssets{known: make(map[types.AssetID]types.Asset)}
	for _, a := range known {
		f.known[a.ID] = a
	}
	return f
}

func (f *fakeAssets) GetMany(ctx context.Context, ids []types.AssetID) ([]types.Asset, error) {
	var out []types.Asset
	for _, id := range ids {
		if a, ok := f.known[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssets) UpsertToken(ctx context.Context, asset types.Asset) error {
	f.known[asset.ID] = asset
	f.upserted = append(f.upserted, asset)
	return nil
}

func tokenTx(chainID types.ChainID, tokenID string) types.Transaction {
	return types.Transaction{
		Hash:  "0x" + tokenID,
		Asset: types.TokenAsset(chainID, tokenID),
		Kind:  types.KindTokenTransfer,
		State: types.StateConfirmed,
	}
}

func TestTokenAddressConsumerPublishesUnknown(t *testing.T) {
	ctx := context.Background()
	provider := chaintest.New(types.Ethereum)
	known := types.TokenAsset(types.Ethereum, "0xdac17")
	provider.SetAddressTransactions("0xholder",
		tokenTx(types.Ethereum, "0xdac17"),
		tokenTx(types.Ethereum, "0xa0b86"),
		tokenTx(types.Ethereum, "0xa0b86"), // duplicate asset, counted once
		types.Transaction{Hash: "0xnative", Asset: types.NativeAsset(types.Ethereum), Kind: types.KindTransfer},
	)
	assets := newFakeAssets(types.Asset{ID: known, Symbol: "USDT"})
	pub := newFakePublisher()
	c := NewTokenAddressConsumer(fakeProviders{types.Ethereum: provider}, assets, pub, cache.NewMemory(), testlog.Logger(t))

	p := bus.ChainAddressPayload{Chain: types.Ethereum, Address: "0xholder"}
	require.True(t, c.ShouldProcess(ctx, p))
	result, err := c.Process(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "1 unknown tokens", result)

	published := pub.byQueue[bus.QueueAssets]
	require.Len(t, published, 1)
	require.Equal(t, bus.AssetsPayload{types.TokenAsset(types.Ethereum, "0xa0b86")}, published[0])
}

func TestTokenAddressConsumerAllKnown(t *testing.T) {
	ctx := context.Background()
	provider := chaintest.New(types.Ethereum)
	known := types.TokenAsset(types.Ethereum, "0xdac17")
	provider.SetAddressTransactions("0xholder", tokenTx(types.Ethereum, "0xdac17"))
	assets := newFakeAssets(types.Asset{ID: known, Symbol: "USDT"})
	pub := newFakePublisher()
	c := NewTokenAddressConsumer(fakeProviders{types.Ethereum: provider}, assets, pub, cache.NewMemory(), testlog.Logger(t))

	result, err := c.Process(ctx, bus.ChainAddressPayload{Chain: types.Ethereum, Address: "0xholder"})
	require.NoError(t, err)
	require.Equal(t, "all known", result)
	require.Empty(t, pub.byQueue[bus.QueueAssets])
}

func TestTokenAddressConsumerRescanThrottle(t *testing.T) {
	ctx := context.Background()
	c := NewTokenAddressConsumer(fakeProviders{}, newFakeAssets(), newFakePublisher(), cache.NewMemory(), testlog.Logger(t))

	p := bus.ChainAddressPayload{Chain: types.Ethereum, Address: "0xholder"}
	require.True(t, c.ShouldProcess(ctx, p))
	require.False(t, c.ShouldProcess(ctx, p))
	// A different address is an independent claim.
	require.True(t, c.ShouldProcess(ctx, bus.ChainAddressPayload{Chain: types.Ethereum, Address: "0xother"}))
}

func TestAssetsConsumerStoresMetadata(t *testing.T) {
	ctx := context.Background()
	provider := chaintest.New(types.Ethereum)
	id := types.TokenAsset(types.Ethereum, "0xa0b86")
	provider.SetToken("0xa0b86", types.Asset{ID: id, Name: "USD Coin", Symbol: "USDC", Decimals: 6, Type: types.AssetERC20})
	assets := newFakeAssets()
	c := NewAssetsConsumer(fakeProviders{types.Ethereum: provider}, assets, cache.NewMemory(), testlog.Logger(t))

	result, err := c.Process(ctx, bus.AssetsPayload{id})
	require.NoError(t, err)
	require.Equal(t, "1 assets stored", result)
	require.Len(t, assets.upserted, 1)
	require.Equal(t, "USDC", assets.upserted[0].Symbol)
}

func TestAssetsConsumerSkipsNonToken(t *testing.T) {
	ctx := context.Background()
	provider := chaintest.New(types.Ethereum)
	id := types.TokenAsset(types.Ethereum, "0xa0b86")
	provider.SetToken("0xa0b86", types.Asset{ID: id, Symbol: "USDC", Decimals: 6, Type: types.AssetERC20})
	bogus := types.TokenAsset(types.Ethereum, "0xnotatoken")
	assets := newFakeAssets()
	c := NewAssetsConsumer(fakeProviders{types.Ethereum: provider}, assets, cache.NewMemory(), testlog.Logger(t))

	// The non-token id is dropped without failing the batch.
	result, err := c.Process(ctx, bus.AssetsPayload{bogus, id})
	require.NoError(t, err)
	require.Equal(t, "1 assets stored", result)
	require.Len(t, assets.upserted, 1)
}

func TestAssetsConsumerPerIDDedup(t *testing.T) {
	ctx := context.Background()
	provider := chaintest.New(types.Ethereum)
	id := types.TokenAsset(types.Ethereum, "0xa0b86")
	provider.SetToken("0xa0b86", types.Asset{ID: id, Symbol: "USDC", Decimals: 6, Type: types.AssetERC20})
	assets := newFakeAssets()
	mem := cache.NewMemory()
	c := NewAssetsConsumer(fakeProviders{types.Ethereum: provider}, assets, mem, testlog.Logger(t))

	_, err := c.Process(ctx, bus.AssetsPayload{id})
	require.NoError(t, err)
	result, err := c.Process(ctx, bus.AssetsPayload{id})
	require.NoError(t, err)
	require.Equal(t, "0 assets stored", result)
	require.Len(t, assets.upserted, 1)
}
