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

package chain

import (
	"context"
	"testing"

	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	chain      types.ChainID
	tokenCalls int
}

func (p *countingProvider) Chain() types.ChainID { return p.chain }
func (p *countingProvider) LatestBlock(ctx context.Context) (int64, error) {
	return 0, nil
}
func (p *countingProvider) Transactions(ctx context.Context, block int64) ([]types.Transaction, error) {
	return nil, nil
}
func (p *countingProvider) TransactionsByAddress(ctx context.Context, address string) ([]types.Transaction, error) {
	return nil, nil
}
func (p *countingProvider) TokenData(ctx context.Context, tokenID string) (types.Asset, error) {
	p.tokenCalls++
	return types.Asset{
		ID:     types.TokenAsset(p.chain, tokenID),
		Symbol: "TST",
		Type:   types.AssetERC20,
	}, nil
}

func init() {
	RegisterBuilder("counting", func(cfg Config) (Provider, error) {
		return &countingProvider{chain: cfg.Chain}, nil
	})
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRegistryBuild(t *testing.T) {
	r, err := NewRegistry([]Config{
		{Chain: types.Ethereum, Kind: "counting"},
		{Chain: types.Bitcoin, Kind: "counting"},
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []types.ChainID{types.Bitcoin, types.Ethereum}, r.Chains())

	_, ok := r.Provider(types.Ethereum)
	assert.True(t, ok)
	_, ok = r.Provider(types.Solana)
	assert.False(t, ok)
}

func TestRegistrySkipsChainsWithoutBuilder(t *testing.T) {
	// Cosmos has no built-in provider kind and no override here.
	r, err := NewRegistry([]Config{{Chain: types.Cosmos}}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRejectsBadConfig(t *testing.T) {
	_, err := NewRegistry([]Config{{Chain: "nope", Kind: "counting"}}, testLogger())
	assert.Error(t, err)

	_, err = NewRegistry([]Config{{Chain: types.Ethereum, Kind: "missing-kind"}}, testLogger())
	assert.Error(t, err)

	_, err = NewRegistry([]Config{
		{Chain: types.Ethereum, Kind: "counting"},
		{Chain: types.Ethereum, Kind: "counting"},
	}, testLogger())
	assert.Error(t, err)
}

func TestRegistryTokenDataCached(t *testing.T) {
	r, err := NewRegistry([]Config{{Chain: types.Ethereum, Kind: "counting"}}, testLogger())
	require.NoError(t, err)

	p, ok := r.Provider(types.Ethereum)
	require.True(t, ok)

	ctx := context.Background()
	a1, err := p.TokenData(ctx, "0xToken")
	require.NoError(t, err)
	a2, err := p.TokenData(ctx, "0xToken")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)

	inner := p.(*cachedProvider).Provider.(*countingProvider)
	assert.Equal(t, 1, inner.tokenCalls)
}
