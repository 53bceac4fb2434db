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

package evm

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/types"
)

const (
	selName     = "0x06fdde03" // name()
	selSymbol   = "0x95d89b41" // symbol()
	selDecimals = "0x313ce567" // decimals()
)

// TokenData reads ERC-20 metadata from the contract itself.
func (p *Provider) TokenData(ctx context.Context, tokenID string) (types.Asset, error) {
	if !common.IsHexAddress(tokenID) {
		return types.Asset{}, chain.ErrNotAToken
	}
	addr := common.HexToAddress(tokenID)

	name, err := p.callString(ctx, addr, selName)
	if err != nil {
		return types.Asset{}, err
	}
	symbol, err := p.callString(ctx, addr, selSymbol)
	if err != nil {
		return types.Asset{}, err
	}
	decRaw, err := p.ethCall(ctx, addr, selDecimals)
	if err != nil {
		return types.Asset{}, err
	}
	if len(decRaw) == 0 {
		// A contract without decimals() is not an ERC-20.
		return types.Asset{}, chain.ErrNotAToken
	}
	decimals := new(big.Int).SetBytes(decRaw)
	if !decimals.IsInt64() || decimals.Int64() > 255 {
		return types.Asset{}, chain.ErrNotAToken
	}
	return types.Asset{
		ID:       types.TokenAsset(p.chainID, addr.Hex()),
		Name:     name,
		Symbol:   symbol,
		Decimals: int32(decimals.Int64()),
		Type:     types.AssetERC20,
	}, nil
}

func (p *Provider) ethCall(ctx context.Context, to common.Address, selector string) ([]byte, error) {
	var out hexutil.Bytes
	err := p.client.Call(ctx, "eth_call", []any{
		map[string]any{"to": to.Hex(), "data": selector},
		"latest",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) callString(ctx context.Context, to common.Address, selector string) (string, error) {
	raw, err := p.ethCall(ctx, to, selector)
	if err != nil {
		return "", err
	}
	return decodeString(raw), nil
}

// decodeString handles both ABI-encoded dynamic strings and the bytes32
// variant used by a handful of early tokens.
func decodeString(raw []byte) string {
	if len(raw) == 32 {
		return string(bytes.TrimRight(raw, "\x00"))
	}
	if len(raw) < 64 {
		return ""
	}
	offset := new(big.Int).SetBytes(raw[:32])
	if !offset.IsInt64() || offset.Int64()+32 > int64(len(raw)) {
		return ""
	}
	o := offset.Int64()
	length := new(big.Int).SetBytes(raw[o : o+32])
	if !length.IsInt64() || o+32+length.Int64() > int64(len(raw)) {
		return ""
	}
	return string(raw[o+32 : o+32+length.Int64()])
}
