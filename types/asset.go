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
	"database/sql/driver"
	"fmt"
	"strings"
)

// assetSeparator splits chain from token id in the canonical asset string.
// Token ids never contain it on any supported chain.
const assetSeparator = "::"

// AssetID identifies an asset as (chain, token id). The native asset of a
// chain has an empty TokenID. Token ids arrive canonicalized from the
// chain's provider (checksummed hex on EVM, raw program id on SPL, denom on
// Cosmos), so two AssetIDs are equal iff their fields are equal.
type AssetID struct {
	Chain   ChainID
	TokenID string
}

// NativeAsset returns the asset id of the chain's native asset.
func NativeAsset(chain ChainID) AssetID {
	return AssetID{Chain: chain}
}

// TokenAsset returns the asset id of a token on the given chain.
func TokenAsset(chain ChainID, tokenID string) AssetID {
	return AssetID{Chain: chain, TokenID: tokenID}
}

// ParseAssetID parses the canonical string form produced by String.
func ParseAssetID(s string) (AssetID, error) {
	raw, token, found := strings.Cut(s, assetSeparator)
	chain, err := ParseChain(raw)
	if err != nil {
		return AssetID{}, err
	}
	if found && token == "" {
		return AssetID{}, fmt.Errorf("asset %q has empty token id", s)
	}
	return AssetID{Chain: chain, TokenID: token}, nil
}

// IsNative reports whether the id refers to the chain's native asset.
func (a AssetID) IsNative() bool { return a.TokenID == "" }

// String returns the canonical form: "chain" for native assets,
// "chain::token" for tokens.
func (a AssetID) String() string {
	if a.TokenID == "" {
		return string(a.Chain)
	}
	return string(a.Chain) + assetSeparator + a.TokenID
}

// MarshalText implements encoding.TextMarshaler so asset ids serialize as
// their canonical string in JSON objects and map keys.
func (a AssetID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AssetID) UnmarshalText(text []byte) error {
	id, err := ParseAssetID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// Value implements driver.Valuer. Asset ids are stored in their canonical
// string form.
func (a AssetID) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *AssetID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = AssetID{}
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into AssetID", src)
	}
}

// AssetType describes the token standard behind an asset.
type AssetType string

const (
	AssetNative AssetType = "NATIVE"
	AssetERC20  AssetType = "ERC20"
	AssetBEP20  AssetType = "BEP20"
	AssetSPL    AssetType = "SPL"
	AssetTRC20  AssetType = "TRC20"
	AssetIBC    AssetType = "IBC"
	AssetJetton AssetType = "JETTON"
	AssetToken  AssetType = "TOKEN" // generic standard on chains without a named one
)

// Asset is the metadata record for one asset as reported by a chain
// provider and persisted by the repository.
type Asset struct {
	ID       AssetID   `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	Symbol   string    `json:"symbol" db:"symbol"`
	Decimals int32     `json:"decimals" db:"decimals"`
	Type     AssetType `json:"type" db:"asset_type"`
}
