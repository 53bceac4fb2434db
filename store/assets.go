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

package store

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pulsewallet/pulse-core/types"
)

// Assets persists token metadata discovered by the chain providers.
type Assets struct {
	db *sqlx.DB
}

// GetMany returns the assets that exist among the requested ids. Missing
// ids are simply absent from the result; the token discovery consumer
// diffs against the request to find them.
func (a *Assets) GetMany(ctx context.Context, ids []types.AssetID) ([]types.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	query, args, err := sqlx.In(`
		SELECT id, name, symbol, decimals, asset_type
		FROM assets WHERE id IN (?)`, strs)
	if err != nil {
		return nil, err
	}
	var out []types.Asset
	err = a.db.SelectContext(ctx, &out, a.db.Rebind(query), args...)
	return out, err
}

// UpsertToken writes one asset's metadata, replacing any previous record.
func (a *Assets) UpsertToken(ctx context.Context, asset types.Asset) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO assets (id, chain, name, symbol, decimals, asset_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			asset_type = EXCLUDED.asset_type`,
		asset.ID, asset.ID.Chain, asset.Name, asset.Symbol, asset.Decimals, asset.Type)
	return err
}
