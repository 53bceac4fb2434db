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

// ParserStates persists the per-chain pipeline cursor. Each row is written
// only by its own chain's pipeline worker; metrics exporters read all rows.
type ParserStates struct {
	db *sqlx.DB
}

// EnsureChains inserts a disabled zero row for every chain that does not
// have one yet. Called once at boot with the full chain set.
func (p *ParserStates) EnsureChains(ctx context.Context, chains []types.ChainID) error {
	for _, c := range chains {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO parser_states (chain, current_block, latest_block, is_enabled, updated_at)
			VALUES ($1, 0, 0, false, now())
			ON CONFLICT (chain) DO NOTHING`, c)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetState returns the cursor row of one chain.
func (p *ParserStates) GetState(ctx context.Context, chain types.ChainID) (types.ParserState, error) {
	var st types.ParserState
	err := p.db.GetContext(ctx, &st, `
		SELECT chain, current_block, latest_block, is_enabled, updated_at
		FROM parser_states WHERE chain = $1`, chain)
	return st, wrapRow(err)
}

// AllStates returns every cursor row, ordered by chain.
func (p *ParserStates) AllStates(ctx context.Context) ([]types.ParserState, error) {
	var out []types.ParserState
	err := p.db.SelectContext(ctx, &out, `
		SELECT chain, current_block, latest_block, is_enabled, updated_at
		FROM parser_states ORDER BY chain`)
	return out, err
}

// SetLatestBlock records the chain head observed by the pipeline.
func (p *ParserStates) SetLatestBlock(ctx context.Context, chain types.ChainID, n int64) error {
	return p.update(ctx, chain, `UPDATE parser_states SET latest_block = $2, updated_at = now() WHERE chain = $1`, n)
}

// SetCurrentBlock records the highest block fully drained.
func (p *ParserStates) SetCurrentBlock(ctx context.Context, chain types.ChainID, n int64) error {
	return p.update(ctx, chain, `UPDATE parser_states SET current_block = $2, updated_at = now() WHERE chain = $1`, n)
}

// SetEnabled flips the chain's enabled flag.
func (p *ParserStates) SetEnabled(ctx context.Context, chain types.ChainID, enabled bool) error {
	return p.update(ctx, chain, `UPDATE parser_states SET is_enabled = $2, updated_at = now() WHERE chain = $1`, enabled)
}

func (p *ParserStates) update(ctx context.Context, chain types.ChainID, query string, arg any) error {
	res, err := p.db.ExecContext(ctx, query, chain, arg)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
