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
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pulsewallet/pulse-core/types"
)

// Transactions persists normalized transactions and their address join
// rows. (chain, hash) is the upsert identity; re-ingesting a known
// transaction refreshes its mutable fields without touching created_at.
type Transactions struct {
	db *sqlx.DB
}

// UpsertMany writes a batch of transactions and their address rows in one
// database transaction; either everything in the batch lands or nothing
// does. Address rows piggyback on the same conflict rule so replays stay
// idempotent.
func (t *Transactions) UpsertMany(ctx context.Context, txs []types.Transaction, addrs []types.TransactionAddress) error {
	if len(txs) == 0 {
		return nil
	}
	dbtx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbtx.Rollback()

	for i := range txs {
		tx := &txs[i]
		_, err := dbtx.ExecContext(ctx, `
			INSERT INTO transactions
				(chain, hash, asset_id, from_address, to_address, kind, state,
				 block_number, sequence, fee, fee_asset_id, value, memo, direction, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (chain, hash) DO UPDATE SET
				state = EXCLUDED.state,
				block_number = EXCLUDED.block_number,
				fee = EXCLUDED.fee,
				memo = EXCLUDED.memo`,
			tx.Asset.Chain, tx.Hash, tx.Asset, tx.From, tx.To, tx.Kind, tx.State,
			tx.BlockNumber, tx.Sequence, tx.Fee, tx.FeeAsset, tx.Value, tx.Memo,
			tx.Direction, tx.CreatedAt)
		if err != nil {
			return err
		}
	}
	for i := range addrs {
		a := &addrs[i]
		_, err := dbtx.ExecContext(ctx, `
			INSERT INTO transactions_addresses (chain, address, tx_hash, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (chain, address, tx_hash) DO NOTHING`,
			a.Chain, a.Address, a.TxHash, a.CreatedAt)
		if err != nil {
			return err
		}
	}
	return dbtx.Commit()
}

// GetByHash returns one transaction by its (chain, hash) identity.
func (t *Transactions) GetByHash(ctx context.Context, chain types.ChainID, hash string) (types.Transaction, error) {
	var tx types.Transaction
	err := t.db.GetContext(ctx, &tx, `
		SELECT hash, asset_id, from_address, to_address, kind, state, block_number,
		       sequence, fee, fee_asset_id, value, memo, direction, created_at
		FROM transactions WHERE chain = $1 AND hash = $2`, chain, hash)
	return tx, wrapRow(err)
}

// KnownHashes filters hashes down to the ones already persisted for the
// chain. The pipeline uses it to exempt known transactions from the
// outdated filter.
func (t *Transactions) KnownHashes(ctx context.Context, chain types.ChainID, hashes []string) (map[string]bool, error) {
	known := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return known, nil
	}
	query, args, err := sqlx.In(`SELECT hash FROM transactions WHERE chain = ? AND hash IN (?)`, chain, hashes)
	if err != nil {
		return nil, err
	}
	var found []string
	if err := t.db.SelectContext(ctx, &found, t.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, h := range found {
		known[h] = true
	}
	return known, nil
}

// DeleteOlderThan garbage-collects transactions created before cutoff,
// address rows first so the join never dangles. Returns the number of
// transactions removed.
func (t *Transactions) DeleteOlderThan(ctx context.Context, chain types.ChainID, cutoff time.Time) (int64, error) {
	dbtx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer dbtx.Rollback()

	_, err = dbtx.ExecContext(ctx, `
		DELETE FROM transactions_addresses
		WHERE chain = $1 AND tx_hash IN
			(SELECT hash FROM transactions WHERE chain = $1 AND created_at < $2)`,
		chain, cutoff)
	if err != nil {
		return 0, err
	}
	res, err := dbtx.ExecContext(ctx,
		`DELETE FROM transactions WHERE chain = $1 AND created_at < $2`, chain, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, dbtx.Commit()
}
