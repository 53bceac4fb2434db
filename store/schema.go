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

import "context"

// schema is applied idempotently at boot. Production deployments run real
// migrations; this keeps dev environments and integration tests working
// from an empty database.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS parser_states (
		chain         TEXT PRIMARY KEY,
		current_block BIGINT NOT NULL DEFAULT 0,
		latest_block  BIGINT NOT NULL DEFAULT 0,
		is_enabled    BOOLEAN NOT NULL DEFAULT false,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		chain         TEXT NOT NULL,
		hash          TEXT NOT NULL,
		asset_id      TEXT NOT NULL,
		from_address  TEXT NOT NULL,
		to_address    TEXT NOT NULL,
		kind          TEXT NOT NULL,
		state         TEXT NOT NULL,
		block_number  BIGINT NOT NULL DEFAULT 0,
		sequence      BIGINT NOT NULL DEFAULT 0,
		fee           NUMERIC NOT NULL DEFAULT 0,
		fee_asset_id  TEXT NOT NULL,
		value         NUMERIC NOT NULL DEFAULT 0,
		memo          TEXT NOT NULL DEFAULT '',
		direction     TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chain, hash)
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_created_at_idx
		ON transactions (chain, created_at)`,
	`CREATE TABLE IF NOT EXISTS transactions_addresses (
		chain      TEXT NOT NULL,
		address    TEXT NOT NULL,
		tx_hash    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chain, address, tx_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id              BIGSERIAL PRIMARY KEY,
		device_id       TEXT NOT NULL UNIQUE,
		platform        TEXT NOT NULL,
		locale          TEXT NOT NULL DEFAULT 'en',
		is_push_enabled BOOLEAN NOT NULL DEFAULT true,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		device_id    BIGINT NOT NULL REFERENCES devices (id),
		chain        TEXT NOT NULL,
		address      TEXT NOT NULL,
		wallet_index INT NOT NULL DEFAULT 0,
		PRIMARY KEY (device_id, chain, address, wallet_index)
	)`,
	`CREATE INDEX IF NOT EXISTS subscriptions_chain_address_idx
		ON subscriptions (chain, address)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id         TEXT PRIMARY KEY,
		chain      TEXT NOT NULL,
		name       TEXT NOT NULL,
		symbol     TEXT NOT NULL,
		decimals   INT NOT NULL DEFAULT 0,
		asset_type TEXT NOT NULL
	)`,
}

// Migrate applies the schema statements in order.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
