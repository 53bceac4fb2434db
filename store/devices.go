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

// Devices persists wallet installations and their address subscriptions.
// The API layer owns registration; the core reads subscribers during
// notification fan-out and garbage-collects stale devices' subscriptions.
type Devices struct {
	db *sqlx.DB
}

// Get returns a device by its opaque client token.
func (d *Devices) Get(ctx context.Context, deviceID string) (types.Device, error) {
	var dev types.Device
	err := d.db.GetContext(ctx, &dev, `
		SELECT id, device_id, platform, locale, is_push_enabled, created_at, updated_at
		FROM devices WHERE device_id = $1`, deviceID)
	return dev, wrapRow(err)
}

// SubscribersFor returns the devices subscribed to (chain, address).
func (d *Devices) SubscribersFor(ctx context.Context, chain types.ChainID, address string) ([]types.Device, error) {
	var out []types.Device
	err := d.db.SelectContext(ctx, &out, `
		SELECT d.id, d.device_id, d.platform, d.locale, d.is_push_enabled, d.created_at, d.updated_at
		FROM devices d
		JOIN subscriptions s ON s.device_id = d.id
		WHERE s.chain = $1 AND s.address = $2`, chain, address)
	return out, err
}

// SubscriptionsOf returns every subscription of one device.
func (d *Devices) SubscriptionsOf(ctx context.Context, deviceID int64) ([]types.Subscription, error) {
	var out []types.Subscription
	err := d.db.SelectContext(ctx, &out, `
		SELECT device_id, chain, address, wallet_index
		FROM subscriptions WHERE device_id = $1`, deviceID)
	return out, err
}

// Touch refreshes the device's updated_at, postponing its GC.
func (d *Devices) Touch(ctx context.Context, deviceID string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE devices SET updated_at = now() WHERE device_id = $1`, deviceID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Inactive returns device ids whose updated_at fell into the window
// [now-maxDays, now-minDays). The GC job works the window oldest-first in
// bounded batches.
func (d *Devices) Inactive(ctx context.Context, minDays, maxDays int) ([]int64, error) {
	var out []int64
	err := d.db.SelectContext(ctx, &out, `
		SELECT id FROM devices
		WHERE updated_at < now() - make_interval(days => $1)
		  AND updated_at >= now() - make_interval(days => $2)
		ORDER BY updated_at ASC
		LIMIT 1000`, minDays, maxDays)
	return out, err
}

// DeleteSubscriptions removes every subscription of the given devices.
// Returns the number of rows removed.
func (d *Devices) DeleteSubscriptions(ctx context.Context, deviceIDs []int64) (int64, error) {
	if len(deviceIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM subscriptions WHERE device_id IN (?)`, deviceIDs)
	if err != nil {
		return 0, err
	}
	res, err := d.db.ExecContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
