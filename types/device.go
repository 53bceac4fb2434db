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

import "time"

// Platform is the device operating system, selecting the push transport.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Device is one registered wallet installation. The API layer creates the
// row on first registration and soft-touches UpdatedAt on every
// authenticated call; the maintenance jobs GC subscriptions of devices
// whose UpdatedAt fell behind the configured threshold.
type Device struct {
	ID            int64     `json:"id" db:"id"`
	DeviceID      string    `json:"device_id" db:"device_id"` // opaque client token
	Platform      Platform  `json:"platform" db:"platform"`
	Locale        string    `json:"locale" db:"locale"`
	IsPushEnabled bool      `json:"is_push_enabled" db:"is_push_enabled"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Subscription binds a device to one (chain, address) it wants activity
// for. Unique on the full tuple.
type Subscription struct {
	DeviceID    int64   `json:"device_id" db:"device_id"`
	Chain       ChainID `json:"chain" db:"chain"`
	Address     string  `json:"address" db:"address"`
	WalletIndex int32   `json:"wallet_index" db:"wallet_index"`
}
