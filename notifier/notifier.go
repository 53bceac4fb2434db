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

// Package notifier turns persisted transactions into push notifications:
// subscriber lookup, per-device filters, localized message templates and
// the token discovery side channel.
package notifier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pulsewallet/pulse-core/bus"
	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"
)

// notifyTTL covers the transaction replay window: within it, a device is
// told about a given transaction at most once no matter how often the
// payload is redelivered.
const notifyTTL = 24 * time.Hour

// dedupTTL guards whole-payload reprocessing across consumer replicas.
const dedupTTL = 24 * time.Hour

// DeviceSource is the slice of the repository the fan-out reads.
type DeviceSource interface {
	SubscribersFor(ctx context.Context, chain types.ChainID, address string) ([]types.Device, error)
}

// Publisher enqueues the fan-out's products.
type Publisher interface {
	Publish(ctx context.Context, q bus.Queue, v any) error
}

// TransactionConsumer consumes TransactionPayload from chain_transactions
// and emits NotificationsPayload plus token discovery requests.
type TransactionConsumer struct {
	devices DeviceSource
	assets  AssetSource
	pub     Publisher
	cache   cache.Cache
	log     logrus.FieldLogger
}

// NewTransactionConsumer wires the fan-out.
func NewTransactionConsumer(devices DeviceSource, assets AssetSource, pub Publisher, c cache.Cache, log logrus.FieldLogger) *TransactionConsumer {
	return &TransactionConsumer{devices: devices, assets: assets, pub: pub, cache: c, log: log}
}

// ShouldProcess claims the payload's dedup key; redeliveries and replicas
// that lose the claim ack the message away. The key covers the address
// rows, not just the transaction identity: UTXO chains publish one
// payload per receiving address of the same transaction.
func (n *TransactionConsumer) ShouldProcess(ctx context.Context, p bus.TransactionPayload) bool {
	key := cache.DedupKey(string(bus.QueueTransactions), p.Fingerprint())
	won, err := n.cache.SetIfAbsent(ctx, key, 1, dedupTTL)
	if err != nil {
		// Cache trouble must not drop notifications; process and rely on
		// the per-device key.
		n.log.WithError(err).Warn("Dedup check failed, processing anyway")
		return true
	}
	return won
}

// Process fans one transaction out to every subscribed device.
func (n *TransactionConsumer) Process(ctx context.Context, p bus.TransactionPayload) (string, error) {
	tx := p.Transaction

	// Resolve subscribers per address row and remember which devices sit
	// on the sending side: their incoming copy of a self transfer is
	// skipped because the outgoing one already told them.
	type target struct {
		device  types.Device
		address string
	}
	var targets []target
	senders := make(map[int64]bool)
	for _, row := range p.Addresses {
		devices, err := n.devices.SubscribersFor(ctx, row.Chain, row.Address)
		if err != nil {
			return "", fmt.Errorf("subscribers for %s:%s: %w", row.Chain, row.Address, err)
		}
		for _, d := range devices {
			if row.Address == tx.From {
				senders[d.ID] = true
			}
			targets = append(targets, target{device: d, address: row.Address})
		}
	}

	decimals := n.assetDecimals(ctx, tx.Asset)

	var notifications []types.Notification
	for _, t := range targets {
		if !t.device.IsPushEnabled {
			continue
		}
		dir := tx.DirectionFor(t.address)
		if dir == types.DirectionIncoming && senders[t.device.ID] {
			// Wallet-internal transfer: the outgoing copy already told
			// this device.
			continue
		}
		won, err := n.cache.SetIfAbsent(ctx, cache.NotifyKey(t.device.ID, tx.Chain(), tx.Hash), 1, notifyTTL)
		if err != nil {
			return "", fmt.Errorf("notify dedup: %w", err)
		}
		if !won {
			continue
		}
		title, body := localize(t.device.Locale, &tx, dir, decimals)
		notifications = append(notifications, types.Notification{
			DeviceToken: t.device.DeviceID,
			Platform:    t.device.Platform,
			Title:       title,
			Body:        body,
			Data: map[string]string{
				"chain":     string(tx.Chain()),
				"hash":      tx.Hash,
				"kind":      string(tx.Kind),
				"direction": string(dir),
			},
		})
	}
	if len(notifications) > 0 {
		payload := bus.NotificationsPayload{Notifications: notifications}
		if err := n.pub.Publish(ctx, bus.QueueNotifications, payload); err != nil {
			return "", fmt.Errorf("enqueue notifications: %w", err)
		}
	}

	// Token discovery runs for recipient addresses somebody subscribes
	// to: a new token showing up there should appear in the wallet
	// without a manual add.
	discoveries := 0
	for _, t := range targets {
		if t.address != tx.To {
			continue
		}
		payload := bus.ChainAddressPayload{Chain: tx.Chain(), Address: t.address}
		won, err := cache.Once(ctx, n.cache, "token_discovery:"+payload.Fingerprint(), time.Hour)
		if err != nil || !won {
			continue
		}
		if err := n.pub.Publish(ctx, bus.QueueTokenAddresses, payload); err != nil {
			return "", fmt.Errorf("enqueue token discovery: %w", err)
		}
		discoveries++
	}

	return "notified " + strconv.Itoa(len(notifications)) + ", discoveries " + strconv.Itoa(discoveries), nil
}

// assetDecimals resolves the decimals to render amounts with. Tokens use
// their own metadata; when it is not in the repository yet, the chain's
// native decimals stand in until the discovery channel fills it.
func (n *TransactionConsumer) assetDecimals(ctx context.Context, id types.AssetID) int32 {
	if id.IsNative() {
		return id.Chain.Decimals()
	}
	assets, err := n.assets.GetMany(ctx, []types.AssetID{id})
	if err != nil {
		n.log.WithError(err).WithField("asset", id).Warn("Asset lookup failed, using native decimals")
		return id.Chain.Decimals()
	}
	if len(assets) == 0 {
		return id.Chain.Decimals()
	}
	return assets[0].Decimals
}
