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

// Package bus is the durable message layer: the RabbitMQ broker binding,
// the closed queue set with its payload types, and the generic consumer
// loop with ack/nack, dedup and status reporting.
package bus

import (
	"fmt"

	"github.com/pulsewallet/pulse-core/types"
)

// Queue names one of the durable queues of the core. The set is closed;
// publishing to or consuming from anything else is a startup error.
type Queue string

const (
	// QueueTransactions carries one TransactionPayload per transaction the
	// pipelines persist.
	QueueTransactions Queue = "chain_transactions"

	// QueueTokenAddresses carries ChainAddressPayload for addresses whose
	// token holdings should be rescanned.
	QueueTokenAddresses Queue = "fetch_token_addresses"

	// QueueAssets carries AssetsPayload listing token ids whose metadata
	// is still unknown.
	QueueAssets Queue = "fetch_assets"

	// QueueNotifications carries NotificationsPayload batches for the push
	// dispatcher.
	QueueNotifications Queue = "notifications_push"
)

// allQueues preserves declaration order for AllQueues.
var allQueues = []Queue{
	QueueTransactions, QueueTokenAddresses, QueueAssets, QueueNotifications,
}

// AllQueues returns the closed queue set. The returned slice is shared;
// callers must not mutate it.
func AllQueues() []Queue { return allQueues }

// ParseQueue validates a raw queue name.
func ParseQueue(s string) (Queue, error) {
	q := Queue(s)
	for _, known := range allQueues {
		if q == known {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown queue %q", s)
}

func (q Queue) String() string { return string(q) }

// retryName is the holding queue deliveries sit in between attempts.
func (q Queue) retryName() string { return string(q) + ".retry" }

// TransactionPayload is published by the block pipeline for every
// persisted transaction.
type TransactionPayload struct {
	Transaction types.Transaction          `json:"transaction"`
	Addresses   []types.TransactionAddress `json:"addresses"`
}

// Fingerprint is the stable dedup identity of the payload. The address
// rows are part of it: UTXO providers emit one record per receiving
// address under a shared transaction hash, and each of those must fan
// out on its own. Redeliveries carry the same body, so the derived row
// order is stable.
func (p TransactionPayload) Fingerprint() string {
	s := p.Transaction.ID()
	for _, row := range p.Addresses {
		s += ":" + row.Address
	}
	return s
}

// ChainAddressPayload asks the token discovery consumer to rescan one
// address's holdings.
type ChainAddressPayload struct {
	Chain   types.ChainID `json:"chain"`
	Address string        `json:"address"`
}

// Fingerprint is the stable dedup identity of the payload.
func (p ChainAddressPayload) Fingerprint() string {
	return string(p.Chain) + ":" + p.Address
}

// AssetsPayload lists token ids whose metadata should be fetched.
type AssetsPayload []types.AssetID

// NotificationsPayload is a batch of push notifications for one dispatch.
type NotificationsPayload struct {
	Notifications []types.Notification `json:"notifications"`
}
