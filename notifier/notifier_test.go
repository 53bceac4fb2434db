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

package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pulsewallet/pulse-core/bus"
	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/internal/testlog"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/stretchr/testify/require"
)

type fakeDevices struct {
	byAddress map[string][]types.Device
}

func (f *fakeDevices) SubscribersFor(ctx context.Context, c types.ChainID, address string) ([]types.Device, error) {
	return f.byAddress[address], nil
}

type fakePublisher struct {
	mu      sync.Mutex
	byQueue map[bus.Queue][]any
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{byQueue: make(map[bus.Queue][]any)}
}

func (f *fakePublisher) Publish(ctx context.Context, q bus.Queue, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byQueue[q] = append(f.byQueue[q], v)
	return nil
}

func (f *fakePublisher) notifications() []types.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Notification
	for _, v := range f.byQueue[bus.QueueNotifications] {
		out = append(out, v.(bus.NotificationsPayload).Notifications...)
	}
	return out
}

func device(id int64, token, locale string, push bool) types.Device {
	return types.Device{
		ID: id, DeviceID: token, Platform: types.PlatformIOS,
		Locale: locale, IsPushEnabled: push,
	}
}

func transferPayload(from, to string) bus.TransactionPayload {
	tx := types.Transaction{
		Hash:        "0xabc123",
		Asset:       types.NativeAsset(types.Ethereum),
		From:        from,
		To:          to,
		Kind:        types.KindTransfer,
		State:       types.StateConfirmed,
		BlockNumber: 100,
		FeeAsset:    types.NativeAsset(types.Ethereum),
		Value:       types.NewAmount(1500000000000000000), // 1.5 ETH
		Direction:   types.DirectionIncoming,
		CreatedAt:   time.Now(),
	}
	return bus.TransactionPayload{Transaction: tx, Addresses: tx.AddressRows()}
}

func TestFanOutNotifiesSubscriber(t *testing.T) {
	ctx := context.Background()
	devices := &fakeDevices{byAddress: map[string][]types.Device{
		"0xrecipient": {device(1, "token-1", "en-US", true)},
	}}
	pub := newFakePublisher()
	mem := cache.NewMemory()
	n := NewTransactionConsumer(devices, newFakeAssets(), pub, mem, testlog.Logger(t))

	p := transferPayload("0xsender", "0xrecipient")
	require.True(t, n.ShouldProcess(ctx, p))
	result, err := n.Process(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "notified 1, discoveries 1", result)

	got := pub.notifications()
	require.Len(t, got, 1)
	require.Equal(t, "token-1", got[0].DeviceToken)
	require.Equal(t, "Transfer received", got[0].Title)
	require.Equal(t, "You received 1.5 on Ethereum", got[0].Body)
	require.Equal(t, "0xabc123", got[0].Data["hash"])

	discoveries := pub.byQueue[bus.QueueTokenAddresses]
	require.Len(t, discoveries, 1)
	require.Equal(t, bus.ChainAddressPayload{Chain: types.Ethereum, Address: "0xrecipient"}, discoveries[0])
}

func TestFanOutSkipsPushDisabled(t *testing.T) {
	ctx := context.Background()
	devices := &fakeDevices{byAddress: map[string][]types.Device{
		"0xrecipient": {device(1, "token-1", "en", false)},
	}}
	pub := newFakePublisher()
	n := NewTransactionConsumer(devices, newFakeAssets(), pub, cache.NewMemory(), testlog.Logger(t))

	_, err := n.Process(ctx, transferPayload("0xsender", "0xrecipient"))
	require.NoError(t, err)
	require.Empty(t, pub.notifications())
}

func TestFanOutWalletInternalTransfer(t *testing.T) {
	ctx := context.Background()
	// One device owns both sides; it must only hear about the outgoing
	// side.
	d := device(7, "token-7", "en", true)
	devices := &fakeDevices{byAddress: map[string][]types.Device{
		"0xsender":    {d},
		"0xrecipient": {d},
	}}
	pub := newFakePublisher()
	n := NewTransactionConsumer(devices, newFakeAssets(), pub, cache.NewMemory(), testlog.Logger(t))

	_, err := n.Process(ctx, transferPayload("0xsender", "0xrecipient"))
	require.NoError(t, err)
	got := pub.notifications()
	require.Len(t, got, 1)
	require.Equal(t, "Transfer sent", got[0].Title)
}

func TestFanOutPayloadDedup(t *testing.T) {
	ctx := context.Background()
	devices := &fakeDevices{byAddress: map[string][]types.Device{}}
	pub := newFakePublisher()
	mem := cache.NewMemory()
	n := NewTransactionConsumer(devices, newFakeAssets(), pub, mem, testlog.Logger(t))

	p := transferPayload("0xsender", "0xrecipient")
	require.True(t, n.ShouldProcess(ctx, p))
	require.False(t, n.ShouldProcess(ctx, p), "redelivery within the TTL must be skipped")
}

func TestFanOutPerDeviceDedup(t *testing.T) {
	ctx := context.Background()
	devices := &fakeDevices{byAddress: map[string][]types.Device{
		"0xrecipient": {device(1, "token-1", "en", true)},
	}}
	pub := newFakePublisher()
	mem := cache.NewMemory()
	n := NewTransactionConsumer(devices, newFakeAssets(), pub, mem, testlog.Logger(t))

	p := transferPayload("0xsender", "0xrecipient")
	_, err := n.Process(ctx, p)
	require.NoError(t, err)
	_, err = n.Process(ctx, p) // replayed payload, same (device, chain, hash)
	require.NoError(t, err)
	require.Len(t, pub.notifications(), 1)
}

func TestLocalize(t *testing.T) {
	tx := &types.Transaction{
		Asset: types.NativeAsset(types.Ethereum),
		Kind:  types.KindTransfer,
		Value: types.NewAmount(2000000000000000000),
	}
	title, body := localize("es-MX", tx, types.DirectionIncoming, 18)
	require.Equal(t, "Transferencia recibida", title)
	require.Equal(t, "Recibiste 2 en Ethereum", body)

	// Unsupported locale falls back to English.
	title, _ = localize("sw", tx, types.DirectionIncoming, 18)
	require.Equal(t, "Transfer received", title)

	// Unknown kind maps to the generic template.
	tx.Kind = types.KindContractCall
	title, _ = localize("en", tx, types.DirectionOutgoing, 18)
	require.Equal(t, "Wallet activity", title)

	// A locale whose table misses the key also falls through to its own
	// generic entry.
	tx.Kind = types.KindSwap
	title, _ = localize("de", tx, types.DirectionOutgoing, 18)
	require.Equal(t, "Wallet-Aktivität", title)
}

func TestFanOutMultiOutputTransaction(t *testing.T) {
	ctx := context.Background()
	// UTXO providers emit one record per receiving address of the same
	// transaction; each payload must fan out, not just the first.
	devices := &fakeDevices{byAddress: map[string][]types.Device{
		"bc1qaaa": {device(1, "token-1", "en", true)},
		"1Bbb":    {device(2, "token-2", "en", true)},
	}}
	pub := newFakePublisher()
	mem := cache.NewMemory()
	n := NewTransactionConsumer(devices, newFakeAssets(), pub, mem, testlog.Logger(t))

	payload := func(to string) bus.TransactionPayload {
		tx := types.Transaction{
			Hash:        "cafe01",
			Asset:       types.NativeAsset(types.Bitcoin),
			To:          to,
			Kind:        types.KindTransfer,
			State:       types.StateConfirmed,
			BlockNumber: 800000,
			FeeAsset:    types.NativeAsset(types.Bitcoin),
			Value:       types.NewAmount(50000),
			CreatedAt:   time.Now(),
		}
		return bus.TransactionPayload{Transaction: tx, Addresses: tx.AddressRows()}
	}

	for _, p := range []bus.TransactionPayload{payload("bc1qaaa"), payload("1Bbb")} {
		require.True(t, n.ShouldProcess(ctx, p), "payloads for distinct outputs must both be processed")
		_, err := n.Process(ctx, p)
		require.NoError(t, err)
	}

	tokens := make(map[string]bool)
	for _, nt := range pub.notifications() {
		tokens[nt.DeviceToken] = true
	}
	require.True(t, tokens["token-1"])
	require.True(t, tokens["token-2"])
}

func TestFanOutTokenDecimals(t *testing.T) {
	ctx := context.Background()
	devices := &fakeDevices{byAddress: map[string][]types.Device{
		"0xrecipient": {device(1, "token-1", "en", true)},
	}}
	pub := newFakePublisher()
	usdc := types.Asset{
		ID:       types.TokenAsset(types.Ethereum, "0xa0b86"),
		Name:     "USD Coin",
		Symbol:   "USDC",
		Decimals: 6,
		Type:     types.AssetERC20,
	}
	n := NewTransactionConsumer(devices, newFakeAssets(usdc), pub, cache.NewMemory(), testlog.Logger(t))

	tx := types.Transaction{
		Hash:        "0xdef456",
		Asset:       usdc.ID,
		From:        "0xsender",
		To:          "0xrecipient",
		Kind:        types.KindTokenTransfer,
		State:       types.StateConfirmed,
		BlockNumber: 100,
		FeeAsset:    types.NativeAsset(types.Ethereum),
		Value:       types.NewAmount(2500000), // 2.5 USDC
		CreatedAt:   time.Now(),
	}
	_, err := n.Process(ctx, bus.TransactionPayload{Transaction: tx, Addresses: tx.AddressRows()})
	require.NoError(t, err)

	got := pub.notifications()
	require.Len(t, got, 1)
	require.Equal(t, "You received 2.5 on Ethereum", got[0].Body,
		"token amounts render with the token's decimals, not the chain's")
}
