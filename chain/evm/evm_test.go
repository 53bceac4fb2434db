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

package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	recipient = "0x1111111111111111111111111111111111111111"
	token     = "0x2222222222222222222222222222222222222222"
	sender    = "0x3333333333333333333333333333333333333333"
)

// rpcStub answers JSON-RPC calls from a method handler table.
func rpcStub(t *testing.T, handlers map[string]func(params []json.RawMessage) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		h, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected rpc method %s", req.Method)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, h(req.Params))
	}))
}

func newTestProvider(t *testing.T, url string) *Provider {
	t.Helper()
	p, err := New(chain.Config{Chain: types.Ethereum, URL: url, RateLimit: 1000})
	require.NoError(t, err)
	return p.(*Provider)
}

func TestLatestBlock(t *testing.T) {
	srv := rpcStub(t, map[string]func([]json.RawMessage) string{
		"eth_blockNumber": func([]json.RawMessage) string { return `"0x112a880"` },
	})
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	n, err := p.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(18_000_000), n)
}

func TestTransactionsNormalization(t *testing.T) {
	transferInput := "0xa9059cbb" +
		"000000000000000000000000" + recipient[2:] +
		"0000000000000000000000000000000000000000000000000000000000002710"
	block := fmt.Sprintf(`{
		"number": "0x64",
		"hash": "0x%064d",
		"timestamp": "0x652d9f00",
		"transactions": [
			{"hash":"0x%064d","from":"%s","to":"%s","value":"0xde0b6b3a7640000","input":"0x","nonce":"0x1","gas":"0x5208","gasPrice":"0x3b9aca00"},
			{"hash":"0x%064d","from":"%s","to":"%s","value":"0x0","input":"%s","nonce":"0x2","gas":"0xc350","gasPrice":"0x3b9aca00"},
			{"hash":"0x%064d","from":"%s","to":"%s","value":"0x0","input":"0xdeadbeef01","nonce":"0x3","gas":"0xc350","gasPrice":"0x3b9aca00"}
		]
	}`, 7, 1, sender, recipient, 2, sender, token, transferInput, 3, sender, token)

	srv := rpcStub(t, map[string]func([]json.RawMessage) string{
		"eth_getBlockByNumber": func(params []json.RawMessage) string {
			var height string
			require.NoError(t, json.Unmarshal(params[0], &height))
			assert.Equal(t, "0x64", height)
			return block
		},
	})
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	txs, err := p.Transactions(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	native := txs[0]
	assert.Equal(t, types.KindTransfer, native.Kind)
	assert.Equal(t, types.NativeAsset(types.Ethereum), native.Asset)
	assert.Equal(t, "1000000000000000000", native.Value.String())
	assert.Equal(t, int64(100), native.BlockNumber)
	assert.Equal(t, int64(1), native.Sequence)
	assert.Equal(t, "21000000000000", native.Fee.String())

	tok := txs[1]
	assert.Equal(t, types.KindTokenTransfer, tok.Kind)
	assert.Equal(t, types.TokenAsset(types.Ethereum, "0x2222222222222222222222222222222222222222"), tok.Asset)
	assert.Equal(t, "10000", tok.Value.String())
	assert.Equal(t, "0x1111111111111111111111111111111111111111", tok.To)

	call := txs[2]
	assert.Equal(t, types.KindContractCall, call.Kind)
}

func TestTransactionsFutureBlock(t *testing.T) {
	srv := rpcStub(t, map[string]func([]json.RawMessage) string{
		"eth_getBlockByNumber": func([]json.RawMessage) string { return "null" },
	})
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.Transactions(context.Background(), 999)
	assert.ErrorIs(t, err, chain.ErrNotYetAvailable)
}

func TestTokenData(t *testing.T) {
	answers := map[string]string{
		// name() -> "Tether USD"
		selName: `"0x` +
			"0000000000000000000000000000000000000000000000000000000000000020" +
			"000000000000000000000000000000000000000000000000000000000000000a" +
			"5465746865722055534400000000000000000000000000000000000000000000" + `"`,
		// symbol() -> "USDT"
		selSymbol: `"0x` +
			"0000000000000000000000000000000000000000000000000000000000000020" +
			"0000000000000000000000000000000000000000000000000000000000000004" +
			"5553445400000000000000000000000000000000000000000000000000000000" + `"`,
		// decimals() -> 6
		selDecimals: `"0x0000000000000000000000000000000000000000000000000000000000000006"`,
	}
	srv := rpcStub(t, map[string]func([]json.RawMessage) string{
		"eth_call": func(params []json.RawMessage) string {
			var call struct {
				To   string `json:"to"`
				Data string `json:"data"`
			}
			require.NoError(t, json.Unmarshal(params[0], &call))
			out, ok := answers[call.Data]
			require.True(t, ok, "unexpected selector %s", call.Data)
			return out
		},
	})
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	asset, err := p.TokenData(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Tether USD", asset.Name)
	assert.Equal(t, "USDT", asset.Symbol)
	assert.Equal(t, int32(6), asset.Decimals)
	assert.Equal(t, types.AssetERC20, asset.Type)
	assert.Equal(t, types.Ethereum, asset.ID.Chain)
}

func TestTokenDataRejectsNonAddress(t *testing.T) {
	p := newTestProvider(t, "http://unused")
	_, err := p.TokenData(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, chain.ErrNotAToken)
}

func TestTransactionsByAddress(t *testing.T) {
	logResult := fmt.Sprintf(`[{
		"address": "%s",
		"topics": [
			"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
			"0x000000000000000000000000%s",
			"0x000000000000000000000000%s"
		],
		"data": "0x0000000000000000000000000000000000000000000000000000000000002710",
		"blockNumber": "0x64",
		"transactionHash": "0x%064d"
	}]`, token, sender[2:], recipient[2:], 9)

	srv := rpcStub(t, map[string]func([]json.RawMessage) string{
		"eth_blockNumber": func([]json.RawMessage) string { return `"0x100"` },
		"eth_getLogs": func(params []json.RawMessage) string {
			var q struct {
				Topics []json.RawMessage `json:"topics"`
			}
			require.NoError(t, json.Unmarshal(params[0], &q))
			if len(q.Topics) == 2 { // outgoing query
				return logResult
			}
			return "[]"
		},
	})
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	txs, err := p.TransactionsByAddress(context.Background(), sender)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, types.KindTokenTransfer, tx.Kind)
	assert.Equal(t, types.TokenAsset(types.Ethereum, "0x2222222222222222222222222222222222222222"), tx.Asset)
	assert.Equal(t, "10000", tx.Value.String())
	assert.Equal(t, int64(100), tx.BlockNumber)
}

func TestDecodeString(t *testing.T) {
	// bytes32 fallback used by early tokens.
	raw := make([]byte, 32)
	copy(raw, "MKR")
	assert.Equal(t, "MKR", decodeString(raw))

	assert.Equal(t, "", decodeString(nil))
	assert.Equal(t, "", decodeString(make([]byte, 40)))
}
