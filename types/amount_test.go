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

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", a.String())

	_, err = ParseAmount("12.5")
	assert.Error(t, err)
	_, err = ParseAmount("")
	assert.Error(t, err)
	_, err = ParseAmount("0x10")
	assert.Error(t, err)
}

func TestAmountJSON(t *testing.T) {
	type wrap struct {
		V Amount `json:"v"`
	}

	// Quoted decimal string.
	var w wrap
	require.NoError(t, json.Unmarshal([]byte(`{"v":"1000"}`), &w))
	assert.Equal(t, "1000", w.V.String())

	// Bare number, as some RPCs emit.
	require.NoError(t, json.Unmarshal([]byte(`{"v":1000}`), &w))
	assert.Equal(t, "1000", w.V.String())

	// null maps to zero.
	require.NoError(t, json.Unmarshal([]byte(`{"v":null}`), &w))
	assert.True(t, w.V.IsZero())

	raw, err := json.Marshal(wrap{V: NewAmount(42)})
	require.NoError(t, err)
	assert.Equal(t, `{"v":"42"}`, string(raw))
}

func TestAmountScan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan([]byte("987654321")))
	assert.Equal(t, "987654321", a.String())

	require.NoError(t, a.Scan(int64(7)))
	assert.Equal(t, "7", a.String())

	require.NoError(t, a.Scan(nil))
	assert.True(t, a.IsZero())

	assert.Error(t, a.Scan(3.14))
}

func TestAmountCmp(t *testing.T) {
	small := NewAmount(999)
	threshold := big.NewInt(1_000)
	exact := NewAmount(1_000)

	assert.Negative(t, small.CmpBig(threshold))
	assert.Zero(t, exact.CmpBig(threshold))
	assert.Positive(t, NewAmount(5_000).CmpBig(threshold))
	assert.Negative(t, small.Cmp(exact))
}

func TestAmountValue(t *testing.T) {
	v, err := NewAmount(123).Value()
	require.NoError(t, err)
	assert.Equal(t, "123", v)
}
