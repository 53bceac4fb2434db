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

package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not yet available", ErrNotYetAvailable, false},
		{"skipped block", ErrSkippedBlock, false},
		{"not a token", fmt.Errorf("lookup: %w", ErrNotAToken), false},
		{"upstream answer", &UpstreamError{Method: "eth_call", Code: 3, Msg: "execution reverted"}, false},
		{"wrapped upstream", fmt.Errorf("token: %w", &UpstreamError{Code: -32000}), false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limited", &StatusError{URL: "http://node", Code: 429}, true},
		{"bad gateway", &StatusError{URL: "http://node", Code: 502}, true},
		{"client error", &StatusError{URL: "http://node", Code: 404}, false},
		{"net timeout", &net.DNSError{IsTimeout: true}, true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetriable(tt.err))
		})
	}
}
