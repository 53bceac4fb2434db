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
)

var (
	// ErrNotYetAvailable is returned by Transactions when the requested
	// height is above the node's current tip. The caller should retry on
	// its next cycle without advancing.
	ErrNotYetAvailable = errors.New("block not yet available")

	// ErrSkippedBlock is returned by Transactions when the chain has no
	// block at the requested height, for example a skipped slot. The
	// caller may advance past it.
	ErrSkippedBlock = errors.New("block skipped by chain")

	// ErrNotAToken is returned by TokenData when the identifier does not
	// name a token on this chain.
	ErrNotAToken = errors.New("identifier is not a token")
)

// UpstreamError wraps a definitive failure reported by the remote node,
// such as a JSON-RPC error object. It is not retriable: the node answered,
// and asking again will produce the same answer.
type UpstreamError struct {
	Method string
	Code   int
	Msg    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Method, e.Msg, e.Code)
}

// IsRetriable reports whether err is a transient transport condition worth
// retrying: timeouts, connection resets, rate limiting and server errors.
// Definitive upstream answers and the sentinel errors of this package are
// not retriable.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotYetAvailable) || errors.Is(err, ErrSkippedBlock) || errors.Is(err, ErrNotAToken) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}

// StatusError reports a non-2xx HTTP response from an upstream endpoint.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Code)
}
