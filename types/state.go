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

// ParserState is the persistent cursor of one chain's block pipeline.
// CurrentBlock is the highest block fully drained; LatestBlock the chain
// head last observed. CurrentBlock <= LatestBlock holds in steady state but
// a violation is recoverable by refetching the head.
//
// The row is created at boot for every known chain and mutated only by the
// chain's own pipeline worker; metrics exporters read it.
type ParserState struct {
	Chain        ChainID   `json:"chain" db:"chain"`
	CurrentBlock int64     `json:"current_block" db:"current_block"`
	LatestBlock  int64     `json:"latest_block" db:"latest_block"`
	IsEnabled    bool      `json:"is_enabled" db:"is_enabled"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Behind returns how many blocks the pipeline lags the observed head.
func (s *ParserState) Behind() int64 {
	if d := s.LatestBlock - s.CurrentBlock; d > 0 {
		return d
	}
	return 0
}
