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

// maxStatusErrors bounds the per-status error histogram so a misbehaving
// job cannot grow its cache entry without limit.
const maxStatusErrors = 20

// ErrorEntry aggregates repeated occurrences of one error message.
type ErrorEntry struct {
	Message  string    `json:"message"`
	Count    int64     `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// JobStatus is the cached health record of one scheduled job. It lives in
// the shared cache under "job_status:<service>:<name>" with a TTL well
// beyond any sensible interval; it is never persisted.
type JobStatus struct {
	IntervalSec     int64        `json:"interval_sec"`
	LastRunMs       int64        `json:"last_run_duration_ms"`
	LastSuccessUnix int64        `json:"last_success_unix,omitempty"`
	LastError       string       `json:"last_error,omitempty"`
	LastErrorUnix   int64        `json:"last_error_at_unix,omitempty"`
	TotalProcessed  int64        `json:"total_processed"`
	TotalErrors     int64        `json:"total_errors"`
	Errors          []ErrorEntry `json:"errors,omitempty"`
}

// RecordError folds an error message into the histogram, bumping the count
// of an existing entry or appending a new one while the histogram has room.
func (s *JobStatus) RecordError(msg string, now time.Time) {
	s.LastError = msg
	s.LastErrorUnix = now.Unix()
	s.TotalErrors++
	for i := range s.Errors {
		if s.Errors[i].Message == msg {
			s.Errors[i].Count++
			s.Errors[i].LastSeen = now
			return
		}
	}
	if len(s.Errors) < maxStatusErrors {
		s.Errors = append(s.Errors, ErrorEntry{Message: msg, Count: 1, LastSeen: now})
	}
}

// ConsumerStatus is the cached health record of one queue consumer binding,
// keyed by "consumer_status:<queue>".
type ConsumerStatus struct {
	Queue           string       `json:"queue"`
	Processed       int64        `json:"processed"`
	Skipped         int64        `json:"skipped"` // ShouldProcess said no
	TotalErrors     int64        `json:"total_errors"`
	LastSuccessUnix int64        `json:"last_success_unix,omitempty"`
	AvgDurationMs   int64        `json:"avg_duration_ms"`
	LastResult      string       `json:"last_result,omitempty"`
	Errors          []ErrorEntry `json:"errors,omitempty"`
}

// RecordSuccess folds one processed message into the running stats.
func (s *ConsumerStatus) RecordSuccess(result string, took time.Duration, now time.Time) {
	s.Processed++
	s.LastSuccessUnix = now.Unix()
	s.LastResult = result
	ms := took.Milliseconds()
	if s.Processed == 1 {
		s.AvgDurationMs = ms
	} else {
		s.AvgDurationMs += (ms - s.AvgDurationMs) / s.Processed
	}
}

// RecordError folds an error message into the histogram.
func (s *ConsumerStatus) RecordError(msg string, now time.Time) {
	s.TotalErrors++
	for i := range s.Errors {
		if s.Errors[i].Message == msg {
			s.Errors[i].Count++
			s.Errors[i].LastSeen = now
			return
		}
	}
	if len(s.Errors) < maxStatusErrors {
		s.Errors = append(s.Errors, ErrorEntry{Message: msg, Count: 1, LastSeen: now})
	}
}
