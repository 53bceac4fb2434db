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

// Package metrics exports the core's health to Prometheus: parser cursors
// per chain, job and consumer status from the shared cache, plus the error
// label sanitizer that keeps label cardinality bounded.
package metrics

import "regexp"

// maxLabelBytes caps sanitized messages. Truncation is stable so repeated
// errors with the same prefix fold into one label value.
const maxLabelBytes = 200

var (
	hexRun     = regexp.MustCompile(`(0x)?[0-9a-fA-F]{8,}`)
	decimalRun = regexp.MustCompile(`\d{5,}`)
)

// SanitizeError strips the variable fragments out of an error message:
// hex runs of eight or more characters (hashes, addresses), decimal runs
// of five or more digits (heights, ids), and anything past the first 200
// bytes. The result is safe to use as a metric label or a status
// histogram key.
func SanitizeError(msg string) string {
	msg = hexRun.ReplaceAllString(msg, "<hex>")
	msg = decimalRun.ReplaceAllString(msg, "<num>")
	if len(msg) > maxLabelBytes {
		msg = msg[:maxLabelBytes]
	}
	return msg
}
