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

package cache

import (
	"strconv"

	"github.com/pulsewallet/pulse-core/types"
)

// Key namespaces. Every key this module writes goes through one of these
// helpers so the full keyspace stays enumerable.

// JobStatusKey holds the JobStatus document of a scheduled job.
func JobStatusKey(job string) string { return "job_status:" + job }

// ConsumerStatusKey holds the ConsumerStatus document of a queue consumer.
func ConsumerStatusKey(queue string) string { return "consumer_status:" + queue }

// ScheduleKey holds the last-run stamp that coordinates a job across
// replicas.
func ScheduleKey(job string) string { return "job_schedule:" + job }

// DedupKey marks a consumed message so redeliveries are dropped.
func DedupKey(queue, fingerprint string) string {
	return "dedup:" + queue + ":" + fingerprint
}

// NotifyKey marks a delivered notification so a device is told about a
// transaction at most once.
func NotifyKey(deviceID int64, chain types.ChainID, txHash string) string {
	return "notify:" + strconv.FormatInt(deviceID, 10) + ":" + string(chain) + ":" + txHash
}
