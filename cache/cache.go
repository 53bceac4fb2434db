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

// Package cache is the shared coordination surface between processes:
// run stamps for scheduled jobs, consumer dedup marks and health status
// documents all live here. Values are JSON; keys are namespaced by the
// helpers in keys.go.
package cache

import (
	"context"
	"time"
)

// Cache is implemented by Redis for deployments and Memory for tests and
// dry runs. Get reports whether the key existed; a missing key is not an
// error. SetIfAbsent reports whether this caller created the key.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, val any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Once reports whether the caller is the first to claim key within ttl.
// Concurrent claimants across processes see exactly one true.
func Once(ctx context.Context, c Cache, key string, ttl time.Duration) (bool, error) {
	return c.SetIfAbsent(ctx, "once:"+key, 1, ttl)
}
