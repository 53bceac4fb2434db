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

// Package store is the Postgres repository. It owns transactions, their
// address join rows, parser cursors, devices with their subscriptions and
// asset metadata. Callers get typed errors: ErrNotFound, ErrConflict and a
// transient classification for everything worth retrying.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when an insert hits a uniqueness constraint
	// that the caller did not ask to be resolved by upsert.
	ErrConflict = errors.New("store: conflict")
)

// IsTransient reports whether err is a temporary database condition worth
// retrying: connection failures, serialization aborts, resource exhaustion
// and administrator-initiated disconnects.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code.Class() {
		case "08", "53", "57", "58":
			return true
		}
		return pe.Code == "40001" || pe.Code == "40P01"
	}
	return false
}

// wrapRow converts sql.ErrNoRows into ErrNotFound and passes everything
// else through.
func wrapRow(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Config holds the connection options for Open.
type Config struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 16
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 4
	}
	return cfg
}

// Store bundles the repository surfaces over one connection pool.
type Store struct {
	db *sqlx.DB

	ParserStates *ParserStates
	Transactions *Transactions
	Devices      *Devices
	Assets       *Assets
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db}
	s.ParserStates = &ParserStates{db: db}
	s.Transactions = &Transactions{db: db}
	s.Devices = &Devices{db: db}
	s.Assets = &Assets{db: db}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the pool still reaches the database. The health endpoint
// calls it.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
