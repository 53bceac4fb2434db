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

// Package config loads the daemon configuration: a TOML file merged with
// PULSE_* environment overrides into an immutable struct. There is no hot
// reload; a change means a restart.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/naoina/toml"
	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/types"
)

// Duration is a time.Duration that reads "30s"-style strings from TOML
// and environment values.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler so dumped configs stay
// readable.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the loaded, validated daemon configuration. Treat it as
// read-only after Load.
type Config struct {
	Log      LogConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	RabbitMQ RabbitConfig
	Consumer ConsumerConfig
	Metrics  MetricsConfig
	Chains   map[string]ChainConfig
	Job      map[string]JobConfig
}

type LogConfig struct {
	Level string // logrus level name, default "info"
}

type PostgresConfig struct {
	URL  string
	Pool int // max open connections, default 10
}

type RedisConfig struct {
	URL string
}

type RabbitConfig struct {
	URL   string
	Retry RetryConfig
}

type RetryConfig struct {
	Delay   Duration // first retry hold time
	Timeout Duration // cap on the backed-off hold time
}

type ConsumerConfig struct {
	Prefetch int      // default 1
	Timeout  Duration // per-message budget, default 30s
}

type MetricsConfig struct {
	Addr string // metrics+health listen address, empty disables the server
}

// ChainConfig tunes one chain's pipeline and upstream endpoint. Zero
// PollInterval and BatchSize fall back to the chain's built-in defaults.
type ChainConfig struct {
	URL          string
	Kind         string // provider kind override for chains without a built-in one
	AuthToken    string
	PollInterval Duration
	BatchSize    int
	Enabled      bool
}

type JobConfig struct {
	Interval Duration
}

func defaults() *Config {
	return &Config{
		Log:      LogConfig{Level: "info"},
		Postgres: PostgresConfig{Pool: 10},
		RabbitMQ: RabbitConfig{Retry: RetryConfig{Delay: Duration(30 * time.Second), Timeout: Duration(5 * time.Minute)}},
		Consumer: ConsumerConfig{Prefetch: 1, Timeout: Duration(30 * time.Second)},
		Chains:   make(map[string]ChainConfig),
		Job:      make(map[string]JobConfig),
	}
}

// Load reads the optional TOML file, applies PULSE_* environment
// overrides on top and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := toml.NewDecoder(f).Decode(cfg); err != nil {
			if _, ok := err.(*toml.LineError); ok {
				err = errors.New(path + ", " + err.Error())
			}
			return nil, err
		}
	}
	if err := applyEnv(cfg, os.Environ()); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Postgres.Pool <= 0 {
		return fmt.Errorf("config: postgres.pool must be positive, got %d", c.Postgres.Pool)
	}
	if c.Consumer.Prefetch <= 0 {
		return fmt.Errorf("config: consumer.prefetch must be positive, got %d", c.Consumer.Prefetch)
	}
	if c.Consumer.Timeout <= 0 {
		return errors.New("config: consumer.timeout must be positive")
	}
	if c.RabbitMQ.Retry.Delay <= 0 || c.RabbitMQ.Retry.Timeout <= 0 {
		return errors.New("config: rabbitmq.retry delay and timeout must be positive")
	}
	for raw, cc := range c.Chains {
		if _, err := types.ParseChain(raw); err != nil {
			return fmt.Errorf("config: chains.%s: %w", raw, err)
		}
		if cc.Enabled && cc.URL == "" {
			return fmt.Errorf("config: chains.%s enabled without url", raw)
		}
		if cc.PollInterval < 0 || cc.BatchSize < 0 {
			return fmt.Errorf("config: chains.%s has negative tuning values", raw)
		}
	}
	for name, jc := range c.Job {
		if jc.Interval <= 0 {
			return fmt.Errorf("config: job.%s.interval must be positive", name)
		}
	}
	return nil
}

// EnabledChains returns the chains marked enabled, validated and sorted
// by the chain table's order.
func (c *Config) EnabledChains() []types.ChainID {
	var out []types.ChainID
	for _, id := range types.AllChains() {
		if cc, ok := c.Chains[string(id)]; ok && cc.Enabled {
			out = append(out, id)
		}
	}
	return out
}

// ChainEndpoints converts the enabled chain entries into provider
// registry configs.
func (c *Config) ChainEndpoints() []chain.Config {
	var out []chain.Config
	for _, id := range c.EnabledChains() {
		cc := c.Chains[string(id)]
		out = append(out, chain.Config{
			Chain:     id,
			Kind:      cc.Kind,
			URL:       cc.URL,
			AuthToken: cc.AuthToken,
		})
	}
	return out
}

// JobOverrides returns the configured per-job interval overrides.
func (c *Config) JobOverrides() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Job))
	for name, jc := range c.Job {
		out[name] = jc.Interval.Std()
	}
	return out
}
