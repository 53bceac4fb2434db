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

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// envPrefix scopes the daemon's environment overrides.
const envPrefix = "PULSE_"

// setters maps fixed environment keys (after the prefix) to config
// fields. Dynamic chains.* and job.* keys are handled separately.
var setters = map[string]func(*Config, string) error{
	"LOG_LEVEL":    func(c *Config, v string) error { c.Log.Level = v; return nil },
	"POSTGRES_URL": func(c *Config, v string) error { c.Postgres.URL = v; return nil },
	"POSTGRES_POOL": func(c *Config, v string) error {
		n, err := cast.ToIntE(v)
		c.Postgres.Pool = n
		return err
	},
	"REDIS_URL":    func(c *Config, v string) error { c.Redis.URL = v; return nil },
	"RABBITMQ_URL": func(c *Config, v string) error { c.RabbitMQ.URL = v; return nil },
	"RABBITMQ_RETRY_DELAY": func(c *Config, v string) error {
		d, err := cast.ToDurationE(v)
		c.RabbitMQ.Retry.Delay = Duration(d)
		return err
	},
	"RABBITMQ_RETRY_TIMEOUT": func(c *Config, v string) error {
		d, err := cast.ToDurationE(v)
		c.RabbitMQ.Retry.Timeout = Duration(d)
		return err
	},
	"CONSUMER_PREFETCH": func(c *Config, v string) error {
		n, err := cast.ToIntE(v)
		c.Consumer.Prefetch = n
		return err
	},
	"CONSUMER_TIMEOUT": func(c *Config, v string) error {
		d, err := cast.ToDurationE(v)
		c.Consumer.Timeout = Duration(d)
		return err
	},
	"METRICS_ADDR": func(c *Config, v string) error { c.Metrics.Addr = v; return nil },
}

// chainFields are the recognized per-chain override suffixes, longest
// first so POLL_INTERVAL is not split as chain "...POLL" + "INTERVAL".
var chainFields = []string{"POLL_INTERVAL", "AUTH_TOKEN", "BATCH_SIZE", "ENABLED", "KIND", "URL"}

// applyEnv folds PULSE_* variables from environ into cfg. Unrecognized
// PULSE_ keys are errors so typos fail loudly at boot.
func applyEnv(cfg *Config, environ []string) error {
	for _, kv := range environ {
		key, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		key = strings.TrimPrefix(key, envPrefix)
		if set, ok := setters[key]; ok {
			if err := set(cfg, value); err != nil {
				return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
			}
			continue
		}
		var err error
		switch {
		case strings.HasPrefix(key, "CHAINS_"):
			err = applyChainEnv(cfg, strings.TrimPrefix(key, "CHAINS_"), value)
		case strings.HasPrefix(key, "JOB_") && strings.HasSuffix(key, "_INTERVAL"):
			err = applyJobEnv(cfg, strings.TrimPrefix(key, "JOB_"), value)
		default:
			err = fmt.Errorf("unrecognized option")
		}
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
		}
	}
	return nil
}

func applyChainEnv(cfg *Config, key, value string) error {
	for _, field := range chainFields {
		suffix := "_" + field
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(key, suffix))
		if name == "" {
			break
		}
		cc := cfg.Chains[name]
		var err error
		switch field {
		case "URL":
			cc.URL = value
		case "KIND":
			cc.Kind = value
		case "AUTH_TOKEN":
			cc.AuthToken = value
		case "POLL_INTERVAL":
			var d Duration
			err = d.UnmarshalText([]byte(value))
			cc.PollInterval = d
		case "BATCH_SIZE":
			cc.BatchSize, err = cast.ToIntE(value)
		case "ENABLED":
			cc.Enabled, err = cast.ToBoolE(value)
		}
		if err != nil {
			return err
		}
		cfg.Chains[name] = cc
		return nil
	}
	return fmt.Errorf("unrecognized chain option")
}

func applyJobEnv(cfg *Config, key, value string) error {
	name := strings.ToLower(strings.TrimSuffix(key, "_INTERVAL"))
	if name == "" {
		return fmt.Errorf("missing job name")
	}
	d, err := cast.ToDurationE(value)
	if err != nil {
		return err
	}
	cfg.Job[name] = JobConfig{Interval: Duration(d)}
	return nil
}
