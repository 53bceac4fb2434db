// Copyright 2023 The pulse-core Authors
// This file is part of pulse-core.
//
// pulse-core is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// pulse-core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with pulse-core. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pulsewallet/pulse-core/bus"
	"github.com/pulsewallet/pulse-core/cache"
	"github.com/pulsewallet/pulse-core/chain"
	"github.com/pulsewallet/pulse-core/config"
	"github.com/pulsewallet/pulse-core/event"
	"github.com/pulsewallet/pulse-core/internal/shutdown"
	"github.com/pulsewallet/pulse-core/jobs"
	"github.com/pulsewallet/pulse-core/metrics"
	"github.com/pulsewallet/pulse-core/node"
	"github.com/pulsewallet/pulse-core/notifier"
	"github.com/pulsewallet/pulse-core/parser"
	"github.com/pulsewallet/pulse-core/scheduler"
	"github.com/pulsewallet/pulse-core/store"
	"github.com/pulsewallet/pulse-core/types"
	"github.com/sirupsen/logrus"

	_ "github.com/pulsewallet/pulse-core/chain/bitcoin"
	_ "github.com/pulsewallet/pulse-core/chain/evm"
)

type roleKind int

const (
	roleParser roleKind = iota
	roleConsumer
	roleJobs
)

type roleSpec struct {
	kind  roleKind
	queue bus.Queue // roleConsumer
	group string    // roleJobs
}

// drainGrace is how long a role's workers get to finish in-flight work
// after the shutdown signal before the drain counts as forced.
const drainGrace = 30 * time.Second

// dryRun validates everything that can be validated without touching a
// backend.
func dryRun(cfg *config.Config, spec roleSpec, log *logrus.Logger) error {
	switch spec.kind {
	case roleParser:
		reg, err := chain.NewRegistry(cfg.ChainEndpoints(), log)
		if err != nil {
			return err
		}
		if reg.Len() == 0 {
			return errors.New("no chain has a provider; enable at least one chain")
		}
	case roleJobs:
		if spec.group != jobs.Group {
			return fmt.Errorf("unknown job group %q", spec.group)
		}
		cfgJobs := jobs.Config{IntervalOverrides: cfg.JobOverrides()}
		if _, err := jobs.Maintenance(nil, nil, nil, cfgJobs, nil, log); err != nil {
			return err
		}
	}
	return nil
}

// runRole assembles and runs one role's service stack. It returns nil
// only on a clean drain.
func runRole(ctx context.Context, cfg *config.Config, spec roleSpec, stop *shutdown.Signal, log logrus.FieldLogger) error {
	shared, err := cache.NewRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer shared.Close()

	st, err := store.Open(ctx, store.Config{URL: cfg.Postgres.URL, MaxOpenConns: cfg.Postgres.Pool})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()

	retry := bus.RetryPolicy{
		Delay:    cfg.RabbitMQ.Retry.Delay.Std(),
		MaxDelay: cfg.RabbitMQ.Retry.Timeout.Std(),
	}
	broker, err := bus.Dial(cfg.RabbitMQ.URL, retry, log)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	defer broker.Close()
	broker.SetPrefetch(cfg.Consumer.Prefetch)

	n := node.New(stop, log)
	registerMetrics(cfg, spec, st, shared, n, log)

	switch spec.kind {
	case roleParser:
		if err := registerParser(ctx, cfg, st, shared, broker, stop, n, log); err != nil {
			return err
		}
	case roleConsumer:
		if err := registerConsumer(cfg, spec.queue, st, shared, broker, stop, n, log); err != nil {
			return err
		}
	case roleJobs:
		if err := registerJobs(cfg, spec.group, st, shared, stop, n, log); err != nil {
			return err
		}
	}

	clean, err := n.Run(ctx)
	if err != nil {
		return err
	}
	if !clean {
		return errors.New("shutdown drain was forced")
	}
	return nil
}

// registerMetrics registers the scrape/health service when an address
// is configured. The collector key sets depend on the role.
func registerMetrics(cfg *config.Config, spec roleSpec, st *store.Store, shared cache.Cache, n *node.Node, log logrus.FieldLogger) {
	if cfg.Metrics.Addr == "" {
		return
	}
	srv := metrics.NewServer(cfg.Metrics.Addr, log)
	srv.AddPinger("postgres", st)
	if r, ok := shared.(*cache.Redis); ok {
		srv.AddPinger("redis", r)
	}

	var jobNames, queueNames []string
	switch spec.kind {
	case roleParser:
		srv.Register(metrics.NewParserCollector(st.ParserStates, log))
		for _, c := range cfg.EnabledChains() {
			jobNames = append(jobNames, "parser:"+string(c))
		}
	case roleConsumer:
		queueNames = []string{string(spec.queue)}
	case roleJobs:
		for _, name := range []string{"transactions_cleanup", "subscriptions_cleanup", "parser_state_touch"} {
			jobNames = append(jobNames, spec.group+":"+name)
		}
	}
	srv.Register(metrics.NewStatusCollector(shared, jobNames, queueNames, log))

	n.RegisterFunc("metrics",
		func(ctx context.Context) error { return srv.Start() },
		func(ctx context.Context) error { return srv.Stop() },
	)
}

// registerParser wires one pipeline worker per enabled chain.
func registerParser(ctx context.Context, cfg *config.Config, st *store.Store, shared cache.Cache, broker *bus.Broker, stop *shutdown.Signal, n *node.Node, log logrus.FieldLogger) error {
	registry, err := chain.NewRegistry(cfg.ChainEndpoints(), log)
	if err != nil {
		return err
	}
	if registry.Len() == 0 {
		return errors.New("no chain has a provider; enable at least one chain")
	}
	if err := st.ParserStates.EnsureChains(ctx, types.AllChains()); err != nil {
		return fmt.Errorf("ensure parser states: %w", err)
	}

	reporter := scheduler.NewReporter(shared, "parser", nil, log)
	var feed event.Feed[parser.StateUpdate]
	sub := feed.Subscribe(256)
	go func() {
		for u := range sub.C {
			log.WithField("chain", u.Chain).WithField("block", u.CurrentBlock).
				WithField("behind", u.LatestBlock-u.CurrentBlock).
				WithField("txs", u.Transactions).Debug("Cursor advanced")
		}
	}()

	done := make(chan struct{})
	n.RegisterFunc("pipelines",
		func(ctx context.Context) error {
			go func() {
				defer close(done)
				defer sub.Unsubscribe()
				failed := bus.RunPerChain(log, registry.Chains(), func(c types.ChainID) error {
					provider, _ := registry.Provider(c)
					pub, err := broker.Publisher()
					if err != nil {
						return err
					}
					defer pub.Close()

					cc := cfg.Chains[string(c)]
					wcfg := parser.Config{
						PollInterval: cc.PollInterval.Std(),
						BatchSize:    cc.BatchSize,
					}
					w := parser.NewWorker(provider, st.ParserStates, st.Transactions, pub, reporter, stop, nil, wcfg, log)
					w.SetEvents(&feed)
					return w.Run(ctx)
				})
				if failed > 0 {
					log.WithField("failed", failed).Error("Pipeline workers exited with errors")
				}
			}()
			return nil
		},
		func(ctx context.Context) error {
			if !stop.Wait(done, drainGrace) {
				return errors.New("pipelines did not drain in time")
			}
			return nil
		},
	)
	return nil
}

// registerConsumer wires the queue's consumer binding.
func registerConsumer(cfg *config.Config, q bus.Queue, st *store.Store, shared cache.Cache, broker *bus.Broker, stop *shutdown.Signal, n *node.Node, log logrus.FieldLogger) error {
	pub, err := broker.Publisher()
	if err != nil {
		return err
	}
	reporter := bus.NewReporter(shared, nil, log)
	bcfg := bus.BindingConfig{
		Timeout:     cfg.Consumer.Timeout.Std(),
		MaxAttempts: broker.MaxAttempts(),
	}

	var runBinding func(ctx context.Context, deliveries <-chan bus.Delivery)
	switch q {
	case bus.QueueTransactions:
		c := notifier.NewTransactionConsumer(st.Devices, st.Assets, pub, shared, log)
		runBinding = bus.NewBinding[bus.TransactionPayload](q, c, reporter, stop, bcfg, log).Run
	case bus.QueueTokenAddresses:
		registry, err := chain.NewRegistry(cfg.ChainEndpoints(), log)
		if err != nil {
			return err
		}
		c := notifier.NewTokenAddressConsumer(registry, st.Assets, pub, shared, log)
		runBinding = bus.NewBinding[bus.ChainAddressPayload](q, c, reporter, stop, bcfg, log).Run
	case bus.QueueAssets:
		registry, err := chain.NewRegistry(cfg.ChainEndpoints(), log)
		if err != nil {
			return err
		}
		c := notifier.NewAssetsConsumer(registry, st.Assets, shared, log)
		runBinding = bus.NewBinding[bus.AssetsPayload](q, c, reporter, stop, bcfg, log).Run
	default:
		return fmt.Errorf("queue %s has no consumer in pulsed", q)
	}

	done := make(chan struct{})
	n.RegisterFunc(string(q),
		func(ctx context.Context) error {
			deliveries, err := broker.Consume(ctx, q)
			if err != nil {
				return err
			}
			go func() {
				defer close(done)
				runBinding(ctx, deliveries)
			}()
			return nil
		},
		func(ctx context.Context) error {
			defer pub.Close()
			if !stop.Wait(done, drainGrace) {
				return errors.New("consumer did not settle its delivery in time")
			}
			return nil
		},
	)
	return nil
}

// registerJobs wires the scheduled job runner for one group.
func registerJobs(cfg *config.Config, group string, st *store.Store, shared cache.Cache, stop *shutdown.Signal, n *node.Node, log logrus.FieldLogger) error {
	if group != jobs.Group {
		return fmt.Errorf("unknown job group %q", group)
	}
	cfgJobs := jobs.Config{IntervalOverrides: cfg.JobOverrides()}
	plan, err := jobs.Maintenance(st.Transactions, st.Devices, st.ParserStates, cfgJobs, nil, log)
	if err != nil {
		return err
	}
	schedule := scheduler.NewSchedule(shared, nil)
	reporter := scheduler.NewReporter(shared, group, nil, log)
	runner := scheduler.NewRunner(plan, schedule, reporter, stop, nil, log)
	runner.SetGrace(drainGrace)

	done := make(chan struct{})
	var stuck []string
	n.RegisterFunc("jobs-"+group,
		func(ctx context.Context) error {
			go func() {
				defer close(done)
				stuck = runner.Run(ctx)
			}()
			return nil
		},
		func(ctx context.Context) error {
			<-done // Run owns the grace window
			if len(stuck) > 0 {
				return fmt.Errorf("jobs still running at shutdown: %v", stuck)
			}
			return nil
		},
	)
	return nil
}
