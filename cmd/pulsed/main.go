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

// pulsed is the wallet core daemon. One binary serves every role; the
// positional argument selects which one this process runs.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pulsewallet/pulse-core/bus"
	"github.com/pulsewallet/pulse-core/config"
	"github.com/pulsewallet/pulse-core/internal/shutdown"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file (PULSE_* environment overrides apply on top)",
	}
	dryRunFlag = &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "validate the configuration and the role's plan, then exit",
	}
)

func main() {
	app := &cli.App{
		Name:      "pulsed",
		Usage:     "multi-chain ingestion and notification daemon",
		ArgsUsage: "<parser|notifier|consumer-<queue>|jobs-<group>>",
		Flags:     []cli.Flag{configFlag, dryRunFlag},
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if ec, ok := err.(cli.ExitCoder); ok {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	role := c.Args().First()
	if role == "" {
		return cli.Exit("pulsed: missing role argument", 2)
	}
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return cli.Exit(fmt.Sprintf("pulsed: %v", err), 1)
	}
	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return cli.Exit(fmt.Sprintf("pulsed: %v", err), 1)
	}

	var spec roleSpec
	switch {
	case role == "parser":
		spec = roleSpec{kind: roleParser}
	case role == "notifier":
		spec = roleSpec{kind: roleConsumer, queue: bus.QueueTransactions}
	case strings.HasPrefix(role, "consumer-"):
		q, err := bus.ParseQueue(strings.TrimPrefix(role, "consumer-"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("pulsed: %v", err), 2)
		}
		if q == bus.QueueNotifications {
			return cli.Exit("pulsed: notifications_push is drained by the push gateway, not pulsed", 2)
		}
		spec = roleSpec{kind: roleConsumer, queue: q}
	case strings.HasPrefix(role, "jobs-"):
		spec = roleSpec{kind: roleJobs, group: strings.TrimPrefix(role, "jobs-")}
	default:
		return cli.Exit(fmt.Sprintf("pulsed: unknown role %q", role), 2)
	}

	if c.Bool(dryRunFlag.Name) {
		if err := dryRun(cfg, spec, log); err != nil {
			return cli.Exit(fmt.Sprintf("pulsed: %v", err), 1)
		}
		log.WithField("role", role).Info("Configuration and plan are valid")
		return nil
	}

	stop := shutdown.NewSignal()
	stop.OnInterrupt()
	if err := runRole(context.Background(), cfg, spec, stop, log.WithField("role", role)); err != nil {
		return cli.Exit(fmt.Sprintf("pulsed: %v", err), 1)
	}
	return nil
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log := logrus.New()
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}
