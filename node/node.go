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

// Package node is the service container of the daemon: named services are
// registered in dependency order, started front to back and stopped back
// to front.
package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulsewallet/pulse-core/internal/shutdown"
	"github.com/sirupsen/logrus"
)

// Service is one startable component of the daemon. Start must return
// promptly, spawning its own goroutines; Stop blocks until the service
// has drained.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServiceFunc adapts a pair of funcs to the Service interface. A nil stop
// is a no-op.
type ServiceFunc struct {
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

func (s ServiceFunc) Start(ctx context.Context) error {
	if s.OnStart == nil {
		return nil
	}
	return s.OnStart(ctx)
}

func (s ServiceFunc) Stop(ctx context.Context) error {
	if s.OnStop == nil {
		return nil
	}
	return s.OnStop(ctx)
}

type registration struct {
	name    string
	service Service
}

// Node owns the service lifecycle of one daemon role.
type Node struct {
	stop     *shutdown.Signal
	log      logrus.FieldLogger
	services []registration
	started  int // services successfully started, for unwinding
}

// New creates an empty container bound to the process stop signal.
func New(stop *shutdown.Signal, log logrus.FieldLogger) *Node {
	return &Node{stop: stop, log: log}
}

// Register appends a service. Registration order is start order; stop
// order is the reverse. Registering after Start is a programming error.
func (n *Node) Register(name string, s Service) {
	if n.started > 0 {
		panic("node: Register after Start")
	}
	n.services = append(n.services, registration{name: name, service: s})
}

// RegisterFunc registers a ServiceFunc service.
func (n *Node) RegisterFunc(name string, start, stop func(ctx context.Context) error) {
	n.Register(name, ServiceFunc{OnStart: start, OnStop: stop})
}

// Start brings up every registered service in order. If one fails, the
// ones already running are stopped in reverse order and the start error
// is returned.
func (n *Node) Start(ctx context.Context) error {
	for _, reg := range n.services {
		n.log.WithField("service", reg.name).Info("Starting service")
		if err := reg.service.Start(ctx); err != nil {
			err = fmt.Errorf("starting %s: %w", reg.name, err)
			n.log.WithError(err).Error("Service failed to start, unwinding")
			if stopErr := n.Stop(ctx); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
			return err
		}
		n.started++
	}
	return nil
}

// Wait blocks until the shutdown signal fires.
func (n *Node) Wait() { <-n.stop.Done() }

// Stop stops the started services in reverse order. Every service gets
// its Stop call even when an earlier one errors; the errors are joined.
func (n *Node) Stop(ctx context.Context) error {
	var errs []error
	for i := n.started - 1; i >= 0; i-- {
		reg := n.services[i]
		n.log.WithField("service", reg.name).Info("Stopping service")
		if err := reg.service.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", reg.name, err))
		}
	}
	n.started = 0
	return errors.Join(errs...)
}

// Run is the common role main: start everything, wait for the signal,
// stop everything. It reports whether the shutdown drained cleanly.
func (n *Node) Run(ctx context.Context) (clean bool, err error) {
	if err := n.Start(ctx); err != nil {
		return false, err
	}
	n.Wait()
	if err := n.Stop(ctx); err != nil {
		return false, err
	}
	return true, nil
}
