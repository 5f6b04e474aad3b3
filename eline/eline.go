// Copyright 2025 Open E-Line Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eline implements the E-Line controller: provisioning, protection
// and reconciliation of point-to-point Ethernet virtual connections over an
// SDN fabric.
package eline

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/config"
	"github.com/open-eline/eline/eline/consistency"
	"github.com/open-eline/eline/eline/deploy"
	"github.com/open-eline/eline/eline/events"
	"github.com/open-eline/eline/eline/flow"
	"github.com/open-eline/eline/eline/flowmanager"
	"github.com/open-eline/eline/eline/pathfinder"
	"github.com/open-eline/eline/eline/protection"
	"github.com/open-eline/eline/eline/sdntrace"
	"github.com/open-eline/eline/eline/storage"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/log"
	"github.com/open-eline/eline/pkg/private/serrors"
	"github.com/open-eline/eline/private/periodic"
)

// Controller glues the circuit registry, the deployment engine, link
// protection and the consistency pass together.
type Controller struct {
	Cfg      *config.Config
	Topology *topology.Topology
	Registry *circuit.Registry
	Engine   *deploy.Engine
	Protect  *protection.Handler
	Store    *storage.Store
	Events   events.Sink
	Recon    *consistency.Reconciler
}

// New builds a controller from its configuration. The HTTP client is shared
// by all collaborator clients; nil means http.DefaultClient.
func New(cfg *config.Config, sink events.Sink, client *http.Client) (*Controller, error) {
	topo := topology.New()
	registry := circuit.NewRegistry()
	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return nil, serrors.Wrap("opening circuit store", err)
	}
	if sink == nil {
		sink = events.LogSink{}
	}
	engine := &deploy.Engine{
		Builder: flow.Builder{
			EVPLPriority: cfg.Eline.EVPLPriority,
			EPLPriority:  cfg.Eline.EPLPriority,
		},
		Paths: &pathfinder.Client{
			URL:      cfg.Eline.PathfinderURL,
			Topology: topo,
			HTTP:     client,
		},
		Flows: &flowmanager.Client{
			URL:  cfg.Eline.FlowManagerURL,
			HTTP: client,
		},
		Store:    store,
		Events:   sink,
		Metrics:  deploy.NewMetrics(),
		MaxPaths: cfg.Eline.MaxPaths,
	}
	handler := &protection.Handler{
		Engine:  engine,
		Events:  sink,
		Metrics: protection.NewMetrics(),
	}
	var prober consistency.TraceProber
	if cfg.Eline.SDNTraceURL != "" {
		prober = &sdntrace.Client{
			URL:     cfg.Eline.SDNTraceURL,
			HTTP:    client,
			Timeout: cfg.Eline.TraceTimeout.Duration,
		}
	}
	recon := &consistency.Reconciler{
		Registry:         registry,
		Engine:           engine,
		Prober:           prober,
		Metrics:          consistency.NewMetrics(),
		UpdatedGrace:     cfg.Eline.UpdatedGrace.Duration,
		RemovedFlowGrace: cfg.Eline.RemovedFlowGrace.Duration,
	}
	return &Controller{
		Cfg:      cfg,
		Topology: topo,
		Registry: registry,
		Engine:   engine,
		Protect:  handler,
		Store:    store,
		Events:   sink,
		Recon:    recon,
	}, nil
}

// LoadCircuits restores persisted circuits into the registry, re-reserving
// their tags against the topology. Circuits referencing links the topology
// does not know yet are restored without the unresolvable paths.
func (c *Controller) LoadCircuits(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	recs, err := c.Store.List(ctx, false)
	if err != nil {
		return serrors.Wrap("listing stored circuits", err)
	}
	for _, rec := range recs {
		evc, err := circuit.FromRecord(rec, c.Topology)
		if err != nil {
			logger.Error("Skipping unrestorable circuit",
				"evc_id", rec.ID, "err", err)
			continue
		}
		c.Registry.Add(evc)
	}
	logger.Info("Circuits restored", "count", len(recs))
	return nil
}

// Run processes link events and runs the periodic consistency pass until the
// context is canceled.
func (c *Controller) Run(ctx context.Context) error {
	var runner *periodic.Runner
	if interval := c.Cfg.Eline.ConsistencyInterval.Duration; interval > 0 {
		runner = periodic.Start(c.Recon, interval, interval)
		defer runner.Stop()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.watchLinks(ctx)
	})
	return g.Wait()
}

func (c *Controller) watchLinks(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.Topology.Events():
			if ev.Up {
				c.handleLinkUp(ctx, ev.Link)
			} else {
				c.handleLinkDown(ctx, ev.Link)
			}
		}
	}
}

// handleLinkDown restores circuits in priority order, then re-provisions
// failover paths for the circuits that consumed or lost theirs.
func (c *Controller) handleLinkDown(ctx context.Context, link *topology.Link) {
	logger := log.FromCtx(ctx).New("link", link.ID)
	logger.Info("Link down")
	var touched []*circuit.EVC
	for _, evc := range c.Registry.ByPriority() {
		if !evc.IsEnabled() {
			continue
		}
		if !evc.IsAffectedByLink(link) && !evc.IsFailoverAffectedByLink(link) {
			continue
		}
		evc.Lock()
		if err := c.Protect.LinkDown(ctx, evc, link); err != nil {
			logger.Error("Restoring circuit", "evc_id", evc.ID, "err", err)
		}
		evc.Unlock()
		touched = append(touched, evc)
	}
	for _, evc := range touched {
		c.setupFailover(ctx, evc)
	}
}

func (c *Controller) handleLinkUp(ctx context.Context, link *topology.Link) {
	logger := log.FromCtx(ctx).New("link", link.ID)
	logger.Info("Link up")
	for _, evc := range c.Registry.ByPriority() {
		if !evc.IsEnabled() {
			continue
		}
		evc.Lock()
		redeployed, err := c.Protect.LinkUp(ctx, evc, link)
		evc.Unlock()
		if err != nil {
			logger.Error("Restoring circuit", "evc_id", evc.ID, "err", err)
			continue
		}
		if redeployed {
			c.Events.Emit(ctx, events.Event{
				Name:    events.RedeployedLinkUp,
				Content: events.CircuitContent(evc),
			})
			c.setupFailover(ctx, evc)
		}
	}
}

func (c *Controller) setupFailover(ctx context.Context, evc *circuit.EVC) {
	if !evc.IsEligibleForFailoverPath() || !evc.IsActive() {
		return
	}
	evc.Lock()
	defer evc.Unlock()
	if err := c.Engine.SetupFailoverPath(ctx, evc); err != nil {
		log.FromCtx(ctx).Info("Failover path not provisioned",
			"evc_id", evc.ID, "err", err)
	}
}

// CreateCircuit provisions a new circuit: it is validated, persisted and, if
// enabled, deployed immediately.
func (c *Controller) CreateCircuit(ctx context.Context, p circuit.Params) (*circuit.EVC, error) {
	evc, err := circuit.New(p)
	if err != nil {
		return nil, err
	}
	if existing := c.Registry.Get(evc.ID); existing != nil {
		return nil, serrors.New("circuit already exists", "evc_id", evc.ID)
	}
	c.Registry.Add(evc)
	c.Engine.Sync(ctx, evc)
	c.Events.Emit(ctx, events.Event{
		Name:    events.Created,
		Content: events.CircuitContent(evc),
	})
	if evc.IsEnabled() {
		evc.Lock()
		err := c.Engine.Deploy(ctx, evc)
		evc.Unlock()
		if err != nil {
			log.FromCtx(ctx).Error("Deploying new circuit",
				"evc_id", evc.ID, "err", err)
		} else {
			c.setupFailover(ctx, evc)
		}
	}
	return evc, nil
}

// UpdateCircuit applies a configuration patch. Changes to the forwarding
// configuration of an enabled circuit trigger a redeploy; disabling a
// circuit removes its flows.
func (c *Controller) UpdateCircuit(ctx context.Context, id string,
	patch circuit.Patch) (*circuit.EVC, error) {

	evc := c.Registry.Get(id)
	if evc == nil {
		return nil, serrors.New("circuit not found", "evc_id", id)
	}
	redeploy, err := evc.Update(patch)
	if err != nil {
		return nil, err
	}
	c.Engine.Sync(ctx, evc)
	c.Events.Emit(ctx, events.Event{
		Name:    events.Updated,
		Content: events.CircuitContent(evc),
	})
	evc.Lock()
	defer evc.Unlock()
	switch {
	case !evc.IsEnabled():
		if err := c.Engine.RemoveCurrentFlows(ctx, evc, nil, true); err != nil {
			return evc, serrors.Wrap("removing flows of disabled circuit", err,
				"evc_id", id)
		}
	case redeploy:
		if err := c.Engine.Deploy(ctx, evc); err != nil {
			return evc, serrors.Wrap("redeploying updated circuit", err,
				"evc_id", id)
		}
	}
	return evc, nil
}

// DeleteCircuit removes the circuit's flows and archives it. Archiving is
// terminal; the id is never reused for deployment again.
func (c *Controller) DeleteCircuit(ctx context.Context, id string) error {
	evc := c.Registry.Get(id)
	if evc == nil {
		return serrors.New("circuit not found", "evc_id", id)
	}
	evc.Lock()
	defer evc.Unlock()
	if err := c.Engine.Remove(ctx, evc); err != nil {
		return err
	}
	evc.Archive()
	evc.Touch()
	c.Engine.Sync(ctx, evc)
	c.Events.Emit(ctx, events.Event{
		Name:    events.Deleted,
		Content: events.CircuitContent(evc),
	})
	return nil
}

// RedeployCircuit tears the circuit down and deploys it again.
func (c *Controller) RedeployCircuit(ctx context.Context, id string) error {
	evc := c.Registry.Get(id)
	if evc == nil {
		return serrors.New("circuit not found", "evc_id", id)
	}
	if !evc.IsEnabled() {
		return serrors.New("circuit is disabled", "evc_id", id)
	}
	evc.Lock()
	err := c.Engine.Deploy(ctx, evc)
	evc.Unlock()
	if err != nil {
		return err
	}
	c.setupFailover(ctx, evc)
	return nil
}

// HandleFlowRemoved records that a switch reported one of this controller's
// flows as removed. The consistency pass redeploys the circuit after the
// grace window, so a burst of removals results in a single redeploy.
func (c *Controller) HandleFlowRemoved(ctx context.Context, cookie uint64) {
	id := flow.DecodeCookie(cookie)
	evc := c.Registry.Get(id)
	if evc == nil {
		return
	}
	evc.SetFlowRemovedAt()
	c.Engine.Sync(ctx, evc)
	log.FromCtx(ctx).Info("Flow removal recorded", "evc_id", id)
}
