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

// Package deploy programs circuits into the network: it picks a usable path,
// allocates the service tag, installs the forwarding rules and keeps the
// persisted state in step with what the switches run.
package deploy

import (
	"context"
	"errors"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/events"
	"github.com/open-eline/eline/eline/flow"
	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/log"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// ErrNoPathAvailable is returned when no candidate path could be deployed.
var ErrNoPathAvailable = errors.New("no path available")

// DefaultMaxPaths bounds how many candidates a dynamic path discovery
// requests.
const DefaultMaxPaths = 2

// Engine deploys and removes circuits. Callers must hold the circuit's
// deployment guard across every Engine call.
type Engine struct {
	Builder flow.Builder
	Paths   PathComputer
	Flows   FlowProgrammer
	Store   Store
	Events  events.Sink
	Metrics Metrics
	// MaxPaths bounds dynamic discovery, DefaultMaxPaths when 0.
	MaxPaths int
}

// Deploy enables the circuit and programs it: the primary path if it is up,
// otherwise the backup path, otherwise a discovered dynamic path when the
// circuit allows one.
func (e *Engine) Deploy(ctx context.Context, c *circuit.EVC) error {
	if c.IsArchived() {
		return serrors.New("circuit is archived", "evc_id", c.ID)
	}
	c.Enable()
	if err := e.DeployToPrimaryPath(ctx, c); err == nil {
		return nil
	} else {
		log.FromCtx(ctx).Debug("Primary path not deployable",
			"evc_id", c.ID, "err", err)
	}
	if err := e.DeployToBackupPath(ctx, c); err != nil {
		e.Metrics.deploy("error")
		return serrors.Wrap("deploying circuit", err, "evc_id", c.ID)
	}
	return nil
}

// DeployToPrimaryPath programs the declared primary path. It is a no-op if
// the circuit already runs on it.
func (e *Engine) DeployToPrimaryPath(ctx context.Context, c *circuit.EVC) error {
	if c.IsUsingPrimaryPath() {
		return nil
	}
	p := c.PrimaryPath()
	if s := p.Status(); s != topology.StatusUp {
		return serrors.Join(ErrNoPathAvailable, nil,
			"reason", "primary path is not up", "status", s)
	}
	return e.DeployToPath(ctx, c, p)
}

// DeployToBackupPath programs the declared backup path, falling back to a
// dynamic path when the backup is unusable and the circuit allows discovery.
func (e *Engine) DeployToBackupPath(ctx context.Context, c *circuit.EVC) error {
	if c.IsUsingBackupPath() {
		return nil
	}
	p := c.BackupPath()
	if p.Status() == topology.StatusUp {
		if err := e.DeployToPath(ctx, c, p); err == nil {
			return nil
		} else {
			log.FromCtx(ctx).Debug("Backup path not deployable",
				"evc_id", c.ID, "err", err)
		}
	}
	if c.DynamicBackupPath() || c.IsIntraSwitch() {
		return e.DeployToPath(ctx, c, path.Path{})
	}
	return serrors.Join(ErrNoPathAvailable, nil,
		"reason", "backup path is not up and dynamic paths are not allowed")
}

// DeployToPath removes the circuit's current flows and programs the given
// path. An empty path requests dynamic discovery. Intra-switch circuits are
// connected directly on their shared switch without a path. On rule
// installation failure everything installed so far is rolled back.
func (e *Engine) DeployToPath(ctx context.Context, c *circuit.EVC, p path.Path) error {
	logger := log.FromCtx(ctx).New("evc_id", c.ID, "name", c.Name)
	if c.IsArchived() {
		return serrors.New("circuit is archived", "evc_id", c.ID)
	}
	if err := e.RemoveCurrentFlows(ctx, c, nil, true); err != nil {
		e.Metrics.deploy("error")
		return serrors.Wrap("removing current flows", err, "evc_id", c.ID)
	}
	if !c.IsEnabled() {
		return serrors.New("circuit is disabled", "evc_id", c.ID)
	}
	use := p
	if !use.IsEmpty() {
		if err := use.ChooseVLANs(); err != nil {
			logger.Info("No service tag on requested path, discovering another",
				"err", err)
			use = path.Path{}
		} else {
			e.announceTags(ctx, use)
		}
	}
	if use.IsEmpty() && !c.IsIntraSwitch() {
		use = e.discoverPath(ctx, c)
	}

	var installErr error
	switch {
	case !use.IsEmpty():
		installErr = e.installPathFlows(ctx, c, use)
	case c.IsIntraSwitch():
		installErr = e.installDirectFlows(ctx, c)
	default:
		e.Metrics.deploy("no_path")
		return serrors.Join(ErrNoPathAvailable, nil, "evc_id", c.ID)
	}
	if installErr != nil {
		logger.Error("Installing flows, rolling back", "err", installErr)
		if err := e.RemoveCurrentFlows(ctx, c, &use, true); err != nil {
			logger.Error("Rolling back flows", "err", err)
		}
		e.ReleaseTags(ctx, &use)
		e.Metrics.deploy("error")
		return serrors.Wrap("installing flows", installErr, "evc_id", c.ID)
	}

	c.Activate()
	c.SetCurrentPath(use)
	e.sync(ctx, c)
	e.emit(ctx, events.Deployed, events.CircuitContent(c))
	e.Metrics.deploy("ok")
	logger.Info("Deployed", "path", use.LinkIDs(), "s_vlan", use.SVlan)
	return nil
}

// Remove disables the circuit and removes every flow it owns, current and
// failover.
func (e *Engine) Remove(ctx context.Context, c *circuit.EVC) error {
	c.Disable()
	if err := e.RemoveCurrentFlows(ctx, c, nil, true); err != nil {
		return serrors.Wrap("removing current flows", err, "evc_id", c.ID)
	}
	if err := e.RemoveFailoverFlows(ctx, c, true, true); err != nil {
		return serrors.Wrap("removing failover flows", err, "evc_id", c.ID)
	}
	e.emit(ctx, events.Undeployed, events.CircuitContent(c))
	e.Metrics.removal()
	log.FromCtx(ctx).Info("Removed", "evc_id", c.ID)
	return nil
}

// RemoveCurrentFlows deletes, by cookie, every flow of the circuit on the
// switches of the current path, the extra path if given, and both UNI
// switches. It releases the current path's service tag, clears the current
// path and deactivates the circuit.
func (e *Engine) RemoveCurrentFlows(ctx context.Context, c *circuit.EVC,
	extra *path.Path, force bool) error {

	cookie, err := flow.EncodeCookie(c.ID)
	if err != nil {
		return err
	}
	cur := c.CurrentPath()
	switches := make(map[string]struct{})
	collect := func(p path.Path) {
		for _, l := range p.Links {
			switches[l.EndpointA.Switch.ID] = struct{}{}
			switches[l.EndpointB.Switch.ID] = struct{}{}
		}
	}
	collect(cur)
	if extra != nil {
		collect(*extra)
	}
	switches[c.UNIA().Interface.Switch.ID] = struct{}{}
	switches[c.UNIZ().Interface.Switch.ID] = struct{}{}

	del := []flow.Mod{flow.DeleteByCookie(cookie)}
	for id := range switches {
		if err := e.Flows.Delete(ctx, id, del, force); err != nil {
			return serrors.Wrap("deleting flows", err, "switch", id)
		}
	}
	e.ReleaseTags(ctx, &cur)
	c.SetCurrentPath(path.Path{})
	c.Deactivate()
	e.sync(ctx, c)
	return nil
}

// RemoveFailoverFlows deletes the circuit's flows, by cookie, on every switch
// of the failover path and releases its service tag. Only safe while the
// circuit is being torn down entirely: a stale failover path of a live
// circuit is cleaned with RemovePathFlows instead, whose targeted deletes
// leave the current path's rules alone on any switch the two paths share.
func (e *Engine) RemoveFailoverFlows(ctx context.Context, c *circuit.EVC,
	force, sync bool) error {

	p := c.FailoverPath()
	if p.IsEmpty() {
		return nil
	}
	cookie, err := flow.EncodeCookie(c.ID)
	if err != nil {
		return err
	}
	switches := make(map[string]struct{})
	for _, l := range p.Links {
		switches[l.EndpointA.Switch.ID] = struct{}{}
		switches[l.EndpointB.Switch.ID] = struct{}{}
	}
	del := []flow.Mod{flow.DeleteByCookie(cookie)}
	for id := range switches {
		if err := e.Flows.Delete(ctx, id, del, force); err != nil {
			return serrors.Wrap("deleting failover flows", err, "switch", id)
		}
	}
	e.ReleaseTags(ctx, &p)
	c.SetFailoverPath(path.Path{})
	if sync {
		e.sync(ctx, c)
	}
	return nil
}

// RemovePathFlows deletes exactly the rules this circuit installed for the
// given path: the NNI rules plus the egress UNI rules, matched by cookie and
// match fields so ingress rules of another path on the same UNI switch
// survive. Used to clean a superseded path after a failover.
func (e *Engine) RemovePathFlows(ctx context.Context, c *circuit.EVC, p path.Path) error {
	if p.IsEmpty() {
		return nil
	}
	nni, err := e.Builder.NNIFlows(c, p)
	if err != nil {
		return err
	}
	uni, err := e.Builder.UNIFlows(c, p, true, false)
	if err != nil {
		return err
	}
	for _, sf := range append(nni, uni...) {
		dels := make([]flow.Mod, 0, len(sf.Flows))
		for _, m := range sf.Flows {
			dels = append(dels, flow.Mod{
				Match:      m.Match,
				Cookie:     m.Cookie,
				CookieMask: flow.CookieMaskAll,
			})
		}
		if len(dels) == 0 {
			continue
		}
		if err := e.Flows.Delete(ctx, sf.SwitchID, dels, true); err != nil {
			return serrors.Wrap("deleting path flows", err, "switch", sf.SwitchID)
		}
	}
	e.ReleaseTags(ctx, &p)
	return nil
}

// SetupFailoverPath provisions a protection path disjoint from the current
// one: NNI rules and egress UNI rules are installed ahead of time, so a
// failover only has to add the ingress rules. Circuits with declared paths
// or without dynamic discovery are skipped.
func (e *Engine) SetupFailoverPath(ctx context.Context, c *circuit.EVC) error {
	logger := log.FromCtx(ctx).New("evc_id", c.ID, "name", c.Name)
	if !c.IsEligibleForFailoverPath() {
		logger.Debug("Not eligible for failover path")
		return nil
	}
	if err := e.RemovePathFlows(ctx, c, c.FailoverPath()); err != nil {
		logger.Error("Removing stale failover flows", "err", err)
	}
	use := path.Path{}
	cur := c.CurrentPath()
	candidates, err := e.Paths.DisjointPaths(ctx, c, cur)
	if err != nil {
		logger.Error("Requesting disjoint paths", "err", err)
	}
	for _, cand := range candidates {
		// Candidates sharing a link with the current path would go down with
		// it; only fully disjoint ones qualify as protection.
		if cand.IsEmpty() || cand.SharesLink(cur) {
			continue
		}
		if err := cand.ChooseVLANs(); err == nil {
			e.announceTags(ctx, cand)
			use = cand
			break
		}
	}
	if use.IsEmpty() {
		c.SetFailoverPath(use)
		e.sync(ctx, c)
		e.Metrics.failoverSetup("no_path")
		return serrors.Join(ErrNoPathAvailable, nil,
			"reason", "no disjoint path for failover", "evc_id", c.ID)
	}
	if err := e.installFailoverFlows(ctx, c, use); err != nil {
		logger.Error("Installing failover flows, rolling back", "err", err)
		if rerr := e.RemovePathFlows(ctx, c, use); rerr != nil {
			logger.Error("Rolling back failover flows", "err", rerr)
		}
		c.SetFailoverPath(path.Path{})
		e.sync(ctx, c)
		e.Metrics.failoverSetup("error")
		return serrors.Wrap("installing failover flows", err, "evc_id", c.ID)
	}
	c.SetFailoverPath(use)
	e.sync(ctx, c)
	e.Metrics.failoverSetup("ok")
	logger.Info("Failover path provisioned",
		"path", use.LinkIDs(), "s_vlan", use.SVlan)
	return nil
}

// FailoverFlows returns the ingress UNI rules of the provisioned failover
// path. Installing them switches traffic over; everything else is already in
// place.
func (e *Engine) FailoverFlows(c *circuit.EVC) ([]flow.SwitchFlows, error) {
	p := c.FailoverPath()
	if p.IsEmpty() {
		return nil, serrors.New("no failover path provisioned", "evc_id", c.ID)
	}
	return e.Builder.UNIFlows(c, p, false, true)
}

// InstallFlows sends rule sets to their switches, stopping at the first
// failure.
func (e *Engine) InstallFlows(ctx context.Context, sets []flow.SwitchFlows) error {
	for _, sf := range sets {
		if len(sf.Flows) == 0 {
			continue
		}
		if err := e.Flows.Install(ctx, sf.SwitchID, sf.Flows); err != nil {
			return serrors.Wrap("installing flows", err, "switch", sf.SwitchID)
		}
	}
	return nil
}

// Sync persists the circuit, logging instead of failing; the periodic
// reconciliation repairs a missed write.
func (e *Engine) Sync(ctx context.Context, c *circuit.EVC) {
	e.sync(ctx, c)
}

func (e *Engine) discoverPath(ctx context.Context, c *circuit.EVC) path.Path {
	maxPaths := e.MaxPaths
	if maxPaths == 0 {
		maxPaths = DefaultMaxPaths
	}
	candidates, err := e.Paths.BestPaths(ctx, c, maxPaths, c.PrimaryConstraints())
	if err != nil {
		log.FromCtx(ctx).Error("Requesting paths", "evc_id", c.ID, "err", err)
		return path.Path{}
	}
	for _, cand := range candidates {
		if cand.IsEmpty() {
			continue
		}
		if err := cand.ChooseVLANs(); err == nil {
			e.announceTags(ctx, cand)
			return cand
		}
	}
	return path.Path{}
}

func (e *Engine) installPathFlows(ctx context.Context, c *circuit.EVC, p path.Path) error {
	nni, err := e.Builder.NNIFlows(c, p)
	if err != nil {
		return err
	}
	if err := e.InstallFlows(ctx, nni); err != nil {
		return err
	}
	uni, err := e.Builder.UNIFlows(c, p, false, false)
	if err != nil {
		return err
	}
	return e.InstallFlows(ctx, uni)
}

func (e *Engine) installFailoverFlows(ctx context.Context, c *circuit.EVC, p path.Path) error {
	nni, err := e.Builder.NNIFlows(c, p)
	if err != nil {
		return err
	}
	if err := e.InstallFlows(ctx, nni); err != nil {
		return err
	}
	uni, err := e.Builder.UNIFlows(c, p, true, false)
	if err != nil {
		return err
	}
	return e.InstallFlows(ctx, uni)
}

func (e *Engine) installDirectFlows(ctx context.Context, c *circuit.EVC) error {
	sf, err := e.Builder.DirectUNIFlows(c)
	if err != nil {
		return err
	}
	return e.InstallFlows(ctx, []flow.SwitchFlows{sf})
}

// ReleaseTags frees the path's service tag and announces the changed tag
// pools.
func (e *Engine) ReleaseTags(ctx context.Context, p *path.Path) {
	for _, link := range p.MakeVLANsAvailable() {
		e.emit(ctx, events.LinkTagsChanged, map[string]any{"link_id": link.ID})
	}
}

// announceTags broadcasts the tag pool change on every link of a freshly
// allocated path. Together with ReleaseTags this keeps consumers informed on
// both sides of an allocation's lifetime.
func (e *Engine) announceTags(ctx context.Context, p path.Path) {
	for _, link := range p.Links {
		e.emit(ctx, events.LinkTagsChanged, map[string]any{"link_id": link.ID})
	}
}

func (e *Engine) sync(ctx context.Context, c *circuit.EVC) {
	if e.Store == nil {
		return
	}
	if err := e.Store.Upsert(ctx, c); err != nil {
		log.FromCtx(ctx).Error("Persisting circuit", "evc_id", c.ID, "err", err)
	}
}

func (e *Engine) emit(ctx context.Context, name string, content map[string]any) {
	if e.Events == nil {
		return
	}
	e.Events.Emit(ctx, events.Event{Name: name, Content: content})
}
