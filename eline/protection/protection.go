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

// Package protection reacts to link state transitions: it moves circuits off
// failed links, preferring the pre-provisioned failover path, and moves them
// back when better paths return.
package protection

import (
	"context"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/deploy"
	"github.com/open-eline/eline/eline/events"
	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/log"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// Handler restores circuits around link failures. Callers must hold the
// circuit's deployment guard.
type Handler struct {
	Engine  *deploy.Engine
	Events  events.Sink
	Metrics Metrics
}

// LinkDown restores one circuit after the given link failed. The provisioned
// failover path is activated when it is intact and up; otherwise the circuit
// is fully redeployed following the declared path preferences. A circuit
// whose failover path, but not current path, uses the link only has its
// stale failover flows cleaned up.
//
// The caller re-provisions the failover path afterwards; LinkDown leaves it
// consumed or removed.
func (h *Handler) LinkDown(ctx context.Context, c *circuit.EVC, link *topology.Link) error {
	logger := log.FromCtx(ctx).New("evc_id", c.ID, "link", link.ID)
	if c.IsFailoverAffectedByLink(link) {
		// Targeted deletes: the failover path may terminate, or transit, on
		// switches the current path also uses.
		if err := h.Engine.RemovePathFlows(ctx, c, c.FailoverPath()); err != nil {
			logger.Error("Removing broken failover flows", "err", err)
		}
		c.SetFailoverPath(path.Path{})
		h.Engine.Sync(ctx, c)
	}
	if !c.IsAffectedByLink(link) {
		return nil
	}
	h.emit(ctx, events.AffectedByLink, events.CircuitContent(c))

	if h.failoverUsable(c, link) {
		if err := h.activateFailover(ctx, c); err == nil {
			h.Metrics.protection("failover")
			h.emit(ctx, events.RedeployedOnFailure, events.CircuitContent(c))
			logger.Info("Switched to failover path")
			return nil
		} else {
			logger.Error("Activating failover path, redeploying instead", "err", err)
		}
	}

	if err := h.redeployAfterLinkDown(ctx, c); err != nil {
		h.Metrics.protection("down")
		h.emit(ctx, events.ErrorRedeploying, events.CircuitContent(c))
		return serrors.Wrap("redeploying after link down", err, "evc_id", c.ID)
	}
	h.Metrics.protection("redeploy")
	h.emit(ctx, events.RedeployedOnFailure, events.CircuitContent(c))
	logger.Info("Redeployed after link down")
	return nil
}

// LinkUp moves one circuit back towards its preferred path after the given
// link recovered. Reports whether the circuit was actually redeployed; a
// circuit already on its primary path, or stably on a working backup or
// dynamic path, is left alone.
func (h *Handler) LinkUp(ctx context.Context, c *circuit.EVC, link *topology.Link) (bool, error) {
	if c.IsIntraSwitch() || c.IsUsingPrimaryPath() {
		return false, nil
	}
	if c.IsPrimaryAffectedByLink(link) {
		if err := h.Engine.DeployToPrimaryPath(ctx, c); err == nil {
			h.Metrics.protection("restore")
			return true, nil
		} else {
			log.FromCtx(ctx).Debug("Primary path not restorable",
				"evc_id", c.ID, "err", err)
		}
	}
	// The circuit runs on a working fallback; do not flap it.
	if c.IsUsingBackupPath() || c.IsUsingDynamicPath() {
		return false, nil
	}
	if c.IsBackupAffectedByLink(link) {
		if err := h.Engine.DeployToBackupPath(ctx, c); err == nil {
			h.Metrics.protection("restore")
			return true, nil
		}
	}
	if c.DynamicBackupPath() {
		if err := h.Engine.DeployToPath(ctx, c, path.Path{}); err != nil {
			return false, serrors.Wrap("redeploying after link up", err, "evc_id", c.ID)
		}
		h.Metrics.protection("restore")
		return true, nil
	}
	return false, nil
}

// failoverUsable reports whether the provisioned failover path survives the
// failure and is fully up.
func (h *Handler) failoverUsable(c *circuit.EVC, link *topology.Link) bool {
	fo := c.FailoverPath()
	return !fo.IsEmpty() && !fo.ContainsLink(link) &&
		fo.Status() == topology.StatusUp
}

// activateFailover installs the ingress rules of the failover path, makes it
// the current path and cleans up the superseded one.
func (h *Handler) activateFailover(ctx context.Context, c *circuit.EVC) error {
	sets, err := h.Engine.FailoverFlows(c)
	if err != nil {
		return err
	}
	if err := h.Engine.InstallFlows(ctx, sets); err != nil {
		return err
	}
	old := c.CurrentPath()
	c.SetCurrentPath(c.FailoverPath())
	c.SetFailoverPath(path.Path{})
	c.Activate()
	h.Engine.Sync(ctx, c)
	if err := h.Engine.RemovePathFlows(ctx, c, old); err != nil {
		log.FromCtx(ctx).Error("Cleaning up superseded path",
			"evc_id", c.ID, "err", err)
	}
	return nil
}

// redeployAfterLinkDown follows the declared path preferences: a circuit on
// its primary path moves to the backup and vice versa, with a dynamic path
// as the last resort. On total failure the circuit is deactivated and its
// current path cleared.
func (h *Handler) redeployAfterLinkDown(ctx context.Context, c *circuit.EVC) error {
	var err error
	switch {
	case c.IsUsingPrimaryPath():
		err = h.Engine.DeployToBackupPath(ctx, c)
	case c.IsUsingBackupPath():
		err = h.Engine.DeployToPrimaryPath(ctx, c)
	default:
		err = serrors.Join(deploy.ErrNoPathAvailable, nil,
			"reason", "current path is neither primary nor backup")
	}
	if err != nil && c.DynamicBackupPath() {
		err = h.Engine.DeployToPath(ctx, c, path.Path{})
	}
	if err != nil {
		cur := c.CurrentPath()
		h.Engine.ReleaseTags(ctx, &cur)
		c.SetCurrentPath(path.Path{})
		c.Deactivate()
		h.Engine.Sync(ctx, c)
		return err
	}
	return nil
}

func (h *Handler) emit(ctx context.Context, name string, content map[string]any) {
	if h.Events == nil {
		return
	}
	h.Events.Emit(ctx, events.Event{Name: name, Content: content})
}
