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

// Package consistency periodically verifies that what the switches run
// matches what the controller believes: enabled but inactive circuits are
// redeployed, and active circuits are probed with control plane traces and
// redeployed when the data plane disagrees.
package consistency

import (
	"context"
	"time"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/deploy"
	"github.com/open-eline/eline/eline/sdntrace"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/log"
)

// TraceProber runs data plane probes. Implemented by the sdntrace client.
type TraceProber interface {
	BulkTraces(ctx context.Context, reqs []sdntrace.Request) ([]sdntrace.Trace, error)
}

// Default grace windows. A circuit touched more recently than this is left
// alone; its flows may legitimately still be settling.
const (
	DefaultUpdatedGrace     = 60 * time.Second
	DefaultRemovedFlowGrace = 60 * time.Second
)

// Reconciler is the periodic consistency pass. It visits circuits in
// priority order and skips, rather than waits on, circuits busy in another
// operation.
type Reconciler struct {
	Registry *circuit.Registry
	Engine   *deploy.Engine
	Prober   TraceProber
	Metrics  Metrics
	// UpdatedGrace skips circuits reconfigured more recently than this.
	UpdatedGrace time.Duration
	// RemovedFlowGrace skips circuits that lost a flow more recently than
	// this; the removal handler is expected to redeploy them itself.
	RemovedFlowGrace time.Duration
}

// Name implements periodic.Task.
func (r *Reconciler) Name() string {
	return "eline_consistency"
}

// Run executes one consistency pass.
func (r *Reconciler) Run(ctx context.Context) {
	logger := log.FromCtx(ctx)
	var toCheck []*circuit.EVC
	for _, c := range r.Registry.ByPriority() {
		if !c.IsEnabled() {
			continue
		}
		if c.IsRecentUpdated(r.updatedGrace()) ||
			c.HasRecentRemovedFlow(r.removedFlowGrace()) {

			continue
		}
		if !c.IsActive() {
			r.redeploy(ctx, c, "circuit enabled but not active")
			continue
		}
		toCheck = append(toCheck, c)
	}
	r.checkTraces(ctx, toCheck)
	logger.Debug("Consistency pass done",
		"checked", len(toCheck))
}

func (r *Reconciler) updatedGrace() time.Duration {
	if r.UpdatedGrace == 0 {
		return DefaultUpdatedGrace
	}
	return r.UpdatedGrace
}

func (r *Reconciler) removedFlowGrace() time.Duration {
	if r.RemovedFlowGrace == 0 {
		return DefaultRemovedFlowGrace
	}
	return r.RemovedFlowGrace
}

// redeploy deploys one circuit under its guard, skipping it when busy.
func (r *Reconciler) redeploy(ctx context.Context, c *circuit.EVC, reason string) {
	logger := log.FromCtx(ctx).New("evc_id", c.ID, "name", c.Name)
	if !c.TryLock() {
		r.Metrics.skipped()
		logger.Debug("Circuit busy, skipping", "reason", reason)
		return
	}
	defer c.Unlock()
	logger.Info("Redeploying", "reason", reason)
	if err := r.Engine.Deploy(ctx, c); err != nil {
		r.Metrics.result("error")
		logger.Error("Redeploying", "err", err)
		return
	}
	r.Metrics.result("redeployed")
}

// checkTraces probes all active circuits in one bulk request, two probes per
// circuit (one from each endpoint), and redeploys the ones whose data plane
// disagrees with the recorded current path.
func (r *Reconciler) checkTraces(ctx context.Context, circuits []*circuit.EVC) {
	if len(circuits) == 0 || r.Prober == nil {
		return
	}
	logger := log.FromCtx(ctx)
	reqs := make([]sdntrace.Request, 0, 2*len(circuits))
	for _, c := range circuits {
		for _, uni := range []topology.UNI{c.UNIA(), c.UNIZ()} {
			reqs = append(reqs, sdntrace.Request{
				SwitchID: uni.Interface.Switch.ID,
				Port:     uni.Interface.Port,
				Vlan:     uni.Tag,
			})
		}
	}
	traces, err := r.Prober.BulkTraces(ctx, reqs)
	if err != nil {
		logger.Error("Running bulk traces", "err", err)
		return
	}
	for i, c := range circuits {
		if CheckTrace(c, traces[2*i], traces[2*i+1]) {
			r.Metrics.result("ok")
			continue
		}
		logger.Info("Trace mismatch",
			"evc_id", c.ID, "path", c.CurrentPath().LinkIDs())
		r.redeploy(ctx, c, "trace does not match current path")
	}
}

// CheckTrace reports whether the probes from both endpoints agree with the
// circuit's recorded current path: one hop per traversed switch, entering
// each over the recorded link with the path's service tag, and leaving the
// last switch through the opposite endpoint. Every intermediate hop is
// verified in both directions; rules missing on only one side fail the
// check.
func CheckTrace(c *circuit.EVC, traceA, traceZ sdntrace.Trace) bool {
	cur := c.CurrentPath()
	if len(traceA) != cur.Len()+1 || len(traceZ) != cur.Len()+1 {
		return false
	}
	if !uniOutMatches(c.UNIZ(), traceA[len(traceA)-1]) ||
		!uniOutMatches(c.UNIA(), traceZ[len(traceZ)-1]) {

		return false
	}
	prev := c.UNIA().Interface.Switch
	for i, link := range cur.Links {
		far := link.Opposite(prev)
		if far == nil {
			return false
		}
		near := link.EndpointOn(prev)
		if !hopMatches(traceA[i+1], far, cur.SVlan) {
			return false
		}
		// The probe from Z crosses the same link in the opposite direction
		// and enters on the near endpoint.
		if !hopMatches(traceZ[cur.Len()-i], near, cur.SVlan) {
			return false
		}
		prev = far.Switch
	}
	return true
}

func hopMatches(hop sdntrace.Hop, intf *topology.Interface, vlan int) bool {
	return hop.SwitchID == intf.Switch.ID && hop.Port == intf.Port && hop.Vlan == vlan
}

// uniOutMatches verifies the probe left through the expected UNI. Traces
// without egress information pass; not every collaborator version reports
// it.
func uniOutMatches(uni topology.UNI, hop sdntrace.Hop) bool {
	if hop.Out == nil {
		return true
	}
	return hop.Out.Port == uni.Interface.Port && hop.Out.Vlan == uni.Tag
}
