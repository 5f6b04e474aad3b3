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

package flow

import (
	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// Default southbound priorities. A tagged (EVPL) match is more specific than
// an untagged (EPL) one and must win ties in the switch's rule table.
const (
	DefaultEVPLPriority = 20000
	DefaultEPLPriority  = 10000
)

// Builder constructs rule sets for circuits. The zero value uses the default
// priorities.
type Builder struct {
	EVPLPriority int
	EPLPriority  int
}

func (b Builder) priority(c *circuit.EVC, evpl bool) int {
	if p := c.Priority(); p != 0 {
		return p
	}
	if evpl {
		if b.EVPLPriority != 0 {
			return b.EVPLPriority
		}
		return DefaultEVPLPriority
	}
	if b.EPLPriority != 0 {
		return b.EPLPriority
	}
	return DefaultEPLPriority
}

// base returns the common skeleton of a rule: match on the ingress port,
// forward out the egress port, optionally into the circuit's queue.
func (b Builder) base(c *circuit.EVC, cookie uint64,
	in, out *topology.Interface, evpl bool) Mod {

	actions := []Action{{Type: ActionOutput, Port: out.Port}}
	if q := c.QueueID(); q != nil {
		actions = append(actions, Action{Type: ActionSetQueue, QueueID: *q})
	}
	return Mod{
		Match:    &Match{InPort: in.Port},
		Cookie:   cookie,
		Actions:  actions,
		Priority: b.priority(c, evpl),
	}
}

// NNIFlows returns the rule pairs for every internal hop of the path: match
// the allocated service tag on the ingress side, rewrite it (a no-op rewrite
// in the single-shared-tag design, kept so heterogeneous per-hop tags would
// work unchanged) and forward out the paired endpoint, in both directions.
// Links are undirected; each hop is resolved via the switch two adjacent
// links share.
func (b Builder) NNIFlows(c *circuit.EVC, p path.Path) ([]SwitchFlows, error) {
	cookie, err := EncodeCookie(c.ID)
	if err != nil {
		return nil, err
	}
	var out []SwitchFlows
	for i := 0; i+1 < len(p.Links); i++ {
		incoming, outgoing := p.Links[i], p.Links[i+1]
		sw := topology.SharedSwitch(incoming, outgoing)
		if sw == nil {
			return nil, serrors.New("link chain broken",
				"evc_id", c.ID, "position", i)
		}
		in, egress := incoming.EndpointOn(sw), outgoing.EndpointOn(sw)
		fwd := b.nniFlow(c, cookie, in, egress, p.SVlan, p.SVlan)
		rev := b.nniFlow(c, cookie, egress, in, p.SVlan, p.SVlan)
		out = append(out, SwitchFlows{
			SwitchID: sw.ID,
			Flows:    []Mod{fwd, rev},
		})
	}
	return out, nil
}

func (b Builder) nniFlow(c *circuit.EVC, cookie uint64,
	in, out *topology.Interface, inVlan, outVlan int) Mod {

	mod := b.base(c, cookie, in, out, true)
	mod.Match.DlVlan = inVlan
	mod.Actions = prepend(mod.Actions, Action{Type: ActionSetVlan, VlanID: outVlan})
	return mod
}

// UNIFlows returns the endpoint rule pairs for the path: the ingress
// direction pushes the service tag onto the user's frame, the egress
// direction pops it. skipIn suppresses the ingress rules, skipOut the
// egress rules. A pre-provisioned failover path installs only the egress
// rules; installing its ingress rules is what activates it.
func (b Builder) UNIFlows(c *circuit.EVC, p path.Path,
	skipIn, skipOut bool) ([]SwitchFlows, error) {

	if p.IsEmpty() {
		return nil, nil
	}
	cookie, err := EncodeCookie(c.ID)
	if err != nil {
		return nil, err
	}
	uniA, uniZ := c.UNIA(), c.UNIZ()
	first := p.Links[0].EndpointOn(uniA.Interface.Switch)
	last := p.Links[len(p.Links)-1].EndpointOn(uniZ.Interface.Switch)
	if first == nil || last == nil {
		return nil, serrors.New("path does not connect the circuit endpoints",
			"evc_id", c.ID)
	}

	var flowsA, flowsZ []Mod
	if !skipIn {
		flowsA = append(flowsA, b.pushFlow(c, cookie, uniA.Interface, first,
			uniA.Tag, p.SVlan, uniZ.Tag))
	}
	if !skipOut {
		flowsA = append(flowsA, b.popFlow(c, cookie, first, uniA.Interface, p.SVlan))
	}
	if !skipIn {
		flowsZ = append(flowsZ, b.pushFlow(c, cookie, uniZ.Interface, last,
			uniZ.Tag, p.SVlan, uniA.Tag))
	}
	if !skipOut {
		flowsZ = append(flowsZ, b.popFlow(c, cookie, last, uniZ.Interface, p.SVlan))
	}
	return []SwitchFlows{
		{SwitchID: uniA.Interface.Switch.ID, Flows: flowsA},
		{SwitchID: uniZ.Interface.Switch.ID, Flows: flowsZ},
	}, nil
}

// pushFlow builds the ingress rule of one UNI. Three tag-presence cases: the
// local and remote UNIs both tagged translates the client tag, only the
// local UNI tagged strips it, neither tagged is pure port forwarding. The
// service tag is always pushed.
func (b Builder) pushFlow(c *circuit.EVC, cookie uint64,
	in, out *topology.Interface, inVlan, outVlan, remoteVlan int) Mod {

	mod := b.base(c, cookie, in, out, inVlan != 0)
	mod.Actions = prepend(mod.Actions, Action{Type: ActionSetVlan, VlanID: outVlan})
	mod.Actions = prepend(mod.Actions, Action{Type: ActionPushVlan, TagType: "s"})
	if inVlan != 0 {
		mod.Match.DlVlan = inVlan
	}
	switch {
	case remoteVlan != 0:
		mod.Actions = prepend(mod.Actions, Action{Type: ActionSetVlan, VlanID: remoteVlan})
		if inVlan == 0 {
			mod.Actions = prepend(mod.Actions, Action{Type: ActionPushVlan, TagType: "c"})
		}
	case inVlan != 0:
		mod.Actions = prepend(mod.Actions, Action{Type: ActionPopVlan})
	}
	return mod
}

// popFlow builds the egress rule of one UNI: match the service tag on the
// network side and pop it before handing the frame to the user port.
func (b Builder) popFlow(c *circuit.EVC, cookie uint64,
	in, out *topology.Interface, sVlan int) Mod {

	mod := b.base(c, cookie, in, out, true)
	mod.Match.DlVlan = sVlan
	mod.Actions = prepend(mod.Actions, Action{Type: ActionPopVlan})
	return mod
}

// DirectUNIFlows returns the two rules connecting the UNIs of an
// intra-switch circuit, with push/pop/translate decided per direction from
// each side's own tag presence.
func (b Builder) DirectUNIFlows(c *circuit.EVC) (SwitchFlows, error) {
	cookie, err := EncodeCookie(c.ID)
	if err != nil {
		return SwitchFlows{}, err
	}
	uniA, uniZ := c.UNIA(), c.UNIZ()
	vlanA, vlanZ := uniA.Tag, uniZ.Tag

	az := b.base(c, cookie, uniA.Interface, uniZ.Interface, vlanA != 0)
	za := b.base(c, cookie, uniZ.Interface, uniA.Interface, vlanZ != 0)

	switch {
	case vlanA != 0 && vlanZ != 0:
		az.Match.DlVlan = vlanA
		za.Match.DlVlan = vlanZ
		az.Actions = prepend(az.Actions, Action{Type: ActionSetVlan, VlanID: vlanZ})
		za.Actions = prepend(za.Actions, Action{Type: ActionSetVlan, VlanID: vlanA})
	case vlanA != 0:
		az.Match.DlVlan = vlanA
		az.Actions = prepend(az.Actions, Action{Type: ActionPopVlan})
		za.Actions = prepend(za.Actions, Action{Type: ActionSetVlan, VlanID: vlanA})
	case vlanZ != 0:
		za.Match.DlVlan = vlanZ
		za.Actions = prepend(za.Actions, Action{Type: ActionPopVlan})
		az.Actions = prepend(az.Actions, Action{Type: ActionSetVlan, VlanID: vlanZ})
	}
	return SwitchFlows{
		SwitchID: uniA.Interface.Switch.ID,
		Flows:    []Mod{az, za},
	}, nil
}
