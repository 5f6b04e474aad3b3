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

// Package flow turns a path and a circuit configuration into the forwarding
// rule descriptors to program into switches. All functions are pure; sending
// the rules is the deployment engine's concern.
package flow

// Action types understood by the flow programming collaborator.
const (
	ActionOutput   = "output"
	ActionSetVlan  = "set_vlan"
	ActionPushVlan = "push_vlan"
	ActionPopVlan  = "pop_vlan"
	ActionSetQueue = "set_queue"
)

// Match is the match part of a forwarding rule. A zero DlVlan means no VLAN
// match.
type Match struct {
	InPort int `json:"in_port"`
	DlVlan int `json:"dl_vlan,omitempty"`
}

// Action is one entry of a rule's action list.
type Action struct {
	Type    string `json:"action_type"`
	Port    int    `json:"port,omitempty"`
	VlanID  int    `json:"vlan_id,omitempty"`
	QueueID int    `json:"queue_id,omitempty"`
	TagType string `json:"tag_type,omitempty"`
}

// Mod is a forwarding rule descriptor. For delete requests only the cookie,
// cookie mask and optionally the match are set.
type Mod struct {
	Match      *Match   `json:"match,omitempty"`
	Cookie     uint64   `json:"cookie"`
	CookieMask uint64   `json:"cookie_mask,omitempty"`
	Actions    []Action `json:"actions,omitempty"`
	Priority   int      `json:"priority,omitempty"`
}

// SwitchFlows is a rule set addressed to one switch.
type SwitchFlows struct {
	SwitchID string
	Flows    []Mod
}

// DeleteByCookie returns the delete descriptor matching every flow of the
// circuit on a switch.
func DeleteByCookie(cookie uint64) Mod {
	return Mod{Cookie: cookie, CookieMask: CookieMaskAll}
}

func prepend(actions []Action, a Action) []Action {
	return append([]Action{a}, actions...)
}
