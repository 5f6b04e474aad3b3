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

// Package events carries the notifications the controller publishes about
// circuit lifecycle transitions. Consumers are other control-plane
// applications; delivery is best effort.
package events

import (
	"context"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/pkg/log"
)

// Event names published by the controller.
const (
	Created             = "evc_created"
	Deployed            = "evc_deployed"
	Undeployed          = "evc_undeployed"
	Updated             = "evc_updated"
	Deleted             = "evc_deleted"
	RedeployedLinkUp    = "evc_redeployed_link_up"
	AffectedByLink      = "evc_affected_by_link_down"
	RedeployedOnFailure = "evc_redeployed_link_down"
	ErrorRedeploying    = "evc_error_redeploy_link_down"
	DeployedFailover    = "evc_failover_deployed"
	LinkTagsChanged     = "link_available_tags"
)

// Event is one published notification.
type Event struct {
	Name    string
	Content map[string]any
}

// Sink receives published events.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// CircuitContent is the circuit projection attached to circuit events.
func CircuitContent(c *circuit.EVC) map[string]any {
	uniA, uniZ := c.UNIA(), c.UNIZ()
	return map[string]any{
		"evc_id":   c.ID,
		"name":     c.Name,
		"enabled":  c.IsEnabled(),
		"active":   c.IsActive(),
		"archived": c.IsArchived(),
		"uni_a":    map[string]any{"interface": uniA.Interface.String(), "tag": uniA.Tag},
		"uni_z":    map[string]any{"interface": uniZ.Interface.String(), "tag": uniZ.Tag},
		"metadata": c.Metadata(),
	}
}

// LogSink writes events to the logger. It is the default sink when no
// message bus is wired.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(ctx context.Context, ev Event) {
	log.FromCtx(ctx).Info("Event published", "event", ev.Name, "content", ev.Content)
}

// ChannelSink delivers events on a channel, dropping when the receiver lags.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a sink buffering up to size events.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, size)}
}

// Emit implements Sink.
func (s *ChannelSink) Emit(ctx context.Context, ev Event) {
	select {
	case s.C <- ev:
	default:
		log.FromCtx(ctx).Debug("Event dropped, sink full", "event", ev.Name)
	}
}
