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

package topology

import (
	"fmt"
	"sync"

	"github.com/open-eline/eline/pkg/private/serrors"
)

// LinkEvent is a link state change signal.
type LinkEvent struct {
	Link *Link
	Up   bool
}

// linkEventsLength is the size of the buffered link event channel. The
// watcher is expected to drain promptly; SetLinkStatus never blocks.
const linkEventsLength = 64

// Topology is the registry of switches, interfaces and links the controller
// knows about. It emits link state changes on the Events channel.
type Topology struct {
	mu         sync.RWMutex
	switches   map[string]*Switch
	interfaces map[string]*Interface
	links      map[string]*Link
	events     chan LinkEvent
}

// New creates an empty topology.
func New() *Topology {
	return &Topology{
		switches:   make(map[string]*Switch),
		interfaces: make(map[string]*Interface),
		links:      make(map[string]*Link),
		events:     make(chan LinkEvent, linkEventsLength),
	}
}

// Events returns the link state change channel.
func (t *Topology) Events() <-chan LinkEvent {
	return t.events
}

// AddSwitch registers a switch, returning the existing one if already known.
func (t *Topology) AddSwitch(id string) *Switch {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sw, ok := t.switches[id]; ok {
		return sw
	}
	sw := &Switch{ID: id}
	t.switches[id] = sw
	return sw
}

// Switch returns the switch with the given id, or nil.
func (t *Topology) Switch(id string) *Switch {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.switches[id]
}

// AddInterface registers an interface on the given switch, returning the
// existing one if already known. The switch is registered as needed.
func (t *Topology) AddInterface(switchID string, port int) *Interface {
	sw := t.AddSwitch(switchID)
	key := fmt.Sprintf("%s:%d", switchID, port)
	t.mu.Lock()
	defer t.mu.Unlock()
	if intf, ok := t.interfaces[key]; ok {
		return intf
	}
	intf := NewInterface(sw, port)
	t.interfaces[key] = intf
	return intf
}

// Interface returns the interface with the given switch and port, or nil.
func (t *Topology) Interface(switchID string, port int) *Interface {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.interfaces[fmt.Sprintf("%s:%d", switchID, port)]
}

// AddLink registers a link.
func (t *Topology) AddLink(link *Link) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.links[link.ID]; ok {
		return serrors.New("link already registered", "link", link.ID)
	}
	t.links[link.ID] = link
	return nil
}

// Link returns the link with the given id, or nil.
func (t *Topology) Link(id string) *Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.links[id]
}

// Links returns all registered links.
func (t *Topology) Links() []*Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	links := make([]*Link, 0, len(t.links))
	for _, l := range t.links {
		links = append(links, l)
	}
	return links
}

// LinkBetween returns the link connecting the two interfaces, identified by
// their "switch:port" ids, in either orientation. Returns nil when no such
// link is registered.
func (t *Topology) LinkBetween(a, b string) *Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ia, ib := t.interfaces[a], t.interfaces[b]
	if ia == nil || ib == nil {
		return nil
	}
	for _, l := range t.links {
		if (l.EndpointA == ia && l.EndpointB == ib) ||
			(l.EndpointA == ib && l.EndpointB == ia) {

			return l
		}
	}
	return nil
}

// SetLinkStatus updates the status of the link with the given id and emits a
// link event if the up/down state changed. Events are dropped if the event
// channel is full; the consistency check corrects any missed transition.
func (t *Topology) SetLinkStatus(id string, status Status) error {
	t.mu.RLock()
	link, ok := t.links[id]
	t.mu.RUnlock()
	if !ok {
		return serrors.New("unknown link", "link", id)
	}
	old := link.Status()
	link.SetStatus(status)
	if (old == StatusUp) == (status == StatusUp) {
		return nil
	}
	select {
	case t.events <- LinkEvent{Link: link, Up: status == StatusUp}:
	default:
	}
	return nil
}
