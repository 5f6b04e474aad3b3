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

// Package topology holds the network elements the controller operates on:
// switches, interfaces, links and user network interfaces (UNIs). Links are
// owned by the topology; circuits only reference them. The topology is also
// the source of link up/down signals.
package topology

import (
	"fmt"
	"sync"

	"github.com/open-eline/eline/pkg/private/serrors"
)

// Status is the operational status of a network element.
type Status int

const (
	// StatusDisabled means the element is administratively out of service or
	// absent. The empty path has this status.
	StatusDisabled Status = iota
	// StatusDown means the element is not forwarding traffic.
	StatusDown
	// StatusUp means the element is operational.
	StatusUp
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "UP"
	case StatusDown:
		return "DOWN"
	default:
		return "DISABLED"
	}
}

// Switch is a forwarding element, identified by its datapath ID.
type Switch struct {
	ID string
}

// Interface is a port on a switch.
type Interface struct {
	Switch *Switch
	Port   int

	mu       sync.Mutex
	usedTags map[int]struct{}
}

// NewInterface creates an interface on the given switch.
func NewInterface(sw *Switch, port int) *Interface {
	return &Interface{Switch: sw, Port: port, usedTags: make(map[int]struct{})}
}

func (i *Interface) String() string {
	return fmt.Sprintf("%s:%d", i.Switch.ID, i.Port)
}

// IsTagAvailable reports whether the given client tag is currently free on
// this interface.
func (i *Interface) IsTagAvailable(tag int) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, used := i.usedTags[tag]
	return !used
}

// UseTag reserves the given client tag on this interface.
func (i *Interface) UseTag(tag int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, used := i.usedTags[tag]; used {
		return serrors.New("tag already in use", "interface", i.String(), "tag", tag)
	}
	i.usedTags[tag] = struct{}{}
	return nil
}

// MakeTagAvailable releases the given client tag on this interface. It is
// idempotent.
func (i *Interface) MakeTagAvailable(tag int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.usedTags, tag)
}

// UNI is a user network interface: a circuit endpoint consisting of an
// interface and an optional client VLAN tag. A zero tag means the endpoint is
// untagged (EPL).
type UNI struct {
	Interface *Interface
	Tag       int
}

// IsValid reports whether the UNI's tag, if present, is currently free on its
// interface.
func (u UNI) IsValid() bool {
	if u.Interface == nil {
		return false
	}
	if u.Tag == 0 {
		return true
	}
	return u.Interface.IsTagAvailable(u.Tag)
}

// Equal reports whether two UNIs reference the same interface and tag.
func (u UNI) Equal(o UNI) bool {
	return u.Interface == o.Interface && u.Tag == o.Tag
}
