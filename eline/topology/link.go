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
	"sync"

	"github.com/open-eline/eline/pkg/private/serrors"
)

// Default service tag range. VLAN 1 and 4095 are reserved.
const (
	DefaultTagRangeFirst = 2
	DefaultTagRangeLast  = 4094
)

// Link is an undirected pair of interfaces on two switches; a path may
// traverse it in either orientation. It carries an operational status and
// the pool of service tags that circuits crossing the link may reserve.
// Reservation and release are atomic per link.
type Link struct {
	ID        string
	EndpointA *Interface
	EndpointB *Interface

	mu       sync.Mutex
	status   Status
	usedTags map[int]struct{}
	rangeLo  int
	rangeHi  int
}

// NewLink creates a link between the two interfaces with the default service
// tag range. New links start out down until the topology reports otherwise.
func NewLink(id string, a, b *Interface) *Link {
	return NewLinkWithTagRange(id, a, b, DefaultTagRangeFirst, DefaultTagRangeLast)
}

// NewLinkWithTagRange creates a link with an explicit service tag range.
func NewLinkWithTagRange(id string, a, b *Interface, lo, hi int) *Link {
	return &Link{
		ID:        id,
		EndpointA: a,
		EndpointB: b,
		status:    StatusDown,
		usedTags:  make(map[int]struct{}),
		rangeLo:   lo,
		rangeHi:   hi,
	}
}

// Status returns the operational status of the link.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// SetStatus updates the operational status of the link.
func (l *Link) SetStatus(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = s
}

// IsTagAvailable reports whether the given service tag is inside the link's
// tag range and not reserved.
func (l *Link) IsTagAvailable(tag int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tagAvailableLocked(tag)
}

func (l *Link) tagAvailableLocked(tag int) bool {
	if tag < l.rangeLo || tag > l.rangeHi {
		return false
	}
	_, used := l.usedTags[tag]
	return !used
}

// UseTag reserves the given service tag on the link. Reservation is atomic
// per link.
func (l *Link) UseTag(tag int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.tagAvailableLocked(tag) {
		return serrors.New("tag not available", "link", l.ID, "tag", tag)
	}
	l.usedTags[tag] = struct{}{}
	return nil
}

// MakeTagAvailable releases the given service tag on the link. It is
// idempotent.
func (l *Link) MakeTagAvailable(tag int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.usedTags, tag)
}

// TagRange returns the service tag range of the link.
func (l *Link) TagRange() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rangeLo, l.rangeHi
}

// HasInterface reports whether the given interface is one of the link's
// endpoints.
func (l *Link) HasInterface(intf *Interface) bool {
	return l.EndpointA == intf || l.EndpointB == intf
}

// EndpointOn returns the link's endpoint on the given switch, nil when the
// link does not touch it.
func (l *Link) EndpointOn(sw *Switch) *Interface {
	if l.EndpointA.Switch == sw {
		return l.EndpointA
	}
	if l.EndpointB.Switch == sw {
		return l.EndpointB
	}
	return nil
}

// Opposite returns the link's endpoint on the far side of the given switch,
// nil when the link does not touch it.
func (l *Link) Opposite(sw *Switch) *Interface {
	if l.EndpointA.Switch == sw {
		return l.EndpointB
	}
	if l.EndpointB.Switch == sw {
		return l.EndpointA
	}
	return nil
}

// SharedSwitch returns the switch two adjacent links have in common, nil
// when they do not connect.
func SharedSwitch(a, b *Link) *Switch {
	for _, sw := range []*Switch{a.EndpointA.Switch, a.EndpointB.Switch} {
		if b.EndpointOn(sw) != nil {
			return sw
		}
	}
	return nil
}
