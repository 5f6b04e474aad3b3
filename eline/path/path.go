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

// Package path represents an ordered sequence of links between two switches
// and manages the shared service tag allocated across it.
package path

import (
	"errors"

	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// ErrNoTagAvailable is returned when no service tag is simultaneously free on
// every link of a path. It is an expected, recoverable condition: callers
// advance to the next path candidate.
var ErrNoTagAvailable = errors.New("no tag available on path")

// ErrInvalidPath is returned when a link sequence does not connect the
// declared endpoint switches.
var ErrInvalidPath = errors.New("invalid path")

// Path is an ordered link sequence with the service tag reserved across it.
// The zero value is the empty path. NNI flows swap the same tag value
// end-to-end, so a single tag is allocated for the whole path: it must be
// free on every constituent link at allocation time.
type Path struct {
	Links []*topology.Link
	// SVlan is the service tag reserved on every link of the path, 0 while
	// unallocated.
	SVlan int
}

// New returns a path over the given links, with no tag allocated.
func New(links ...*topology.Link) Path {
	return Path{Links: links}
}

// Len returns the number of links in the path.
func (p Path) Len() int {
	return len(p.Links)
}

// IsEmpty reports whether the path has no links.
func (p Path) IsEmpty() bool {
	return len(p.Links) == 0
}

// Status derives the path status from its links: UP only if every link is
// UP, DISABLED if the path is empty, otherwise the status of the first
// non-UP link.
func (p Path) Status() topology.Status {
	if p.IsEmpty() {
		return topology.StatusDisabled
	}
	for _, link := range p.Links {
		if s := link.Status(); s != topology.StatusUp {
			return s
		}
	}
	return topology.StatusUp
}

// Equal reports whether two paths consist of the same link sequence.
func (p Path) Equal(o Path) bool {
	if len(p.Links) != len(o.Links) {
		return false
	}
	for i, link := range p.Links {
		if o.Links[i] != link {
			return false
		}
	}
	return true
}

// ContainsLink reports whether the given link is part of the path.
func (p Path) ContainsLink(link *topology.Link) bool {
	for _, l := range p.Links {
		if l == link {
			return true
		}
	}
	return false
}

// AffectedByInterface reports whether any link of the path terminates on the
// given interface.
func (p Path) AffectedByInterface(intf *topology.Interface) bool {
	for _, l := range p.Links {
		if l.HasInterface(intf) {
			return true
		}
	}
	return false
}

// SharesLink reports whether the two paths have a link in common.
func (p Path) SharesLink(o Path) bool {
	for _, l := range o.Links {
		if p.ContainsLink(l) {
			return true
		}
	}
	return false
}

// IsValid verifies that the link sequence actually connects the two
// switches: walking the links from src, each link must touch the switch the
// previous one ended on, and the walk must end at dst. Links are undirected;
// either orientation is accepted. Returns an error wrapping ErrInvalidPath
// otherwise.
func (p Path) IsValid(src, dst *topology.Switch) error {
	if p.IsEmpty() {
		return serrors.Join(ErrInvalidPath, nil, "reason", "empty path")
	}
	cur := src
	for i, link := range p.Links {
		far := link.Opposite(cur)
		if far == nil {
			return serrors.Join(ErrInvalidPath, nil,
				"reason", "link chain broken", "position", i, "link", link.ID)
		}
		cur = far.Switch
	}
	if cur != dst {
		return serrors.Join(ErrInvalidPath, nil,
			"reason", "path does not end at destination switch", "switch", dst.ID)
	}
	return nil
}

// ChooseVLANs finds a single service tag simultaneously free on every link of
// the path and reserves it on each link. Returns an error wrapping
// ErrNoTagAvailable if no common free tag exists across the whole path.
//
// Reservation is per link; if a candidate tag is raced away on a later link,
// the partial reservation is rolled back and the next candidate is tried.
func (p *Path) ChooseVLANs() error {
	if p.IsEmpty() {
		return nil
	}
	if p.SVlan != 0 {
		return nil
	}
	lo, hi := p.Links[0].TagRange()
	for tag := lo; tag <= hi; tag++ {
		if p.reserve(tag) {
			p.SVlan = tag
			return nil
		}
	}
	return serrors.Join(ErrNoTagAvailable, nil, "links", len(p.Links))
}

func (p *Path) reserve(tag int) bool {
	for i, link := range p.Links {
		if err := link.UseTag(tag); err != nil {
			for _, taken := range p.Links[:i] {
				taken.MakeTagAvailable(tag)
			}
			return false
		}
	}
	return true
}

// MakeVLANsAvailable releases the allocated service tag on every link of the
// path and returns the links whose tag pool changed. It is idempotent.
func (p *Path) MakeVLANsAvailable() []*topology.Link {
	if p.SVlan == 0 {
		return nil
	}
	for _, link := range p.Links {
		link.MakeTagAvailable(p.SVlan)
	}
	p.SVlan = 0
	return p.Links
}

// Switches returns the distinct switches the path traverses.
func (p Path) Switches() []*topology.Switch {
	var out []*topology.Switch
	seen := make(map[*topology.Switch]struct{})
	add := func(sw *topology.Switch) {
		if _, ok := seen[sw]; !ok {
			seen[sw] = struct{}{}
			out = append(out, sw)
		}
	}
	for _, link := range p.Links {
		add(link.EndpointA.Switch)
		add(link.EndpointB.Switch)
	}
	return out
}

// LinkIDs returns the ids of the path's links, in order.
func (p Path) LinkIDs() []string {
	ids := make([]string, 0, len(p.Links))
	for _, l := range p.Links {
		ids = append(ids, l.ID)
	}
	return ids
}
