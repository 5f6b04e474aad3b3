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

package circuit

import (
	"sort"
	"sync"
)

// Registry is the in-memory set of circuits the controller manages.
// Different circuits may be processed concurrently; the registry itself is
// safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	circuits map[string]*EVC
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{circuits: make(map[string]*EVC)}
}

// Add inserts or replaces a circuit.
func (r *Registry) Add(c *EVC) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.circuits[c.ID] = c
}

// Get returns the circuit with the given id, or nil.
func (r *Registry) Get(id string) *EVC {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.circuits[id]
}

// All returns all non-archived circuits in unspecified order.
func (r *Registry) All() []*EVC {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*EVC, 0, len(r.circuits))
	for _, c := range r.circuits {
		if !c.IsArchived() {
			out = append(out, c)
		}
	}
	return out
}

// ByPriority returns all non-archived circuits ordered by descending service
// level, ties broken by earlier creation time. Reconciliation visits the
// most important circuits first.
func (r *Registry) ByPriority() []*EVC {
	out := r.All()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ServiceLevel() != out[j].ServiceLevel() {
			return out[i].ServiceLevel() > out[j].ServiceLevel()
		}
		return out[i].CreationTime.Before(out[j].CreationTime)
	})
	return out
}
