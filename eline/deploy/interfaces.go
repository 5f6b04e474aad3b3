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

package deploy

import (
	"context"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/flow"
	"github.com/open-eline/eline/eline/path"
)

// PathComputer obtains path candidates from the path computation
// collaborator. Candidates come back best first; tag allocation decides
// which one is usable.
type PathComputer interface {
	// BestPaths returns up to maxPaths candidates between the circuit's
	// endpoint switches, honoring the given constraints.
	BestPaths(ctx context.Context, c *circuit.EVC, maxPaths int,
		constraints map[string]any) ([]path.Path, error)
	// DisjointPaths returns candidates maximally link-disjoint from the
	// unwanted path, fully disjoint ones first.
	DisjointPaths(ctx context.Context, c *circuit.EVC,
		unwanted path.Path) ([]path.Path, error)
}

// FlowProgrammer sends forwarding rules to the flow programming
// collaborator.
type FlowProgrammer interface {
	Install(ctx context.Context, switchID string, flows []flow.Mod) error
	// Delete removes the rules matching the given descriptors. force makes
	// the collaborator retry on unreachable switches.
	Delete(ctx context.Context, switchID string, flows []flow.Mod, force bool) error
}

// Store persists circuit state. Deployment syncs after every state
// transition so a controller restart resumes from what is programmed.
type Store interface {
	Upsert(ctx context.Context, c *circuit.EVC) error
}
