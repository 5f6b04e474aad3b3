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

package pathfinder_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/pathfinder"
	"github.com/open-eline/eline/eline/topology"
)

type fixture struct {
	topo *topology.Topology
	evc  *circuit.EVC
	p1   *topology.Link
	p2   *topology.Link
	b1   *topology.Link
	b2   *topology.Link
	x1   *topology.Link
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	topo := topology.New()
	f := &fixture{topo: topo}
	mk := func(id, sa string, pa int, sb string, pb int) *topology.Link {
		l := topology.NewLink(id,
			topo.AddInterface(sa, pa), topo.AddInterface(sb, pb))
		require.NoError(t, topo.AddLink(l))
		return l
	}
	f.p1 = mk("p1", "s1", 2, "s2", 2)
	f.p2 = mk("p2", "s2", 3, "s3", 2)
	f.b1 = mk("b1", "s1", 3, "s4", 2)
	f.b2 = mk("b2", "s4", 3, "s3", 3)
	f.x1 = mk("x1", "s2", 4, "s3", 4)
	evc, err := circuit.New(circuit.Params{
		Name:              "test circuit",
		UNIA:              topology.UNI{Interface: topo.AddInterface("s1", 1), Tag: 100},
		UNIZ:              topology.UNI{Interface: topo.AddInterface("s3", 1), Tag: 200},
		DynamicBackupPath: true,
	})
	require.NoError(t, err)
	f.evc = evc
	return f
}

func pathsReply(hops ...[]string) map[string]any {
	paths := make([]map[string]any, 0, len(hops))
	for _, h := range hops {
		paths = append(paths, map[string]any{"hops": h, "cost": float64(len(h))})
	}
	return map[string]any{"paths": paths}
}

// hopsVia2 is the collaborator's hop list for s1-s2-s3; it mixes switch and
// interface ids.
var hopsVia2 = []string{
	"s1:1", "s1", "s1:2", "s2:2", "s2", "s2:3", "s3:2", "s3", "s3:1",
}

func TestBestPaths(t *testing.T) {
	f := newFixture(t)
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/paths", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			require.NoError(t, json.NewEncoder(w).Encode(pathsReply(hopsVia2)))
		}))
	defer srv.Close()
	client := &pathfinder.Client{URL: srv.URL, Topology: f.topo}

	paths, err := client.BestPaths(context.Background(), f.evc, 2,
		map[string]any{"mandatory_metrics": map[string]any{"bandwidth": 100}})
	require.NoError(t, err)

	assert.Equal(t, "s1:1", gotBody["source"])
	assert.Equal(t, "s3:1", gotBody["destination"])
	assert.Equal(t, float64(2), gotBody["spf_max_paths"])
	assert.Contains(t, gotBody, "mandatory_metrics")

	require.Len(t, paths, 1)
	assert.True(t, paths[0].Equal(path.New(f.p1, f.p2)))
}

func TestBestPathsDropsUnresolvable(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewEncoder(w).Encode(pathsReply(
				[]string{"s1:1", "s1:2", "s9:9", "s3:1"},
				hopsVia2,
				[]string{"s1:1"},
			)))
		}))
	defer srv.Close()
	client := &pathfinder.Client{URL: srv.URL, Topology: f.topo}

	paths, err := client.BestPaths(context.Background(), f.evc, 3, nil)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, paths[0].Equal(path.New(f.p1, f.p2)))
}

func TestBestPathsError(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "out of cheese", http.StatusInternalServerError)
		}))
	defer srv.Close()
	client := &pathfinder.Client{URL: srv.URL, Topology: f.topo}

	_, err := client.BestPaths(context.Background(), f.evc, 2, nil)
	assert.Error(t, err)
}

func TestDisjointPaths(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewEncoder(w).Encode(pathsReply(
				// Identical to the unwanted path, partially disjoint,
				// fully disjoint.
				hopsVia2,
				[]string{"s1:1", "s1:2", "s2:2", "s2:4", "s3:4", "s3:1"},
				[]string{"s1:1", "s1:3", "s4:2", "s4:3", "s3:3", "s3:1"},
			)))
		}))
	defer srv.Close()
	client := &pathfinder.Client{URL: srv.URL, Topology: f.topo}

	unwanted := path.New(f.p1, f.p2)
	paths, err := client.DisjointPaths(context.Background(), f.evc, unwanted)
	require.NoError(t, err)

	// The fully disjoint candidate ranks first, the identical one is gone.
	// Partially disjoint candidates stay in the ranking; the deploy engine
	// filters them out when provisioning protection.
	require.Len(t, paths, 2)
	assert.True(t, paths[0].Equal(path.New(f.b1, f.b2)))
	assert.True(t, paths[1].Equal(path.New(f.p1, f.x1)))
}

func TestDisjointPathsEmptyUnwanted(t *testing.T) {
	f := newFixture(t)
	client := &pathfinder.Client{URL: "http://unreachable.invalid", Topology: f.topo}

	paths, err := client.DisjointPaths(context.Background(), f.evc, path.Path{})
	require.NoError(t, err)
	assert.Empty(t, paths)
}
