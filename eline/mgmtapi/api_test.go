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

package mgmtapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-eline/eline/eline"
	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/config"
	"github.com/open-eline/eline/eline/events"
	"github.com/open-eline/eline/eline/flow"
	"github.com/open-eline/eline/eline/mgmtapi"
	"github.com/open-eline/eline/eline/topology"
)

type fixture struct {
	api  *httptest.Server
	ctrl *eline.Controller
	sink *events.ChannelSink
}

// newFixture wires a controller against stub collaborators and serves the
// management API from it. The flow manager accepts everything, the
// pathfinder knows no paths.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	fm := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
	t.Cleanup(fm.Close)
	pf := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"paths": []any{}})
		}))
	t.Cleanup(pf.Close)

	cfg := &config.Config{}
	cfg.Eline.PathfinderURL = pf.URL
	cfg.Eline.FlowManagerURL = fm.URL
	cfg.Database.Path = filepath.Join(t.TempDir(), "eline.db")
	cfg.InitDefaults()
	require.NoError(t, cfg.Validate())

	// eline.New registers metrics with the default registerer; give each
	// fixture a fresh registry so repeated construction does not panic.
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	sink := events.NewChannelSink(64)
	ctrl, err := eline.New(cfg, sink, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ctrl.Store.Close() })

	srv := &mgmtapi.Server{Controller: ctrl}
	api := httptest.NewServer(srv.Router())
	t.Cleanup(api.Close)
	return &fixture{api: api, ctrl: ctrl, sink: sink}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.api.URL+path, &buf)
	require.NoError(t, err)
	resp, err := f.api.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// addLink registers an inter-switch link through the admin endpoint and
// brings it up. New links start out down.
func (f *fixture) addLink(t *testing.T, id, sa string, pa int, sb string, pb int) {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/v2/topology/links", map[string]any{
		"id":         id,
		"endpoint_a": map[string]any{"switch": sa, "port": pa},
		"endpoint_b": map[string]any{"switch": sb, "port": pb},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPut, "/v2/topology/links/"+id+"/status",
		map[string]any{"status": "up"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func circuitPayload() map[string]any {
	return map[string]any{
		"name": "inter pop circuit",
		"uni_a": map[string]any{
			"interface_id": "s1:1",
			"tag":          map[string]any{"tag_type": "vlan", "value": 100},
		},
		"uni_z": map[string]any{
			"interface_id": "s3:1",
			"tag":          map[string]any{"tag_type": "vlan", "value": 200},
		},
		"enabled":      true,
		"primary_path": []string{"p1", "p2"},
	}
}

// create provisions a circuit on s1-s2-s3 and returns its id.
func (f *fixture) create(t *testing.T) string {
	t.Helper()
	f.addLink(t, "p1", "s1", 2, "s2", 2)
	f.addLink(t, "p2", "s2", 3, "s3", 2)
	resp := f.do(t, http.MethodPost, "/v2/evc", circuitPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[map[string]string](t, resp)["circuit_id"]
	require.Len(t, id, 14)
	return id
}

func TestCircuitLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	// The circuit deployed on creation since it was enabled.
	evc := f.ctrl.Registry.Get(id)
	require.NotNil(t, evc)
	assert.True(t, evc.IsActive())

	resp := f.do(t, http.MethodGet, "/v2/evc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[map[string]circuit.Record](t, resp)
	require.Contains(t, all, id)
	assert.Equal(t, "inter pop circuit", all[id].Name)

	resp = f.do(t, http.MethodGet, "/v2/evc/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[circuit.Record](t, resp)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, 100, rec.UNIA.Tag)
	assert.True(t, rec.Active)
	assert.Equal(t, []string{"p1", "p2"}, rec.CurrentPath.Links)

	resp = f.do(t, http.MethodPatch, "/v2/evc/"+id,
		map[string]any{"name": "renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "renamed", evc.Record().Name)

	resp = f.do(t, http.MethodPatch, "/v2/evc/"+id,
		map[string]any{"uni_a": map[string]any{"interface_id": "garbage"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/v2/evc/"+id+"/redeploy", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, evc.IsActive())

	resp = f.do(t, http.MethodDelete, "/v2/evc/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, evc.IsArchived())

	// Archived circuits are gone from the API.
	resp = f.do(t, http.MethodGet, "/v2/evc/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = f.do(t, http.MethodPatch, "/v2/evc/"+id+"/redeploy", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateCircuitRejected(t *testing.T) {
	f := newFixture(t)
	f.addLink(t, "p1", "s1", 2, "s2", 2)
	uni := func(id string, tag int) map[string]any {
		return map[string]any{
			"interface_id": id,
			"tag":          map[string]any{"value": tag},
		}
	}
	testCases := map[string]map[string]any{
		"missing unis": {"name": "x"},
		"bad interface id": {
			"name":  "x",
			"uni_a": map[string]any{"interface_id": "s1"},
			"uni_z": uni("s3:1", 200),
		},
		"unknown link": {
			"name":         "x",
			"uni_a":        uni("s1:1", 100),
			"uni_z":        uni("s3:1", 200),
			"primary_path": []string{"nope"},
		},
		"no primary and not dynamic": {
			"name":  "x",
			"uni_a": uni("s1:1", 100),
			"uni_z": uni("s3:1", 200),
		},
	}
	for name, payload := range testCases {
		t.Run(name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/v2/evc", payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Empty(t, f.ctrl.Registry.All())
}

func TestCircuitNotFound(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v2/evc/00000000000099"},
		{http.MethodPatch, "/v2/evc/00000000000099"},
		{http.MethodDelete, "/v2/evc/00000000000099"},
		{http.MethodPatch, "/v2/evc/00000000000099/redeploy"},
		{http.MethodGet, "/v2/evc/00000000000099/metadata"},
	} {
		resp := f.do(t, tc.method, tc.path, map[string]any{})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode,
			"%s %s", tc.method, tc.path)
	}
}

func TestMetadata(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	path := fmt.Sprintf("/v2/evc/%s/metadata", id)

	resp := f.do(t, http.MethodPost, path, map[string]any{"telemetry": "enabled"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]map[string]any](t, resp)
	assert.Equal(t, "enabled", got["metadata"]["telemetry"])

	resp = f.do(t, http.MethodDelete, path+"/telemetry", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, path, nil)
	got = decode[map[string]map[string]any](t, resp)
	assert.NotContains(t, got["metadata"], "telemetry")
}

func TestLinkAdmin(t *testing.T) {
	f := newFixture(t)
	f.addLink(t, "p1", "s1", 2, "s2", 2)

	// Duplicate link ids are rejected.
	resp := f.do(t, http.MethodPost, "/v2/topology/links", map[string]any{
		"id":         "p1",
		"endpoint_a": map[string]any{"switch": "s1", "port": 2},
		"endpoint_b": map[string]any{"switch": "s2", "port": 2},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v2/topology/links", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	links := decode[[]map[string]any](t, resp)
	require.Len(t, links, 1)
	assert.Equal(t, "p1", links[0]["id"])
	assert.Equal(t, "UP", links[0]["status"])

	resp = f.do(t, http.MethodPut, "/v2/topology/links/p1/status",
		map[string]any{"status": "down"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, topology.StatusDown, f.ctrl.Topology.Link("p1").Status())

	resp = f.do(t, http.MethodPut, "/v2/topology/links/p1/status",
		map[string]any{"status": "UP"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, topology.StatusUp, f.ctrl.Topology.Link("p1").Status())

	resp = f.do(t, http.MethodPut, "/v2/topology/links/p1/status",
		map[string]any{"status": "sideways"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/v2/topology/links/p9/status",
		map[string]any{"status": "down"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFlowRemovedHook(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)
	evc := f.ctrl.Registry.Get(id)
	require.True(t, evc.FlowRemovedAt().IsZero())

	cookie, err := flow.EncodeCookie(id)
	require.NoError(t, err)
	resp := f.do(t, http.MethodPost, "/v2/hooks/flow_removed",
		map[string]any{"cookie": cookie})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, evc.FlowRemovedAt().IsZero())

	// Unknown cookies are acknowledged and ignored.
	resp = f.do(t, http.MethodPost, "/v2/hooks/flow_removed",
		map[string]any{"cookie": uint64(0xaa00000000000099)})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
