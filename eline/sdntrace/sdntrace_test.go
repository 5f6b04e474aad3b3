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

package sdntrace_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-eline/eline/eline/sdntrace"
)

func TestBulkTraces(t *testing.T) {
	var gotBody []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/traces", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			reply := map[string]any{"result": []sdntrace.Trace{
				{
					{SwitchID: "s1", Port: 1, Type: "starting", Vlan: 100},
					{SwitchID: "s2", Port: 2, Type: "trace", Vlan: 57},
					{
						SwitchID: "s3", Port: 2, Type: "last", Vlan: 57,
						Out: &sdntrace.HopOut{Port: 1, Vlan: 200},
					},
				},
				{
					{SwitchID: "s1", Port: 5, Type: "starting", Vlan: 300},
				},
			}}
			require.NoError(t, json.NewEncoder(w).Encode(reply))
		}))
	defer srv.Close()
	client := &sdntrace.Client{URL: srv.URL}

	traces, err := client.BulkTraces(context.Background(), []sdntrace.Request{
		{SwitchID: "s1", Port: 1, Vlan: 100},
		{SwitchID: "s1", Port: 5, Vlan: 300},
	})
	require.NoError(t, err)

	require.Len(t, gotBody, 2)
	sw := gotBody[0]["trace"].(map[string]any)["switch"].(map[string]any)
	assert.Equal(t, "s1", sw["dpid"])
	assert.Equal(t, float64(1), sw["in_port"])
	eth := gotBody[0]["trace"].(map[string]any)["eth"].(map[string]any)
	assert.Equal(t, float64(100), eth["dl_vlan"])

	require.Len(t, traces, 2)
	require.Len(t, traces[0], 3)
	assert.Equal(t, "s2", traces[0][1].SwitchID)
	assert.Equal(t, 57, traces[0][1].Vlan)
	require.NotNil(t, traces[0][2].Out)
	assert.Equal(t, 1, traces[0][2].Out.Port)
	assert.Len(t, traces[1], 1)
}

func TestBulkTracesCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			reply := map[string]any{"result": []sdntrace.Trace{}}
			require.NoError(t, json.NewEncoder(w).Encode(reply))
		}))
	defer srv.Close()
	client := &sdntrace.Client{URL: srv.URL}

	_, err := client.BulkTraces(context.Background(), []sdntrace.Request{
		{SwitchID: "s1", Port: 1},
	})
	assert.Error(t, err)
}

func TestBulkTracesNoRequests(t *testing.T) {
	client := &sdntrace.Client{URL: "http://unreachable.invalid"}
	traces, err := client.BulkTraces(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, traces)
}

func TestBulkTracesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
	defer srv.Close()
	client := &sdntrace.Client{URL: srv.URL}

	_, err := client.BulkTraces(context.Background(), []sdntrace.Request{
		{SwitchID: "s1", Port: 1},
	})
	assert.Error(t, err)
}
