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

package flowmanager_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-eline/eline/eline/flow"
	"github.com/open-eline/eline/eline/flowmanager"
)

type recordedRequest struct {
	Path string
	Body struct {
		Flows []flow.Mod `json:"flows"`
		Force bool       `json:"force"`
	}
}

func newServer(t *testing.T, status int, got *recordedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			got.Path = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got.Body))
			w.WriteHeader(status)
		}))
}

func TestInstall(t *testing.T) {
	var got recordedRequest
	srv := newServer(t, http.StatusAccepted, &got)
	defer srv.Close()
	client := &flowmanager.Client{URL: srv.URL}

	mods := []flow.Mod{{
		Match:    &flow.Match{InPort: 1, DlVlan: 100},
		Cookie:   0xaa0000000000002a,
		Actions:  []flow.Action{{Type: flow.ActionOutput, Port: 2}},
		Priority: 20000,
	}}
	require.NoError(t, client.Install(context.Background(), "00:01", mods))

	assert.Equal(t, "/flows/00:01", got.Path)
	assert.Equal(t, mods, got.Body.Flows)
	assert.False(t, got.Body.Force)
}

func TestDelete(t *testing.T) {
	var got recordedRequest
	srv := newServer(t, http.StatusOK, &got)
	defer srv.Close()
	client := &flowmanager.Client{URL: srv.URL}

	del := []flow.Mod{flow.DeleteByCookie(0xaa0000000000002a)}
	require.NoError(t, client.Delete(context.Background(), "00:01", del, true))

	assert.Equal(t, "/delete/00:01", got.Path)
	assert.Equal(t, del, got.Body.Flows)
	assert.True(t, got.Body.Force)
}

func TestSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "switch not connected", http.StatusInternalServerError)
		}))
	defer srv.Close()
	client := &flowmanager.Client{URL: srv.URL}

	err := client.Install(context.Background(), "00:01", nil)
	assert.Error(t, err)
	err = client.Delete(context.Background(), "00:01", nil, false)
	assert.Error(t, err)
}
