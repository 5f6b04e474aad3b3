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

// Package flowmanager is the client of the flow programming collaborator,
// the only component that talks to the switches themselves.
package flowmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/open-eline/eline/eline/flow"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// DefaultTimeout bounds one flow programming request.
const DefaultTimeout = 10 * time.Second

// Client talks to the flow programming collaborator over its REST API.
type Client struct {
	// URL is the collaborator's base URL.
	URL string
	// HTTP is the client to use, http.DefaultClient if nil.
	HTTP *http.Client
	// Timeout bounds one request, DefaultTimeout when 0.
	Timeout time.Duration
}

type flowsRequest struct {
	Flows []flow.Mod `json:"flows"`
	Force bool       `json:"force,omitempty"`
}

// Install programs the given rules on one switch.
func (c *Client) Install(ctx context.Context, switchID string, flows []flow.Mod) error {
	return c.send(ctx, "/flows/"+switchID, flowsRequest{Flows: flows})
}

// Delete removes the rules matching the given descriptors on one switch.
// With force the collaborator queues the request for an unreachable switch
// instead of failing.
func (c *Client) Delete(ctx context.Context, switchID string, flows []flow.Mod,
	force bool) error {

	return c.send(ctx, "/delete/"+switchID, flowsRequest{Flows: flows, Force: force})
}

func (c *Client) send(ctx context.Context, endpoint string, body flowsRequest) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return serrors.Wrap("encoding flow request", err)
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.URL+endpoint, bytes.NewReader(raw))
	if err != nil {
		return serrors.Wrap("building flow request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return serrors.Wrap("sending flow request", err, "url", c.URL+endpoint)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return serrors.New("flow request failed",
			"endpoint", endpoint, "status", resp.StatusCode, "body", string(msg))
	}
	return nil
}
