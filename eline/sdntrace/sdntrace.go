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

// Package sdntrace is the client of the control plane trace collaborator. A
// trace injects a synthetic probe at an interface and reports the switch
// hops the data plane actually takes.
package sdntrace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/open-eline/eline/pkg/private/serrors"
)

// Request describes one probe: where it enters the network and with which
// VLAN tag. A zero Vlan means an untagged probe.
type Request struct {
	SwitchID string
	Port     int
	Vlan     int
}

// HopOut is the egress information of a hop, present only on the last hop of
// a completed trace.
type HopOut struct {
	Port int `json:"port"`
	Vlan int `json:"vlan"`
}

// Hop is one step of a trace: the switch the probe entered, through which
// port and with which VLAN tag.
type Hop struct {
	SwitchID string  `json:"dpid"`
	Port     int     `json:"port"`
	Type     string  `json:"type"`
	Vlan     int     `json:"vlan"`
	Out      *HopOut `json:"out,omitempty"`
}

// Trace is the hop sequence of one probe, ingress first.
type Trace []Hop

// Client talks to the trace collaborator over its REST API.
type Client struct {
	// URL is the collaborator's base URL.
	URL string
	// HTTP is the client to use, http.DefaultClient if nil.
	HTTP *http.Client
	// Timeout bounds one bulk request, DefaultTimeout when 0.
	Timeout time.Duration
}

// DefaultTimeout bounds a bulk trace request.
const DefaultTimeout = 30 * time.Second

type traceEntry struct {
	Trace struct {
		Switch struct {
			DPID   string `json:"dpid"`
			InPort int    `json:"in_port"`
		} `json:"switch"`
		Eth struct {
			DlVlan int `json:"dl_vlan,omitempty"`
		} `json:"eth"`
	} `json:"trace"`
}

type bulkResponse struct {
	Result []Trace `json:"result"`
}

// BulkTraces runs all probes in one request. The i-th trace of the result
// belongs to the i-th request.
func (c *Client) BulkTraces(ctx context.Context, reqs []Request) ([]Trace, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	entries := make([]traceEntry, 0, len(reqs))
	for _, r := range reqs {
		var e traceEntry
		e.Trace.Switch.DPID = r.SwitchID
		e.Trace.Switch.InPort = r.Port
		e.Trace.Eth.DlVlan = r.Vlan
		entries = append(entries, e)
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return nil, serrors.Wrap("encoding trace request", err)
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.URL+"/traces", bytes.NewReader(body))
	if err != nil {
		return nil, serrors.Wrap("building trace request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, serrors.Wrap("requesting traces", err, "url", c.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, serrors.New("trace request failed",
			"status", resp.StatusCode, "body", string(msg))
	}
	var parsed bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, serrors.Wrap("decoding trace response", err)
	}
	if len(parsed.Result) != len(reqs) {
		return nil, serrors.New("trace count mismatch",
			"requested", len(reqs), "received", len(parsed.Result))
	}
	return parsed.Result, nil
}
