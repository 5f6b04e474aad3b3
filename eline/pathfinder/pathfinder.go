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

// Package pathfinder is the client of the path computation collaborator. It
// turns the collaborator's hop lists back into link sequences over the local
// topology.
package pathfinder

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/log"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// DefaultTimeout bounds one path computation request.
const DefaultTimeout = 10 * time.Second

// DefaultDisjointCutoff is how many candidates a disjoint path search
// requests before ranking them.
const DefaultDisjointCutoff = 10

// Client talks to the path computation collaborator over its REST API and
// resolves results against the local topology.
type Client struct {
	// URL is the collaborator's base URL.
	URL      string
	Topology *topology.Topology
	// HTTP is the client to use, http.DefaultClient if nil.
	HTTP *http.Client
	// Timeout bounds one request, DefaultTimeout when 0.
	Timeout time.Duration
}

type pathsResponse struct {
	Paths []struct {
		Hops []string `json:"hops"`
		Cost float64  `json:"cost"`
	} `json:"paths"`
}

// BestPaths requests up to maxPaths candidates between the circuit's
// endpoints. Candidates whose hops cannot be resolved against the local
// topology are dropped; the collaborator may be momentarily ahead of or
// behind it.
func (c *Client) BestPaths(ctx context.Context, evc *circuit.EVC, maxPaths int,
	constraints map[string]any) ([]path.Path, error) {

	body := map[string]any{
		"source":        evc.UNIA().Interface.String(),
		"destination":   evc.UNIZ().Interface.String(),
		"spf_max_paths": maxPaths,
	}
	for k, v := range constraints {
		body[k] = v
	}
	parsed, err := c.request(ctx, body)
	if err != nil {
		return nil, err
	}
	var out []path.Path
	for _, cand := range parsed.Paths {
		p, err := c.resolve(cand.Hops)
		if err != nil {
			log.FromCtx(ctx).Debug("Dropping unresolvable path candidate",
				"evc_id", evc.ID, "err", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// DisjointPaths requests candidates and ranks them by how few links they
// share with the unwanted path, dropping candidates that share all of them.
// The ranking may still hold partially overlapping candidates; callers that
// need full disjointness filter it. An empty unwanted path yields no
// candidates; there is nothing to be disjoint from.
func (c *Client) DisjointPaths(ctx context.Context, evc *circuit.EVC,
	unwanted path.Path) ([]path.Path, error) {

	if unwanted.IsEmpty() {
		return nil, nil
	}
	candidates, err := c.BestPaths(
		ctx, evc, DefaultDisjointCutoff, evc.SecondaryConstraints())
	if err != nil {
		return nil, err
	}
	type scored struct {
		p     path.Path
		score float64
	}
	var ranked []scored
	for _, cand := range candidates {
		shared := 0
		for _, l := range unwanted.Links {
			if cand.ContainsLink(l) {
				shared++
			}
		}
		score := 1 - float64(shared)/float64(unwanted.Len())
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{p: cand, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	out := make([]path.Path, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.p)
	}
	return out, nil
}

func (c *Client) request(ctx context.Context, body map[string]any) (*pathsResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, serrors.Wrap("encoding path request", err)
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.URL+"/paths", bytes.NewReader(raw))
	if err != nil {
		return nil, serrors.Wrap("building path request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, serrors.Wrap("requesting paths", err, "url", c.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, serrors.New("path request failed",
			"status", resp.StatusCode, "body", string(msg))
	}
	var parsed pathsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, serrors.Wrap("decoding path response", err)
	}
	return &parsed, nil
}

// resolve maps a hop list to a link sequence. Hops mix switch and interface
// ids; only the interface ids matter. The first and last interface are the
// circuit endpoints, every consecutive inner pair is one link.
func (c *Client) resolve(hops []string) (path.Path, error) {
	var intfs []string
	for _, hop := range hops {
		if c.Topology.Switch(hop) != nil {
			continue
		}
		intfs = append(intfs, hop)
	}
	if len(intfs) < 2 || len(intfs)%2 != 0 {
		return path.Path{}, serrors.New("unexpected hop count", "hops", len(intfs))
	}
	var links []*topology.Link
	for i := 1; i+1 < len(intfs); i += 2 {
		link := c.Topology.LinkBetween(intfs[i], intfs[i+1])
		if link == nil {
			return path.Path{}, serrors.New("unknown link in path",
				"endpoint_a", intfs[i], "endpoint_b", intfs[i+1])
		}
		links = append(links, link)
	}
	if len(links) == 0 {
		return path.Path{}, serrors.New("path has no links")
	}
	return path.New(links...), nil
}
