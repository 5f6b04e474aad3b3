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

package mgmtapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/private/serrors"
)

type tagDTO struct {
	TagType string `json:"tag_type,omitempty"`
	Value   int    `json:"value"`
}

type uniDTO struct {
	InterfaceID string  `json:"interface_id"`
	Tag         *tagDTO `json:"tag,omitempty"`
}

// circuitRequest is the creation and patch payload. For a patch, absent
// fields are left unchanged; queue_id distinguishes absent from an explicit
// null, which clears the queue.
type circuitRequest struct {
	Name                 *string         `json:"name,omitempty"`
	UNIA                 *uniDTO         `json:"uni_a,omitempty"`
	UNIZ                 *uniDTO         `json:"uni_z,omitempty"`
	Enabled              *bool           `json:"enabled,omitempty"`
	DynamicBackupPath    *bool           `json:"dynamic_backup_path,omitempty"`
	PrimaryPath          []string        `json:"primary_path,omitempty"`
	BackupPath           []string        `json:"backup_path,omitempty"`
	Bandwidth            *int            `json:"bandwidth,omitempty"`
	QueueID              json.RawMessage `json:"queue_id,omitempty"`
	SBPriority           *int            `json:"sb_priority,omitempty"`
	ServiceLevel         *int            `json:"service_level,omitempty"`
	PrimaryConstraints   map[string]any  `json:"primary_constraints,omitempty"`
	SecondaryConstraints map[string]any  `json:"secondary_constraints,omitempty"`
	Metadata             map[string]any  `json:"metadata,omitempty"`
	Owner                string          `json:"owner,omitempty"`
}

// parseInterfaceID splits "switch:port". The switch id may itself contain
// colons; the port is everything after the last one.
func parseInterfaceID(id string) (string, int, error) {
	i := strings.LastIndex(id, ":")
	if i <= 0 || i == len(id)-1 {
		return "", 0, serrors.New("invalid interface id", "interface_id", id)
	}
	port, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, serrors.New("invalid interface port", "interface_id", id)
	}
	return id[:i], port, nil
}

// resolveUNI resolves a UNI payload against the topology, registering the
// interface as needed.
func resolveUNI(dto *uniDTO, topo *topology.Topology) (topology.UNI, error) {
	sw, port, err := parseInterfaceID(dto.InterfaceID)
	if err != nil {
		return topology.UNI{}, err
	}
	uni := topology.UNI{Interface: topo.AddInterface(sw, port)}
	if dto.Tag != nil {
		uni.Tag = dto.Tag.Value
	}
	return uni, nil
}

// resolvePath resolves a list of link ids against the topology.
func resolvePath(ids []string, topo *topology.Topology) (path.Path, error) {
	links := make([]*topology.Link, 0, len(ids))
	for _, id := range ids {
		link := topo.Link(id)
		if link == nil {
			return path.Path{}, serrors.New("unknown link", "link", id)
		}
		links = append(links, link)
	}
	return path.New(links...), nil
}

// parseQueueID interprets the tri-state queue_id field: (absent, set, nil)
// becomes (nil, &value, &nil).
func parseQueueID(raw json.RawMessage) (**int, error) {
	if raw == nil {
		return nil, nil
	}
	if string(raw) == "null" {
		var cleared *int
		return &cleared, nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, serrors.Wrap("parsing queue_id", err)
	}
	p := &v
	return &p, nil
}

func (req *circuitRequest) toParams(topo *topology.Topology) (circuit.Params, error) {
	var p circuit.Params
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.UNIA == nil || req.UNIZ == nil {
		return p, serrors.New("uni_a and uni_z are required")
	}
	uniA, err := resolveUNI(req.UNIA, topo)
	if err != nil {
		return p, serrors.Wrap("parsing uni_a", err)
	}
	uniZ, err := resolveUNI(req.UNIZ, topo)
	if err != nil {
		return p, serrors.Wrap("parsing uni_z", err)
	}
	p.UNIA, p.UNIZ = uniA, uniZ
	if p.PrimaryPath, err = resolvePath(req.PrimaryPath, topo); err != nil {
		return p, serrors.Wrap("parsing primary_path", err)
	}
	if p.BackupPath, err = resolvePath(req.BackupPath, topo); err != nil {
		return p, serrors.Wrap("parsing backup_path", err)
	}
	if req.Enabled != nil {
		p.Enabled = *req.Enabled
	}
	if req.DynamicBackupPath != nil {
		p.DynamicBackupPath = *req.DynamicBackupPath
	}
	if req.Bandwidth != nil {
		p.Bandwidth = *req.Bandwidth
	}
	queueID, err := parseQueueID(req.QueueID)
	if err != nil {
		return p, err
	}
	if queueID != nil {
		p.QueueID = *queueID
	}
	if req.SBPriority != nil {
		p.Priority = *req.SBPriority
	}
	if req.ServiceLevel != nil {
		p.ServiceLevel = *req.ServiceLevel
	}
	p.PrimaryConstraints = req.PrimaryConstraints
	p.SecondaryConstraints = req.SecondaryConstraints
	p.Metadata = req.Metadata
	p.Owner = req.Owner
	return p, nil
}

func (req *circuitRequest) toPatch(topo *topology.Topology) (circuit.Patch, error) {
	var patch circuit.Patch
	patch.Name = req.Name
	if req.UNIA != nil {
		uni, err := resolveUNI(req.UNIA, topo)
		if err != nil {
			return patch, serrors.Wrap("parsing uni_a", err)
		}
		patch.UNIA = &uni
	}
	if req.UNIZ != nil {
		uni, err := resolveUNI(req.UNIZ, topo)
		if err != nil {
			return patch, serrors.Wrap("parsing uni_z", err)
		}
		patch.UNIZ = &uni
	}
	if req.PrimaryPath != nil {
		p, err := resolvePath(req.PrimaryPath, topo)
		if err != nil {
			return patch, serrors.Wrap("parsing primary_path", err)
		}
		patch.PrimaryPath = &p
	}
	if req.BackupPath != nil {
		p, err := resolvePath(req.BackupPath, topo)
		if err != nil {
			return patch, serrors.Wrap("parsing backup_path", err)
		}
		patch.BackupPath = &p
	}
	patch.Bandwidth = req.Bandwidth
	queueID, err := parseQueueID(req.QueueID)
	if err != nil {
		return patch, err
	}
	patch.QueueID = queueID
	patch.Priority = req.SBPriority
	patch.ServiceLevel = req.ServiceLevel
	patch.DynamicBackupPath = req.DynamicBackupPath
	patch.PrimaryConstraints = req.PrimaryConstraints
	patch.SecondaryConstraints = req.SecondaryConstraints
	patch.Enabled = req.Enabled
	patch.Metadata = req.Metadata
	return patch, nil
}

type interfaceDTO struct {
	Switch string `json:"switch"`
	Port   int    `json:"port"`
}

type linkRequest struct {
	ID            string       `json:"id"`
	EndpointA     interfaceDTO `json:"endpoint_a"`
	EndpointB     interfaceDTO `json:"endpoint_b"`
	TagRangeFirst int          `json:"tag_range_first,omitempty"`
	TagRangeLast  int          `json:"tag_range_last,omitempty"`
}

type linkResponse struct {
	ID        string       `json:"id"`
	EndpointA interfaceDTO `json:"endpoint_a"`
	EndpointB interfaceDTO `json:"endpoint_b"`
	Status    string       `json:"status"`
}

type linkStatusRequest struct {
	Status string `json:"status"`
}

type flowRemovedRequest struct {
	Cookie uint64 `json:"cookie"`
}
