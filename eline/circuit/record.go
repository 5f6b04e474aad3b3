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
	"time"

	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// UNIRecord is the persisted form of a UNI.
type UNIRecord struct {
	Switch string `json:"switch"`
	Port   int    `json:"port"`
	Tag    int    `json:"tag,omitempty"`
}

// PathRecord is the persisted form of a path: the link ids in order plus the
// allocated service tag.
type PathRecord struct {
	Links []string `json:"links,omitempty"`
	SVlan int      `json:"s_vlan,omitempty"`
}

// Record is the persisted form of an EVC.
type Record struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	UNIA                 UNIRecord      `json:"uni_a"`
	UNIZ                 UNIRecord      `json:"uni_z"`
	Bandwidth            int            `json:"bandwidth,omitempty"`
	QueueID              *int           `json:"queue_id,omitempty"`
	Priority             int            `json:"sb_priority,omitempty"`
	ServiceLevel         int            `json:"service_level,omitempty"`
	PrimaryPath          PathRecord     `json:"primary_path"`
	BackupPath           PathRecord     `json:"backup_path"`
	CurrentPath          PathRecord     `json:"current_path"`
	FailoverPath         PathRecord     `json:"failover_path"`
	DynamicBackupPath    bool           `json:"dynamic_backup_path"`
	PrimaryConstraints   map[string]any `json:"primary_constraints,omitempty"`
	SecondaryConstraints map[string]any `json:"secondary_constraints,omitempty"`
	Enabled              bool           `json:"enabled"`
	Active               bool           `json:"active"`
	Archived             bool           `json:"archived"`
	Owner                string         `json:"owner,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	CreationTime         time.Time      `json:"creation_time"`
	UpdatedAt            time.Time      `json:"updated_at"`
	RequestTime          time.Time      `json:"request_time"`
	FlowRemovedAt        *time.Time     `json:"flow_removed_at,omitempty"`
}

func uniRecord(u topology.UNI) UNIRecord {
	return UNIRecord{Switch: u.Interface.Switch.ID, Port: u.Interface.Port, Tag: u.Tag}
}

func pathRecord(p path.Path) PathRecord {
	return PathRecord{Links: p.LinkIDs(), SVlan: p.SVlan}
}

// Record returns the persisted form of the circuit.
func (c *EVC) Record() Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec := Record{
		ID:                   c.ID,
		Name:                 c.Name,
		UNIA:                 uniRecord(c.uniA),
		UNIZ:                 uniRecord(c.uniZ),
		Bandwidth:            c.bandwidth,
		QueueID:              c.queueID,
		Priority:             c.priority,
		ServiceLevel:         c.serviceLevel,
		PrimaryPath:          pathRecord(c.primaryPath),
		BackupPath:           pathRecord(c.backupPath),
		CurrentPath:          pathRecord(c.currentPath),
		FailoverPath:         pathRecord(c.failoverPath),
		DynamicBackupPath:    c.dynamicBackupPath,
		PrimaryConstraints:   c.primaryConstraints,
		SecondaryConstraints: c.secondaryConstraints,
		Enabled:              c.enabled,
		Active:               c.active,
		Archived:             c.archived,
		Owner:                c.Owner,
		Metadata:             c.metadata,
		CreationTime:         c.CreationTime,
		UpdatedAt:            c.updatedAt,
		RequestTime:          c.RequestTime,
	}
	if !c.flowRemovedAt.IsZero() {
		t := c.flowRemovedAt
		rec.FlowRemovedAt = &t
	}
	return rec
}

// ResolvePath rebuilds a path from its record against the topology. Links
// with an allocated service tag are re-reserved; a tag that is already
// reserved is assumed to be this path's own allocation restored earlier.
func ResolvePath(rec PathRecord, topo *topology.Topology) (path.Path, error) {
	if len(rec.Links) == 0 {
		return path.Path{}, nil
	}
	links := make([]*topology.Link, 0, len(rec.Links))
	for _, id := range rec.Links {
		link := topo.Link(id)
		if link == nil {
			return path.Path{}, serrors.New("unknown link in stored path", "link", id)
		}
		links = append(links, link)
	}
	p := path.Path{Links: links, SVlan: rec.SVlan}
	if rec.SVlan != 0 {
		for _, link := range links {
			_ = link.UseTag(rec.SVlan)
		}
	}
	return p, nil
}

// FromRecord rebuilds an EVC from its persisted form, resolving link and
// interface references against the topology. Client tags on the UNIs are
// re-reserved.
func FromRecord(rec Record, topo *topology.Topology) (*EVC, error) {
	uniA := topology.UNI{
		Interface: topo.AddInterface(rec.UNIA.Switch, rec.UNIA.Port),
		Tag:       rec.UNIA.Tag,
	}
	uniZ := topology.UNI{
		Interface: topo.AddInterface(rec.UNIZ.Switch, rec.UNIZ.Port),
		Tag:       rec.UNIZ.Tag,
	}
	primary, err := ResolvePath(rec.PrimaryPath, topo)
	if err != nil {
		return nil, serrors.Wrap("resolving primary path", err, "evc_id", rec.ID)
	}
	backup, err := ResolvePath(rec.BackupPath, topo)
	if err != nil {
		return nil, serrors.Wrap("resolving backup path", err, "evc_id", rec.ID)
	}
	current, err := ResolvePath(rec.CurrentPath, topo)
	if err != nil {
		return nil, serrors.Wrap("resolving current path", err, "evc_id", rec.ID)
	}
	failover, err := ResolvePath(rec.FailoverPath, topo)
	if err != nil {
		return nil, serrors.Wrap("resolving failover path", err, "evc_id", rec.ID)
	}

	var flowRemoved time.Time
	if rec.FlowRemovedAt != nil {
		flowRemoved = *rec.FlowRemovedAt
	}
	evc, err := New(Params{
		ID:                   rec.ID,
		Name:                 rec.Name,
		UNIA:                 uniA,
		UNIZ:                 uniZ,
		Bandwidth:            rec.Bandwidth,
		QueueID:              rec.QueueID,
		Priority:             rec.Priority,
		ServiceLevel:         rec.ServiceLevel,
		PrimaryPath:          primary,
		BackupPath:           backup,
		CurrentPath:          current,
		FailoverPath:         failover,
		DynamicBackupPath:    rec.DynamicBackupPath,
		PrimaryConstraints:   rec.PrimaryConstraints,
		SecondaryConstraints: rec.SecondaryConstraints,
		Enabled:              rec.Enabled,
		Active:               rec.Active,
		Archived:             rec.Archived,
		Owner:                rec.Owner,
		Metadata:             rec.Metadata,
		CreationTime:         rec.CreationTime,
		UpdatedAt:            rec.UpdatedAt,
		RequestTime:          rec.RequestTime,
		FlowRemovedAt:        flowRemoved,
	})
	if err != nil {
		return nil, err
	}
	return evc, nil
}
