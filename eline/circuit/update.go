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
	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// Patch describes a partial update of an EVC. Nil fields are left unchanged.
// Identifier, creation time, archival and the runtime paths (current,
// failover) are read-only and deliberately have no patch field.
type Patch struct {
	Name                 *string
	UNIA                 *topology.UNI
	UNIZ                 *topology.UNI
	Bandwidth            *int
	QueueID              **int
	Priority             *int
	ServiceLevel         *int
	PrimaryPath          *path.Path
	BackupPath           *path.Path
	DynamicBackupPath    *bool
	PrimaryConstraints   map[string]any
	SecondaryConstraints map[string]any
	Enabled              *bool
	Metadata             map[string]any
}

// requiresRedeploy lists the attributes whose change invalidates the
// programmed flows.
func (p Patch) requiresRedeploy() bool {
	return p.UNIA != nil || p.UNIZ != nil ||
		p.PrimaryPath != nil || p.BackupPath != nil ||
		p.DynamicBackupPath != nil || p.QueueID != nil ||
		p.Priority != nil ||
		p.PrimaryConstraints != nil || p.SecondaryConstraints != nil
}

// Update validates and applies a patch. It returns whether the change
// requires a redeploy of the circuit. Structurally invalid paths are
// rejected here and never reach the deployment engine.
func (c *EVC) Update(patch Patch) (bool, error) {
	if c.IsArchived() {
		return false, serrors.New("cannot update an archived circuit", "evc_id", c.ID)
	}

	oldA, oldZ := c.UNIA(), c.UNIZ()
	uniA := oldA
	if patch.UNIA != nil && !patch.UNIA.Equal(oldA) {
		uniA = *patch.UNIA
		if !uniA.IsValid() {
			return false, serrors.New("vlan tag is not available on uni_a", "tag", uniA.Tag)
		}
	}
	uniZ := oldZ
	if patch.UNIZ != nil && !patch.UNIZ.Equal(oldZ) {
		uniZ = *patch.UNIZ
		if !uniZ.IsValid() {
			return false, serrors.New("vlan tag is not available on uni_z", "tag", uniZ.Tag)
		}
	}

	primary := c.PrimaryPath()
	if patch.PrimaryPath != nil {
		primary = *patch.PrimaryPath
	}
	dynamic := c.DynamicBackupPath()
	if patch.DynamicBackupPath != nil {
		dynamic = *patch.DynamicBackupPath
	}
	if err := validateHasPrimaryOrDynamic(primary, dynamic, uniA, uniZ); err != nil {
		return false, err
	}
	if patch.PrimaryPath != nil && !patch.PrimaryPath.IsEmpty() {
		if err := patch.PrimaryPath.IsValid(
			uniA.Interface.Switch, uniZ.Interface.Switch); err != nil {

			return false, serrors.Wrap("primary_path is not a valid path", err)
		}
	}
	if patch.BackupPath != nil && !patch.BackupPath.IsEmpty() {
		if err := patch.BackupPath.IsValid(
			uniA.Interface.Switch, uniZ.Interface.Switch); err != nil {

			return false, serrors.Wrap("backup_path is not a valid path", err)
		}
	}

	if !uniA.Equal(oldA) {
		if err := reserveUNITag(uniA); err != nil {
			return false, serrors.Wrap("vlan tag is not available on uni_a", err)
		}
		releaseUNITag(oldA)
	}
	if !uniZ.Equal(oldZ) {
		if err := reserveUNITag(uniZ); err != nil {
			return false, serrors.Wrap("vlan tag is not available on uni_z", err)
		}
		releaseUNITag(oldZ)
	}

	c.mu.Lock()
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	c.uniA, c.uniZ = uniA, uniZ
	if patch.Bandwidth != nil {
		c.bandwidth = *patch.Bandwidth
	}
	if patch.QueueID != nil {
		c.queueID = *patch.QueueID
	}
	if patch.Priority != nil {
		c.priority = *patch.Priority
	}
	if patch.ServiceLevel != nil {
		c.serviceLevel = *patch.ServiceLevel
	}
	if patch.PrimaryPath != nil {
		c.primaryPath = *patch.PrimaryPath
	}
	if patch.BackupPath != nil {
		c.backupPath = *patch.BackupPath
	}
	if patch.DynamicBackupPath != nil {
		c.dynamicBackupPath = *patch.DynamicBackupPath
	}
	if patch.PrimaryConstraints != nil {
		c.primaryConstraints = patch.PrimaryConstraints
	}
	if patch.SecondaryConstraints != nil {
		c.secondaryConstraints = patch.SecondaryConstraints
	}
	if patch.Enabled != nil {
		c.enabled = *patch.Enabled
	}
	if patch.Metadata != nil {
		c.metadata = patch.Metadata
	}
	c.mu.Unlock()
	c.Touch()
	return patch.requiresRedeploy(), nil
}
