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

// Package circuit defines the EVC aggregate root: the configuration and
// runtime state of a point-to-point Ethernet virtual connection.
package circuit

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
	"github.com/open-eline/eline/pkg/private/serrors"
)

// IDLength is the length of a circuit identifier in hex characters. The
// identifier fits in the lower 56 bits of a flow cookie.
const IDLength = 14

// NewID returns a fresh random circuit identifier.
func NewID() string {
	b := make([]byte, IDLength/2)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)[:IDLength]
}

// Params holds the constructor parameters of an EVC.
type Params struct {
	// ID is the circuit identifier. If empty, one is generated.
	ID   string
	Name string
	UNIA topology.UNI
	UNIZ topology.UNI

	Bandwidth int
	// QueueID selects the egress queue for the circuit's flows. Nil means no
	// queue action.
	QueueID *int
	// Priority overrides the default southbound flow priority when non-zero.
	Priority     int
	ServiceLevel int

	PrimaryPath       path.Path
	BackupPath        path.Path
	CurrentPath       path.Path
	FailoverPath      path.Path
	DynamicBackupPath bool

	PrimaryConstraints   map[string]any
	SecondaryConstraints map[string]any

	Enabled  bool
	Active   bool
	Archived bool
	Owner    string
	Metadata map[string]any

	CreationTime  time.Time
	UpdatedAt     time.Time
	RequestTime   time.Time
	FlowRemovedAt time.Time
}

// EVC is a provisioned point-to-point circuit. The administrative flag
// (enabled) carries user intent; the operational flag (active) reflects the
// actual data-plane state. current_path reflects what is programmed in the
// switches, never user intent.
//
// Deploy-triggering operations must hold the circuit guard (Lock/TryLock);
// the entity mutex only protects individual field access.
type EVC struct {
	// ID is stable for the lifetime of the circuit.
	ID           string
	Name         string
	CreationTime time.Time
	RequestTime  time.Time
	Owner        string

	// guard serializes deploy/reconcile operations on this circuit.
	guard sync.Mutex

	mu                   sync.RWMutex
	uniA, uniZ           topology.UNI
	enabled              bool
	active               bool
	archived             bool
	bandwidth            int
	queueID              *int
	priority             int
	serviceLevel         int
	primaryPath          path.Path
	backupPath           path.Path
	currentPath          path.Path
	failoverPath         path.Path
	dynamicBackupPath    bool
	primaryConstraints   map[string]any
	secondaryConstraints map[string]any
	metadata             map[string]any
	updatedAt            time.Time
	flowRemovedAt        time.Time
}

// New validates the parameters and creates an EVC.
func New(p Params) (*EVC, error) {
	if p.Name == "" {
		return nil, serrors.New("name is required")
	}
	if p.UNIA.Interface == nil {
		return nil, serrors.New("uni_a is required")
	}
	if p.UNIZ.Interface == nil {
		return nil, serrors.New("uni_z is required")
	}
	if err := validateHasPrimaryOrDynamic(
		p.PrimaryPath, p.DynamicBackupPath, p.UNIA, p.UNIZ); err != nil {

		return nil, err
	}
	// Archived circuits no longer own their client tags.
	if !p.Archived {
		if err := reserveUNITag(p.UNIA); err != nil {
			return nil, serrors.Wrap("vlan tag is not available on uni_a", err)
		}
		if err := reserveUNITag(p.UNIZ); err != nil {
			releaseUNITag(p.UNIA)
			return nil, serrors.Wrap("vlan tag is not available on uni_z", err)
		}
	}
	id := p.ID
	if id == "" {
		id = NewID()
	}
	if len(id) > IDLength {
		id = id[:IDLength]
	}
	now := time.Now()
	creation := p.CreationTime
	if creation.IsZero() {
		creation = now
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = now
	}
	request := p.RequestTime
	if request.IsZero() {
		request = now
	}
	return &EVC{
		ID:                   id,
		Name:                 p.Name,
		CreationTime:         creation,
		RequestTime:          request,
		Owner:                p.Owner,
		uniA:                 p.UNIA,
		uniZ:                 p.UNIZ,
		enabled:              p.Enabled,
		active:               p.Active,
		archived:             p.Archived,
		bandwidth:            p.Bandwidth,
		queueID:              p.QueueID,
		priority:             p.Priority,
		serviceLevel:         p.ServiceLevel,
		primaryPath:          p.PrimaryPath,
		backupPath:           p.BackupPath,
		currentPath:          p.CurrentPath,
		failoverPath:         p.FailoverPath,
		dynamicBackupPath:    p.DynamicBackupPath,
		primaryConstraints:   p.PrimaryConstraints,
		secondaryConstraints: p.SecondaryConstraints,
		metadata:             p.Metadata,
		updatedAt:            updated,
		flowRemovedAt:        p.FlowRemovedAt,
	}, nil
}

func reserveUNITag(u topology.UNI) error {
	if u.Tag == 0 {
		return nil
	}
	return u.Interface.UseTag(u.Tag)
}

func releaseUNITag(u topology.UNI) {
	if u.Tag != 0 {
		u.Interface.MakeTagAvailable(u.Tag)
	}
}

// A circuit whose endpoints sit on different switches can only ever be
// deployed with a declared primary path or permission to discover one.
func validateHasPrimaryOrDynamic(
	primary path.Path,
	dynamic bool,
	uniA, uniZ topology.UNI,
) error {
	if primary.IsEmpty() && !dynamic &&
		uniA.Interface != nil && uniZ.Interface != nil &&
		uniA.Interface.Switch != uniZ.Interface.Switch {

		return serrors.New("the EVC must have a primary path or allow dynamic paths")
	}
	return nil
}

func (c *EVC) String() string {
	return fmt.Sprintf("EVC(%s, %s)", c.ID, c.Name)
}

// Lock acquires the circuit's deployment guard.
func (c *EVC) Lock() { c.guard.Lock() }

// TryLock attempts to acquire the deployment guard without blocking. The
// reconciliation pass skips circuits it cannot lock.
func (c *EVC) TryLock() bool { return c.guard.TryLock() }

// Unlock releases the deployment guard.
func (c *EVC) Unlock() { c.guard.Unlock() }

// UNIA returns endpoint A.
func (c *EVC) UNIA() topology.UNI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uniA
}

// UNIZ returns endpoint Z.
func (c *EVC) UNIZ() topology.UNI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uniZ
}

// IsEnabled returns the administrative state.
func (c *EVC) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Enable marks the circuit administratively enabled.
func (c *EVC) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
}

// Disable marks the circuit administratively disabled.
func (c *EVC) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

// IsActive returns the operational state.
func (c *EVC) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Activate marks the circuit operationally active.
func (c *EVC) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
}

// Deactivate marks the circuit operationally inactive.
func (c *EVC) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

// IsArchived reports whether the circuit has been archived. Archived is
// terminal: the circuit is excluded from deployment and reconciliation.
func (c *EVC) IsArchived() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.archived
}

// Archive marks the circuit as deleted and releases its client tags.
func (c *EVC) Archive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.archived {
		releaseUNITag(c.uniA)
		releaseUNITag(c.uniZ)
	}
	c.archived = true
}

// Bandwidth returns the provisioned bandwidth.
func (c *EVC) Bandwidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bandwidth
}

// QueueID returns the egress queue for the circuit's flows, or nil.
func (c *EVC) QueueID() *int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queueID
}

// Priority returns the southbound flow priority override, 0 if unset.
func (c *EVC) Priority() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.priority
}

// ServiceLevel returns the circuit's service level. Higher is more
// important.
func (c *EVC) ServiceLevel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serviceLevel
}

// Metadata returns a copy of the circuit's free-form metadata.
func (c *EVC) Metadata() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.metadata == nil {
		return nil
	}
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// MergeMetadata merges the given entries into the circuit metadata,
// overwriting existing keys.
func (c *EVC) MergeMetadata(md map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metadata == nil {
		c.metadata = make(map[string]any, len(md))
	}
	for k, v := range md {
		c.metadata[k] = v
	}
}

// DeleteMetadata removes one metadata key. Unknown keys are ignored.
func (c *EVC) DeleteMetadata(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metadata, key)
}

// DynamicBackupPath reports whether on-demand path discovery is permitted.
func (c *EVC) DynamicBackupPath() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dynamicBackupPath
}

// PrimaryConstraints returns the constraint set passed to path computation
// for primary candidates.
func (c *EVC) PrimaryConstraints() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primaryConstraints
}

// SecondaryConstraints returns the constraint set for secondary candidates.
func (c *EVC) SecondaryConstraints() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.secondaryConstraints
}

// PrimaryPath returns the declared primary path.
func (c *EVC) PrimaryPath() path.Path {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primaryPath
}

// BackupPath returns the declared backup path.
func (c *EVC) BackupPath() path.Path {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backupPath
}

// CurrentPath returns the path currently programmed in the switches.
func (c *EVC) CurrentPath() path.Path {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentPath
}

// SetCurrentPath records the path programmed in the switches.
func (c *EVC) SetCurrentPath(p path.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentPath = p
}

// FailoverPath returns the pre-provisioned protection path, possibly empty.
func (c *EVC) FailoverPath() path.Path {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failoverPath
}

// SetFailoverPath records the pre-provisioned protection path.
func (c *EVC) SetFailoverPath(p path.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failoverPath = p
}

// UpdatedAt returns the time of the last configuration change.
func (c *EVC) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Touch updates the last-update timestamp.
func (c *EVC) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updatedAt = time.Now()
}

// SetFlowRemovedAt records that a flow of this circuit was just removed.
func (c *EVC) SetFlowRemovedAt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flowRemovedAt = time.Now()
}

// FlowRemovedAt returns the time a flow was last removed, zero if never.
func (c *EVC) FlowRemovedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flowRemovedAt
}

// HasRecentRemovedFlow reports whether a flow was removed within the grace
// window.
func (c *EVC) HasRecentRemovedFlow(window time.Duration) bool {
	t := c.FlowRemovedAt()
	return !t.IsZero() && time.Since(t) < window
}

// IsRecentUpdated reports whether the circuit configuration changed within
// the grace window.
func (c *EVC) IsRecentUpdated(window time.Duration) bool {
	return time.Since(c.UpdatedAt()) < window
}

// IsIntraSwitch reports whether both endpoints sit on the same switch.
func (c *EVC) IsIntraSwitch() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uniA.Interface.Switch == c.uniZ.Interface.Switch
}

// SharesUNI reports whether two circuits have an endpoint in common.
func (c *EVC) SharesUNI(other *EVC) bool {
	a, z := c.UNIA(), c.UNIZ()
	oa, oz := other.UNIA(), other.UNIZ()
	return oa.Equal(a) || oa.Equal(z) || oz.Equal(a) || oz.Equal(z)
}

// IsAffectedByLink reports whether the current path uses the given link.
func (c *EVC) IsAffectedByLink(link *topology.Link) bool {
	return c.CurrentPath().ContainsLink(link)
}

// LinkAffectedByInterface reports whether the current path terminates on the
// given interface.
func (c *EVC) LinkAffectedByInterface(intf *topology.Interface) bool {
	return c.CurrentPath().AffectedByInterface(intf)
}

// IsPrimaryAffectedByLink reports whether the primary path uses the link.
func (c *EVC) IsPrimaryAffectedByLink(link *topology.Link) bool {
	return c.PrimaryPath().ContainsLink(link)
}

// IsBackupAffectedByLink reports whether the backup path uses the link.
func (c *EVC) IsBackupAffectedByLink(link *topology.Link) bool {
	return c.BackupPath().ContainsLink(link)
}

// IsFailoverAffectedByLink reports whether the failover path uses the link.
func (c *EVC) IsFailoverAffectedByLink(link *topology.Link) bool {
	return c.FailoverPath().ContainsLink(link)
}

// IsUsingPrimaryPath reports whether the deployed path is the declared
// primary path.
func (c *EVC) IsUsingPrimaryPath() bool {
	p := c.PrimaryPath()
	return !p.IsEmpty() && c.CurrentPath().Equal(p)
}

// IsUsingBackupPath reports whether the deployed path is the declared backup
// path.
func (c *EVC) IsUsingBackupPath() bool {
	p := c.BackupPath()
	return !p.IsEmpty() && c.CurrentPath().Equal(p)
}

// IsUsingDynamicPath reports whether the deployed path is a dynamically
// discovered one that is currently up.
func (c *EVC) IsUsingDynamicPath() bool {
	cur := c.CurrentPath()
	return !cur.IsEmpty() &&
		!c.IsUsingPrimaryPath() &&
		!c.IsUsingBackupPath() &&
		cur.Status() == topology.StatusUp
}

// IsEligibleForFailoverPath reports whether the circuit qualifies for a
// pre-provisioned failover path. Only fully dynamic circuits, with no
// declared primary or backup, carry one.
func (c *EVC) IsEligibleForFailoverPath() bool {
	return c.DynamicBackupPath() &&
		c.PrimaryPath().IsEmpty() && c.BackupPath().IsEmpty()
}
