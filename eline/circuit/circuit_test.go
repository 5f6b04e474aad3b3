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

package circuit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
)

// fixture is a four switch diamond: s1 and s3 are the endpoint switches,
// connected via s2 (primary) and s4 (backup).
type fixture struct {
	topo    *topology.Topology
	uniA    topology.UNI
	uniZ    topology.UNI
	primary path.Path
	backup  path.Path
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	topo := topology.New()
	f := &fixture{
		topo: topo,
		uniA: topology.UNI{Interface: topo.AddInterface("s1", 1), Tag: 100},
		uniZ: topology.UNI{Interface: topo.AddInterface("s3", 1), Tag: 200},
	}
	mk := func(id, sa string, pa int, sb string, pb int) *topology.Link {
		l := topology.NewLink(id,
			topo.AddInterface(sa, pa), topo.AddInterface(sb, pb))
		require.NoError(t, topo.AddLink(l))
		l.SetStatus(topology.StatusUp)
		return l
	}
	f.primary = path.New(
		mk("p1", "s1", 2, "s2", 2),
		mk("p2", "s2", 3, "s3", 2),
	)
	f.backup = path.New(
		mk("b1", "s1", 3, "s4", 2),
		mk("b2", "s4", 3, "s3", 3),
	)
	return f
}

func TestNewValidation(t *testing.T) {
	f := newFixture(t)

	testCases := map[string]struct {
		params    circuit.Params
		assertErr assert.ErrorAssertionFunc
	}{
		"valid dynamic": {
			params: circuit.Params{
				Name: "c", UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true,
			},
			assertErr: assert.NoError,
		},
		"valid with primary": {
			params: circuit.Params{
				Name: "c", UNIA: f.uniA, UNIZ: f.uniZ, PrimaryPath: f.primary,
			},
			assertErr: assert.NoError,
		},
		"missing name": {
			params:    circuit.Params{UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true},
			assertErr: assert.Error,
		},
		"missing uni_a": {
			params:    circuit.Params{Name: "c", UNIZ: f.uniZ, DynamicBackupPath: true},
			assertErr: assert.Error,
		},
		"missing uni_z": {
			params:    circuit.Params{Name: "c", UNIA: f.uniA, DynamicBackupPath: true},
			assertErr: assert.Error,
		},
		"no primary and not dynamic": {
			params:    circuit.Params{Name: "c", UNIA: f.uniA, UNIZ: f.uniZ},
			assertErr: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			c, err := circuit.New(tc.params)
			tc.assertErr(t, err)
			if err == nil {
				assert.Len(t, c.ID, circuit.IDLength)
				c.Archive()
			}
		})
	}
}

func TestNewReservesClientTags(t *testing.T) {
	f := newFixture(t)
	c, err := circuit.New(circuit.Params{
		Name: "c", UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true,
	})
	require.NoError(t, err)

	assert.False(t, f.uniA.Interface.IsTagAvailable(100))
	assert.False(t, f.uniZ.Interface.IsTagAvailable(200))

	// A second circuit on the same tags must be rejected, and must not leave
	// a half reservation behind when only the second UNI conflicts.
	_, err = circuit.New(circuit.Params{
		Name: "dup", UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true,
	})
	assert.Error(t, err)
	freshA := topology.UNI{Interface: f.topo.AddInterface("s5", 1), Tag: 300}
	_, err = circuit.New(circuit.Params{
		Name: "half", UNIA: freshA, UNIZ: f.uniZ, DynamicBackupPath: true,
	})
	assert.Error(t, err)
	assert.True(t, freshA.Interface.IsTagAvailable(300))

	c.Archive()
	assert.True(t, f.uniA.Interface.IsTagAvailable(100))
	assert.True(t, f.uniZ.Interface.IsTagAvailable(200))
}

func TestPathPredicates(t *testing.T) {
	f := newFixture(t)
	c, err := circuit.New(circuit.Params{
		Name:        "c",
		UNIA:        f.uniA,
		UNIZ:        f.uniZ,
		PrimaryPath: f.primary,
		BackupPath:  f.backup,
	})
	require.NoError(t, err)

	assert.False(t, c.IsUsingPrimaryPath())
	assert.False(t, c.IsUsingBackupPath())
	assert.False(t, c.IsUsingDynamicPath())

	c.SetCurrentPath(f.primary)
	assert.True(t, c.IsUsingPrimaryPath())
	assert.False(t, c.IsUsingBackupPath())

	c.SetCurrentPath(f.backup)
	assert.False(t, c.IsUsingPrimaryPath())
	assert.True(t, c.IsUsingBackupPath())

	dynamic := path.New(f.backup.Links[0], f.backup.Links[1])
	c.SetCurrentPath(dynamic)
	// Same links as the backup path, so still the backup path.
	assert.True(t, c.IsUsingBackupPath())
	assert.False(t, c.IsUsingDynamicPath())

	assert.True(t, c.IsPrimaryAffectedByLink(f.primary.Links[0]))
	assert.False(t, c.IsPrimaryAffectedByLink(f.backup.Links[0]))
	assert.True(t, c.IsAffectedByLink(f.backup.Links[1]))
}

func TestIsUsingDynamicPath(t *testing.T) {
	f := newFixture(t)
	c, err := circuit.New(circuit.Params{
		Name: "c", UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true,
	})
	require.NoError(t, err)

	c.SetCurrentPath(f.backup)
	assert.True(t, c.IsUsingDynamicPath())

	f.backup.Links[0].SetStatus(topology.StatusDown)
	assert.False(t, c.IsUsingDynamicPath())
}

func TestIsEligibleForFailoverPath(t *testing.T) {
	f := newFixture(t)

	dynamic, err := circuit.New(circuit.Params{
		Name: "dyn", UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true,
	})
	require.NoError(t, err)
	assert.True(t, dynamic.IsEligibleForFailoverPath())
	dynamic.Archive()

	static, err := circuit.New(circuit.Params{
		Name:              "static",
		UNIA:              f.uniA,
		UNIZ:              f.uniZ,
		PrimaryPath:       f.primary,
		DynamicBackupPath: true,
	})
	require.NoError(t, err)
	assert.False(t, static.IsEligibleForFailoverPath())
}

func TestIsIntraSwitch(t *testing.T) {
	topo := topology.New()
	c, err := circuit.New(circuit.Params{
		Name: "local",
		UNIA: topology.UNI{Interface: topo.AddInterface("s1", 1)},
		UNIZ: topology.UNI{Interface: topo.AddInterface("s1", 2)},
	})
	require.NoError(t, err)
	assert.True(t, c.IsIntraSwitch())

	f := newFixture(t)
	c2, err := circuit.New(circuit.Params{
		Name: "remote", UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true,
	})
	require.NoError(t, err)
	assert.False(t, c2.IsIntraSwitch())
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	c, err := circuit.New(circuit.Params{
		Name: "c", UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true,
	})
	require.NoError(t, err)

	name := "renamed"
	redeploy, err := c.Update(circuit.Patch{Name: &name})
	require.NoError(t, err)
	assert.False(t, redeploy)
	assert.Equal(t, "renamed", c.Name)

	redeploy, err = c.Update(circuit.Patch{PrimaryPath: &f.primary})
	require.NoError(t, err)
	assert.True(t, redeploy)
	assert.True(t, c.PrimaryPath().Equal(f.primary))

	// Changing a UNI swaps the tag reservation.
	newA := topology.UNI{Interface: f.uniA.Interface, Tag: 150}
	redeploy, err = c.Update(circuit.Patch{UNIA: &newA})
	require.NoError(t, err)
	assert.True(t, redeploy)
	assert.True(t, f.uniA.Interface.IsTagAvailable(100))
	assert.False(t, f.uniA.Interface.IsTagAvailable(150))

	// A taken tag is rejected and nothing changes.
	require.NoError(t, f.uniA.Interface.UseTag(42))
	taken := topology.UNI{Interface: f.uniA.Interface, Tag: 42}
	_, err = c.Update(circuit.Patch{UNIA: &taken})
	assert.Error(t, err)
	assert.True(t, c.UNIA().Equal(newA))

	// Dropping both the primary path and dynamic discovery is invalid.
	empty := path.Path{}
	no := false
	_, err = c.Update(circuit.Patch{PrimaryPath: &empty, DynamicBackupPath: &no})
	assert.Error(t, err)

	c.Archive()
	_, err = c.Update(circuit.Patch{Name: &name})
	assert.Error(t, err)
}

func TestUpdateRejectsInvalidPath(t *testing.T) {
	f := newFixture(t)
	c, err := circuit.New(circuit.Params{
		Name: "c", UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true,
	})
	require.NoError(t, err)

	// A single backup link does not connect s1 to s3.
	broken := path.New(f.backup.Links[0])
	_, err = c.Update(circuit.Patch{BackupPath: &broken})
	assert.ErrorIs(t, err, path.ErrInvalidPath)
}

func TestRegistryByPriority(t *testing.T) {
	f := newFixture(t)
	reg := circuit.NewRegistry()
	base := time.Now()

	mk := func(name string, level int, created time.Time) *circuit.EVC {
		c, err := circuit.New(circuit.Params{
			Name:              name,
			UNIA:              topology.UNI{Interface: f.uniA.Interface},
			UNIZ:              topology.UNI{Interface: f.uniZ.Interface},
			ServiceLevel:      level,
			DynamicBackupPath: true,
			CreationTime:      created,
		})
		require.NoError(t, err)
		reg.Add(c)
		return c
	}
	mk("gold", 7, base.Add(3*time.Second))
	mk("bronze", 1, base)
	older := mk("silver-old", 4, base.Add(time.Second))
	mk("silver-new", 4, base.Add(2*time.Second))
	archived := mk("gone", 9, base)
	archived.Archive()

	var names []string
	for _, c := range reg.ByPriority() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"gold", "silver-old", "silver-new", "bronze"}, names)
	assert.Same(t, older, reg.Get(older.ID))
	assert.Nil(t, reg.Get("missing"))
	assert.Len(t, reg.All(), 4)
}

func TestRecordRoundTrip(t *testing.T) {
	f := newFixture(t)
	queue := 5
	require.NoError(t, f.primary.ChooseVLANs())
	c, err := circuit.New(circuit.Params{
		ID:           "00000000000abc",
		Name:         "round",
		UNIA:         f.uniA,
		UNIZ:         f.uniZ,
		Bandwidth:    1000,
		QueueID:      &queue,
		Priority:     111,
		ServiceLevel: 3,
		PrimaryPath:  f.primary,
		BackupPath:   f.backup,
		CurrentPath:  f.primary,
		Enabled:      true,
		Active:       true,
		Owner:        "noc",
		Metadata:     map[string]any{"site": "pop-1"},
	})
	require.NoError(t, err)

	rec := c.Record()
	assert.Equal(t, "00000000000abc", rec.ID)
	assert.Equal(t, circuit.UNIRecord{Switch: "s1", Port: 1, Tag: 100}, rec.UNIA)
	assert.Equal(t, []string{"p1", "p2"}, rec.PrimaryPath.Links)
	assert.Equal(t, f.primary.SVlan, rec.CurrentPath.SVlan)

	// Restore into a fresh topology carrying the same links.
	g := newFixture(t)
	restored, err := circuit.FromRecord(rec, g.topo)
	require.NoError(t, err)
	assert.Equal(t, c.ID, restored.ID)
	assert.Equal(t, c.Name, restored.Name)
	assert.True(t, restored.IsEnabled())
	assert.True(t, restored.IsActive())
	assert.Equal(t, 111, restored.Priority())
	require.NotNil(t, restored.QueueID())
	assert.Equal(t, 5, *restored.QueueID())
	assert.Equal(t, []string{"p1", "p2"}, restored.PrimaryPath().LinkIDs())
	assert.Equal(t, f.primary.SVlan, restored.CurrentPath().SVlan)
	// The restored service tag is re-reserved on the links.
	assert.False(t, g.topo.Link("p1").IsTagAvailable(f.primary.SVlan))

	rec.CurrentPath.Links = []string{"nonexistent"}
	_, err = circuit.FromRecord(rec, topology.New())
	assert.Error(t, err)
}

func TestSharesUNI(t *testing.T) {
	f := newFixture(t)
	a, err := circuit.New(circuit.Params{
		Name: "a", UNIA: f.uniA, UNIZ: f.uniZ, DynamicBackupPath: true,
	})
	require.NoError(t, err)
	b, err := circuit.New(circuit.Params{
		Name:              "b",
		UNIA:              topology.UNI{Interface: f.uniA.Interface, Tag: 101},
		UNIZ:              topology.UNI{Interface: f.uniZ.Interface, Tag: 201},
		DynamicBackupPath: true,
	})
	require.NoError(t, err)
	same, err := circuit.New(circuit.Params{
		Name: "same", UNIA: f.uniZ, UNIZ: f.uniA, DynamicBackupPath: true,
		Archived: true,
	})
	require.NoError(t, err)

	assert.False(t, a.SharesUNI(b))
	assert.True(t, a.SharesUNI(same))
}

func TestGraceWindows(t *testing.T) {
	f := newFixture(t)
	c, err := circuit.New(circuit.Params{
		Name:              "c",
		UNIA:              f.uniA,
		UNIZ:              f.uniZ,
		UpdatedAt:         time.Now().Add(-time.Hour),
		DynamicBackupPath: true,
	})
	require.NoError(t, err)

	assert.False(t, c.IsRecentUpdated(time.Minute))
	c.Touch()
	assert.True(t, c.IsRecentUpdated(time.Minute))

	assert.False(t, c.HasRecentRemovedFlow(time.Minute))
	c.SetFlowRemovedAt()
	assert.True(t, c.HasRecentRemovedFlow(time.Minute))
}
