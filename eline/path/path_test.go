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

package path_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-eline/eline/eline/path"
	"github.com/open-eline/eline/eline/topology"
)

// line returns n links forming a chain s0:1 - s1:1, s1:2 - s2:1, ...
func line(n int) []*topology.Link {
	topo := topology.New()
	links := make([]*topology.Link, n)
	for i := 0; i < n; i++ {
		a := topo.AddInterface(swID(i), 2)
		b := topo.AddInterface(swID(i+1), 1)
		links[i] = topology.NewLink(linkID(i), a, b)
	}
	return links
}

func swID(i int) string   { return string(rune('a' + i)) }
func linkID(i int) string { return "l" + string(rune('0'+i)) }

func TestChooseVLANs(t *testing.T) {
	links := line(3)
	p := path.New(links...)
	require.NoError(t, p.ChooseVLANs())
	assert.Equal(t, 2, p.SVlan)
	for _, l := range links {
		assert.False(t, l.IsTagAvailable(2))
	}

	// Allocation is idempotent.
	require.NoError(t, p.ChooseVLANs())
	assert.Equal(t, 2, p.SVlan)

	// The next path over a shared link gets the next tag.
	q := path.New(links[0])
	require.NoError(t, q.ChooseVLANs())
	assert.Equal(t, 3, q.SVlan)
}

func TestChooseVLANsSkipsPartiallyUsedTags(t *testing.T) {
	links := line(3)
	// Tag 2 is taken on the middle link only; the path must skip it
	// everywhere and leave no reservation behind on the other links.
	require.NoError(t, links[1].UseTag(2))

	p := path.New(links...)
	require.NoError(t, p.ChooseVLANs())
	assert.Equal(t, 3, p.SVlan)
	assert.True(t, links[0].IsTagAvailable(2))
	assert.True(t, links[2].IsTagAvailable(2))
}

func TestChooseVLANsExhausted(t *testing.T) {
	a := topology.NewLinkWithTagRange("l0",
		topology.NewInterface(&topology.Switch{ID: "a"}, 1),
		topology.NewInterface(&topology.Switch{ID: "b"}, 1),
		2, 3)
	require.NoError(t, a.UseTag(2))
	require.NoError(t, a.UseTag(3))

	p := path.New(a)
	err := p.ChooseVLANs()
	assert.ErrorIs(t, err, path.ErrNoTagAvailable)
	assert.Zero(t, p.SVlan)
}

func TestMakeVLANsAvailable(t *testing.T) {
	links := line(2)
	p := path.New(links...)
	require.NoError(t, p.ChooseVLANs())
	tag := p.SVlan

	changed := p.MakeVLANsAvailable()
	assert.Equal(t, links, changed)
	assert.Zero(t, p.SVlan)
	for _, l := range links {
		assert.True(t, l.IsTagAvailable(tag))
	}

	// Releasing again is a no-op.
	assert.Nil(t, p.MakeVLANsAvailable())
}

func TestStatus(t *testing.T) {
	links := line(2)
	p := path.New(links...)

	assert.Equal(t, topology.StatusDisabled, path.Path{}.Status())
	assert.Equal(t, topology.StatusDown, p.Status())

	links[0].SetStatus(topology.StatusUp)
	assert.Equal(t, topology.StatusDown, p.Status())
	links[1].SetStatus(topology.StatusUp)
	assert.Equal(t, topology.StatusUp, p.Status())
}

func TestEqual(t *testing.T) {
	links := line(3)
	p := path.New(links...)

	assert.True(t, p.Equal(path.New(links...)))
	assert.False(t, p.Equal(path.New(links[0], links[1])))
	assert.False(t, p.Equal(path.New(links[2], links[1], links[0])))
	assert.True(t, path.Path{}.Equal(path.Path{}))
}

func TestIsValid(t *testing.T) {
	topo := topology.New()
	s1 := topo.AddSwitch("s1")
	s2 := topo.AddSwitch("s2")
	s3 := topo.AddSwitch("s3")
	l1 := topology.NewLink("l1",
		topo.AddInterface("s1", 2), topo.AddInterface("s2", 2))
	// l2 is declared in the opposite orientation; the walk must still
	// accept it.
	l2 := topology.NewLink("l2",
		topo.AddInterface("s3", 3), topo.AddInterface("s2", 3))

	p := path.New(l1, l2)
	assert.NoError(t, p.IsValid(s1, s3))
	assert.NoError(t, path.New(l2, l1).IsValid(s3, s1))

	assert.ErrorIs(t, p.IsValid(s3, s1), path.ErrInvalidPath)
	assert.ErrorIs(t, p.IsValid(s1, s2), path.ErrInvalidPath)
	assert.ErrorIs(t, path.New(l2).IsValid(s1, s2), path.ErrInvalidPath)
	assert.ErrorIs(t, path.Path{}.IsValid(s1, s2), path.ErrInvalidPath)
}

func TestContainsAndShares(t *testing.T) {
	links := line(3)
	other := line(1)
	p := path.New(links[0], links[1])

	assert.True(t, p.ContainsLink(links[0]))
	assert.False(t, p.ContainsLink(links[2]))
	assert.True(t, p.SharesLink(path.New(links[1], links[2])))
	assert.False(t, p.SharesLink(path.New(other...)))

	assert.True(t, p.AffectedByInterface(links[1].EndpointA))
	assert.False(t, p.AffectedByInterface(links[2].EndpointB))
}

func TestSwitches(t *testing.T) {
	links := line(2)
	p := path.New(links...)
	switches := p.Switches()
	require.Len(t, switches, 3)
	ids := make([]string, len(switches))
	for i, sw := range switches {
		ids[i] = sw.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
