package rpc

import (
	"context"
	"testing"

	"github.com/kwohlfahrt/ecapnp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCap is a minimal capnp.LocalObject for exercising the exports
// table without needing a real capability implementation. Two
// fakeCaps are distinct LocalObjects whenever their names differ.
type fakeCap struct{ name string }

func (fakeCap) Call(ctx context.Context, interfaceID uint64, methodID uint16, params capnp.Ptr) (capnp.Ptr, error) {
	return capnp.Ptr{}, nil
}

func newConnForTableTest() *Conn {
	return &Conn{
		imports: make(map[ImportID]*impEntry),
	}
}

// TestExportDedup is scenario 5 from spec.md §8: sending the same
// capability twice reuses the same export id and its ref count
// reaches 2, rather than allocating two entries.
func TestExportDedup(t *testing.T) {
	c := newConnForTableTest()
	cap1 := capnp.LocalCapability{Object: fakeCap{name: "a"}}

	id1 := c.exportFor(cap1)
	id2 := c.exportFor(cap1)

	assert.Equal(t, id1, id2)
	require.Len(t, c.exports, 1)
	assert.Equal(t, uint32(2), c.exports[id1].refs)
}

// TestExportRefCountReachesZeroAndIsRemoved checks the invariant from spec.md
// §8: ∀ exports e: e.ref_count ≥ 0; ref_count = 0 ⇔ e ∉ table.
func TestExportRefCountReachesZeroAndIsRemoved(t *testing.T) {
	c := newConnForTableTest()
	cap1 := capnp.LocalCapability{Object: fakeCap{name: "a"}}

	id := c.exportFor(cap1)
	c.exportFor(cap1) // refs: 2

	c.releaseExport(id, 1)
	require.NotNil(t, c.exports[id])
	assert.Equal(t, uint32(1), c.exports[id].refs)

	c.releaseExport(id, 1)
	assert.Nil(t, c.exports[id])
}

// TestExportReleaseMoreThanRefsClampsToZero checks that releasing n
// greater than the current ref count still just removes the entry,
// rather than underflowing.
func TestExportReleaseMoreThanRefsClampsToZero(t *testing.T) {
	c := newConnForTableTest()
	cap1 := capnp.LocalCapability{Object: fakeCap{name: "a"}}
	id := c.exportFor(cap1)

	c.releaseExport(id, 100)
	assert.Nil(t, c.exports[id])
}

// TestExportIDReusedAfterRelease confirms freed export ids are
// recycled rather than growing the table forever.
func TestExportIDReusedAfterRelease(t *testing.T) {
	c := newConnForTableTest()
	cap1 := capnp.LocalCapability{Object: fakeCap{name: "a"}}
	cap2 := capnp.LocalCapability{Object: fakeCap{name: "b"}}

	id1 := c.exportFor(cap1)
	c.releaseExport(id1, 1)
	id2 := c.exportFor(cap2)

	assert.Equal(t, id1, id2)
}

// TestDistinctCapabilitiesGetDistinctExports ensures two different
// capabilities are never merged into one export entry.
func TestDistinctCapabilitiesGetDistinctExports(t *testing.T) {
	c := newConnForTableTest()
	cap1 := capnp.LocalCapability{Object: fakeCap{name: "a"}}
	cap2 := capnp.LocalCapability{Object: fakeCap{name: "b"}}

	id1 := c.exportFor(cap1)
	id2 := c.exportFor(cap2)

	assert.NotEqual(t, id1, id2)
}

func TestImportForDedupsByRemoteID(t *testing.T) {
	c := newConnForTableTest()

	id1 := c.importFor(42)
	id2 := c.importFor(42)

	assert.Equal(t, id1, id2)
	assert.Equal(t, uint32(2), c.imports[id1].refs)
	assert.Equal(t, uint32(42), c.remoteExportID(id1))
}

func TestReleaseImportReturnsRemoteIDAndReleasesAtZero(t *testing.T) {
	c := newConnForTableTest()
	id := c.importFor(7)

	remoteID, release := c.releaseImport(id, 1)
	assert.Equal(t, uint32(7), remoteID)
	assert.True(t, release)
	assert.Nil(t, c.imports[id])
}

func TestReleaseImportPartialDoesNotRelease(t *testing.T) {
	c := newConnForTableTest()
	id := c.importFor(7)
	c.importFor(7) // refs: 2

	_, release := c.releaseImport(id, 1)
	assert.False(t, release)
	require.NotNil(t, c.imports[id])
	assert.Equal(t, uint32(1), c.imports[id].refs)
}

func TestIdgenReusesReleasedIDs(t *testing.T) {
	var g idgen
	a := g.alloc()
	b := g.alloc()
	g.release(a)
	c := g.alloc()
	assert.Equal(t, a, c)
	assert.NotEqual(t, b, c)
}

func TestIdgenGrowsWhenFreeListEmpty(t *testing.T) {
	var g idgen
	a := g.alloc()
	b := g.alloc()
	assert.NotEqual(t, a, b)
}
