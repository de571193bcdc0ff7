package dynresource

import (
	"testing"

	"github.com/shoenig/test/must"

	"github.com/nodetracker/nts/structs"
)

func TestTable_LookupMiss(t *testing.T) {
	tbl := New()
	_, ok := tbl.Lookup(structs.NodeId{Host: "n1", Port: 1})
	must.False(t, ok)
}

func TestTable_UpdateThenLookup(t *testing.T) {
	tbl := New()
	id := structs.NodeId{Host: "n1", Port: 1}
	err := tbl.Update(map[string]Entry{id.String(): {MemoryMB: 4096, VCores: 4}})
	must.NoError(t, err)

	entry, ok := tbl.Lookup(id)
	must.True(t, ok)
	must.Eq(t, int64(4096), entry.MemoryMB)
	must.Eq(t, int32(4), entry.VCores)
}

func TestTable_UpdateReplacesWholeSnapshot(t *testing.T) {
	tbl := New()
	idA := structs.NodeId{Host: "a", Port: 1}
	idB := structs.NodeId{Host: "b", Port: 1}

	must.NoError(t, tbl.Update(map[string]Entry{idA.String(): {MemoryMB: 1, VCores: 1}}))
	must.Eq(t, 1, tbl.Size())

	must.NoError(t, tbl.Update(map[string]Entry{idB.String(): {MemoryMB: 2, VCores: 2}}))
	must.Eq(t, 1, tbl.Size())

	_, ok := tbl.Lookup(idA)
	must.False(t, ok)
	_, ok = tbl.Lookup(idB)
	must.True(t, ok)
}

func TestTable_Update_DeepCopiesInput(t *testing.T) {
	tbl := New()
	id := structs.NodeId{Host: "n1", Port: 1}
	src := map[string]Entry{id.String(): {MemoryMB: 10, VCores: 1}}

	must.NoError(t, tbl.Update(src))
	src[id.String()] = Entry{MemoryMB: 9999, VCores: 99}

	entry, ok := tbl.Lookup(id)
	must.True(t, ok)
	must.Eq(t, int64(10), entry.MemoryMB)
}
