// Package dynresource implements the Dynamic Resource Table (§4.6): a
// copy-on-write snapshot of per-node capacity overrides, reloadable by an
// admin Update call under a write guard, looked up read-only by Register
// and every Heartbeat.
package dynresource

import (
	"sync/atomic"

	"github.com/mitchellh/copystructure"

	"github.com/nodetracker/nts/structs"
)

// Entry is one row of the table (§3's DynamicResourceEntry, minus NodeId
// which is the map key here).
type Entry struct {
	MemoryMB int64
	VCores   int32
}

// Table is the Dynamic Resource Table. Zero value has an empty snapshot
// installed and is immediately usable.
type Table struct {
	snapshot atomic.Pointer[map[string]Entry]
}

// New returns an empty, ready Table.
func New() *Table {
	t := &Table{}
	empty := make(map[string]Entry)
	t.snapshot.Store(&empty)
	return t
}

// Lookup is the read-only path consulted by Register (§4.3 step 2) and
// every Heartbeat (§4.4 step 12). It never blocks a concurrent Update.
func (t *Table) Lookup(id structs.NodeId) (Entry, bool) {
	m := *t.snapshot.Load()
	e, ok := m[id.String()]
	return e, ok
}

// Update atomically replaces the whole table. A deep copy is taken first
// (via copystructure, matching the copy-on-write discipline the teacher
// uses for its own mutable config snapshots) so a caller mutating the map
// they passed in after calling Update cannot corrupt a reader's view.
func (t *Table) Update(entries map[string]Entry) error {
	copied, err := copystructure.Copy(entries)
	if err != nil {
		return err
	}
	m := copied.(map[string]Entry)
	t.snapshot.Store(&m)
	return nil
}

// Size reports how many overrides are currently installed.
func (t *Table) Size() int {
	return len(*t.snapshot.Load())
}
