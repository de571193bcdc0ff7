// Package registry implements the Node Registry (§4.1): the authoritative
// concurrent mapping from NodeId to NodeRecord. Storage is
// github.com/hashicorp/go-memdb, the same MVCC in-memory store the teacher
// uses for its own state store (see
// _examples/hashicorp-nomad/nomad/state/state_changes.go, which wraps
// memdb.MemDB with change tracking). memdb gives readers (heartbeat lookup,
// enumeration) a snapshot that never blocks a concurrent writer, matching
// §4.1's requirement exactly; a striped per-NodeId mutex layered on top
// gives handlers the "brief exclusive mutation" critical section §5
// describes, since memdb's single global write transaction is not by
// itself enough to express the handler-level reconnect logic in §4.3.
package registry

import (
	"sync"

	"github.com/hashicorp/go-memdb"

	"github.com/nodetracker/nts/structs"
)

const tableNodes = "nodes"

// entry is the memdb storage shape; memdb indexes need named string fields.
type entry struct {
	IDStr  string
	Record *structs.NodeRecord
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableNodes: {
				Name: tableNodes,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "IDStr"},
					},
				},
			},
		},
	}
}

// Registry is the Node Registry. Zero value is not usable; use New.
type Registry struct {
	db *memdb.MemDB

	// locks stripes per-NodeId critical sections. A handler holds the
	// lock for one NodeId for the duration of its read-modify-write; two
	// handlers for different NodeIds never contend (§5).
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New constructs an empty Registry.
func New() (*Registry, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}
	return &Registry{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (r *Registry) lockFor(id structs.NodeId) *sync.Mutex {
	key := id.String()
	r.locksMu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	r.locksMu.Unlock()
	return l
}

// Get returns a snapshot copy of the record for id, or nil if absent. It
// never blocks on another NodeId's mutation.
func (r *Registry) Get(id structs.NodeId) *structs.NodeRecord {
	txn := r.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tableNodes, "id", id.String())
	if err != nil || raw == nil {
		return nil
	}
	return raw.(*entry).Record.Clone()
}

// List returns a snapshot of every record currently registered. No
// iteration order is guaranteed (§4.1).
func (r *Registry) List() []*structs.NodeRecord {
	txn := r.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableNodes, "id")
	if err != nil {
		return nil
	}
	var out []*structs.NodeRecord
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, raw.(*entry).Record.Clone())
	}
	return out
}

// WithRecord runs fn for id under id's per-record critical section. fn is
// handed the current record (nil if absent) and returns the record to
// store (nil to delete, unchanged pointer to leave as-is). This is the only
// way handler code is allowed to mutate the registry, per §4.1's
// "read-modify-write within a record takes the record's own short-lived
// lock."
func (r *Registry) WithRecord(id structs.NodeId, fn func(current *structs.NodeRecord) (next *structs.NodeRecord, err error)) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	txn := r.db.Txn(false)
	raw, err := txn.First(tableNodes, "id", id.String())
	txn.Abort()
	if err != nil {
		return err
	}

	var current *structs.NodeRecord
	if raw != nil {
		current = raw.(*entry).Record
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	wtxn := r.db.Txn(true)
	defer wtxn.Abort()
	if next == nil {
		if current != nil {
			if err := wtxn.Delete(tableNodes, &entry{IDStr: id.String()}); err != nil {
				return err
			}
		}
	} else {
		if err := wtxn.Insert(tableNodes, &entry{IDStr: id.String(), Record: next}); err != nil {
			return err
		}
	}
	wtxn.Commit()
	return nil
}

// PutIfAbsent inserts record only if no record currently exists for its
// ID, reporting whether the insert happened (true) or an existing record
// was left untouched (false, with the existing record returned).
func (r *Registry) PutIfAbsent(record *structs.NodeRecord) (inserted bool, existing *structs.NodeRecord) {
	lock := r.lockFor(record.ID)
	lock.Lock()
	defer lock.Unlock()

	txn := r.db.Txn(false)
	raw, _ := txn.First(tableNodes, "id", record.ID.String())
	txn.Abort()
	if raw != nil {
		return false, raw.(*entry).Record.Clone()
	}

	wtxn := r.db.Txn(true)
	defer wtxn.Abort()
	_ = wtxn.Insert(tableNodes, &entry{IDStr: record.ID.String(), Record: record})
	wtxn.Commit()
	return true, nil
}

// Delete removes the record for id unconditionally. It is a no-op if
// absent (§4.10 unregister idempotence).
func (r *Registry) Delete(id structs.NodeId) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	wtxn := r.db.Txn(true)
	defer wtxn.Abort()
	_ = wtxn.Delete(tableNodes, &entry{IDStr: id.String()})
	wtxn.Commit()
}
