package keys

import (
	"sync"

	"github.com/nodetracker/nts/structs"
)

// MemStore is a minimal in-process Store/NMTokenStore used by tests and by
// cmd/ntsd when no external secret manager is configured. Real deployments
// wire NTS to whatever key material service owns rotation; MemStore exists
// so NTS is runnable standalone.
type MemStore struct {
	mu       sync.RWMutex
	current  *structs.MasterKey
	next     *structs.MasterKey
	byID     map[uint32]*structs.MasterKey
	nodeKeys map[structs.NodeId]uint32
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:     make(map[uint32]*structs.MasterKey),
		nodeKeys: make(map[structs.NodeId]uint32),
	}
}

func (m *MemStore) Current() *structs.MasterKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *MemStore) Next() *structs.MasterKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.next
}

func (m *MemStore) Get(keyID uint32) (*structs.MasterKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.byID[keyID]
	return k, ok
}

func (m *MemStore) Put(key *structs.MasterKey) {
	if key == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[key.KeyID] = key
	if m.current == nil {
		m.current = key
	} else {
		m.next = key
	}
}

func (m *MemStore) List() []*structs.MasterKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*structs.MasterKey, 0, len(m.byID))
	for _, k := range m.byID {
		out = append(out, k)
	}
	return out
}

func (m *MemStore) Delete(keyID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, keyID)
	if m.current != nil && m.current.KeyID == keyID {
		m.current = nil
	}
	if m.next != nil && m.next.KeyID == keyID {
		m.next = nil
	}
}

func (m *MemStore) RollVersion() *structs.MasterKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next != nil {
		m.current = m.next
		m.next = nil
	}
	return m.current
}

func (m *MemStore) RemoveNodeKey(nodeID structs.NodeId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodeKeys, nodeID)
}

var (
	_ Store        = (*MemStore)(nil)
	_ NMTokenStore = (*MemStore)(nil)
)
