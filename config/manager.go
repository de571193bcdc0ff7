// Package config implements the Configuration Manager (§2.9, §5): the
// reader-writer-guarded holder for the hot-swappable NTS settings
// (heartbeat pacing, admission lists, version and allocation floors, label
// mode, toggles). The Dynamic Resource Table is not held here; it lives on
// the Server. Handlers take the reader lock once per request and
// work from a consistent Snapshot; admin update verbs take the writer lock
// briefly, matching §5's "Writes are rare."
package config

import (
	"sync"

	"github.com/nodetracker/nts/admission"
	"github.com/nodetracker/nts/pacing"
	"github.com/nodetracker/nts/structs"
)

// Bootstrap is the process-start configuration (§6): bind address and
// client-thread count belong to the RPC transport, which is out of scope
// per spec.md §1, so Bootstrap only carries the fields NTS itself consults.
type Bootstrap struct {
	MinAllocMB            int64
	MinAllocVCores        int32
	MinVersion            string
	RMVersion             string
	HostResolutionEnabled bool
	TimelineV2Enabled     bool
	LabelMode             structs.LabelConfigMode
	WorkPreservingRecovery bool
	Pacing                pacing.Config
	Lists                 admission.Lists
}

// Snapshot is the consistent, read-only view handed to a handler for the
// duration of one request.
type Snapshot struct {
	MinAllocMB            int64
	MinAllocVCores        int32
	MinVersion            string
	RMVersion             string
	HostResolutionEnabled bool
	TimelineV2Enabled     bool
	LabelMode             structs.LabelConfigMode
	WorkPreservingRecovery bool
	Pacing                pacing.Config
	Lists                 admission.Lists
}

// AdmissionConfig projects a Snapshot down to what nts/admission.Check
// needs. The include/exclude list check itself is driven separately by a
// HostValidator (normally a NodesListManager collaborator; Snapshot.Lists
// backs the built-in default — see nts.listsAdapter).
func (s Snapshot) AdmissionConfig() admission.Config {
	return admission.Config{
		MinVersion:            s.MinVersion,
		RMVersion:             s.RMVersion,
		HostResolutionEnabled: s.HostResolutionEnabled,
		MinAllocMB:            s.MinAllocMB,
		MinAllocVCores:        s.MinAllocVCores,
	}
}

// Manager holds the live configuration under a sync.RWMutex.
type Manager struct {
	mu  sync.RWMutex
	cur Snapshot

	// onUpdate fires (best-effort, synchronously) after every successful
	// write, so an installed hook can observe what changed.
	onUpdate func(Snapshot)
}

// New constructs a Manager seeded with bootstrap values. Pacing is
// validated immediately per §4.5's load-time rules.
func New(boot Bootstrap) *Manager {
	boot.Pacing.Validate()
	return &Manager{
		cur: Snapshot{
			MinAllocMB:             boot.MinAllocMB,
			MinAllocVCores:         boot.MinAllocVCores,
			MinVersion:             boot.MinVersion,
			RMVersion:              boot.RMVersion,
			HostResolutionEnabled:  boot.HostResolutionEnabled,
			TimelineV2Enabled:      boot.TimelineV2Enabled,
			LabelMode:              boot.LabelMode,
			WorkPreservingRecovery: boot.WorkPreservingRecovery,
			Pacing:                 boot.Pacing,
			Lists:                  boot.Lists,
		},
	}
}

// OnUpdate installs a hook invoked after every successful write. Only one
// hook is supported; a later call replaces an earlier one.
func (m *Manager) OnUpdate(fn func(Snapshot)) {
	m.mu.Lock()
	m.onUpdate = fn
	m.mu.Unlock()
}

// Snapshot returns the current configuration under the reader lock. The
// returned value is a copy; callers never need to release anything.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// UpdateAdmissionLists is an admin verb (§6): replaces the include/exclude
// lists wholesale.
func (m *Manager) UpdateAdmissionLists(lists admission.Lists) {
	m.mu.Lock()
	m.cur.Lists = lists
	snap := m.cur
	hook := m.onUpdate
	m.mu.Unlock()
	if hook != nil {
		hook(snap)
	}
}

// UpdateMinVersion is an admin verb (§6).
func (m *Manager) UpdateMinVersion(v string) {
	m.mu.Lock()
	m.cur.MinVersion = v
	snap := m.cur
	hook := m.onUpdate
	m.mu.Unlock()
	if hook != nil {
		hook(snap)
	}
}

// UpdateMinAllocation is an admin verb (§6).
func (m *Manager) UpdateMinAllocation(mb int64, vcores int32) {
	m.mu.Lock()
	m.cur.MinAllocMB = mb
	m.cur.MinAllocVCores = vcores
	snap := m.cur
	hook := m.onUpdate
	m.mu.Unlock()
	if hook != nil {
		hook(snap)
	}
}

// UpdatePacing is an admin verb (§6). The new config is validated per §4.5
// before being installed; Validate's return value tells the caller whether
// any field was corrected, so the caller (the etcd watcher) can log a
// warning.
func (m *Manager) UpdatePacing(cfg pacing.Config) (corrected bool) {
	corrected = cfg.Validate()
	m.mu.Lock()
	m.cur.Pacing = cfg
	snap := m.cur
	hook := m.onUpdate
	m.mu.Unlock()
	if hook != nil {
		hook(snap)
	}
	return corrected
}

// UpdateHostResolution toggles §4.2's host-resolution check.
func (m *Manager) UpdateHostResolution(enabled bool) {
	m.mu.Lock()
	m.cur.HostResolutionEnabled = enabled
	snap := m.cur
	hook := m.onUpdate
	m.mu.Unlock()
	if hook != nil {
		hook(snap)
	}
}
