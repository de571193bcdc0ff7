// Package keys models the rotating master-key material NTS ships to agents
// but never inspects. Design note §9 calls for a capability-set replacing
// the source's KeyProvider class hierarchy: KeyStore{get/put/list/delete/
// rollVersion}. NTS only ever calls Current/Next/RemoveNodeKey on the two
// concrete key stores it is handed (container-token, nm-token); the wider
// KeyStore shape exists so a real implementation (backed by whatever
// secret manager owns rotation) can satisfy both this interface and its
// own operational needs.
package keys

import "github.com/nodetracker/nts/structs"

// Store is the capability set a ContainerTokenSecretManager or
// NMTokenSecretManager exposes to NTS (§6).
type Store interface {
	// Current returns the active signing key, or nil if none has been
	// generated yet.
	Current() *structs.MasterKey

	// Next returns the key being rotated in, or nil if no rotation is in
	// flight.
	Next() *structs.MasterKey

	Get(keyID uint32) (*structs.MasterKey, bool)
	Put(key *structs.MasterKey)
	List() []*structs.MasterKey
	Delete(keyID uint32)

	// RollVersion promotes Next to Current and returns the new Current.
	RollVersion() *structs.MasterKey
}

// NMTokenStore additionally supports per-node key invalidation (§4.3 step
// 6: "Clear any cached nm-token key entries for this nodeId").
type NMTokenStore interface {
	Store
	RemoveNodeKey(nodeID structs.NodeId)
}
