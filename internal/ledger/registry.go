// internal/ledger/registry.go
package ledger

import (
	"sync"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// Registry maps asset addresses to their ledgers. The orchestrator
// registers every asset it deploys; the vesting engine resolves ledgers
// through the same registry without sharing any other state.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[types.Address]AssetLedger
}

func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[types.Address]AssetLedger)}
}

func (r *Registry) Register(asset types.Address, l AssetLedger) {
	r.mu.Lock()
	r.ledgers[asset] = l
	r.mu.Unlock()
}

// Remove drops an asset whose creation was unwound before completing.
func (r *Registry) Remove(asset types.Address) {
	r.mu.Lock()
	delete(r.ledgers, asset)
	r.mu.Unlock()
}

func (r *Registry) Get(asset types.Address) (AssetLedger, bool) {
	r.mu.RLock()
	l, ok := r.ledgers[asset]
	r.mu.RUnlock()
	return l, ok
}
