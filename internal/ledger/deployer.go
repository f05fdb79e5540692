// internal/ledger/deployer.go
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// MemoryDeployer deploys Memory ledgers at content-addressed addresses:
// the address is a hash over the deploy spec, so callers can derive it
// before the deployment lands.
type MemoryDeployer struct {
	mu     sync.Mutex
	logger *zap.Logger
	assets map[types.Address]*Memory
}

func NewMemoryDeployer(logger *zap.Logger) *MemoryDeployer {
	return &MemoryDeployer{
		logger: logger.Named("deployer"),
		assets: make(map[types.Address]*Memory),
	}
}

func (d *MemoryDeployer) PredictAddress(spec DeploySpec) types.Address {
	h := sha256.New()
	h.Write([]byte("launchpad/asset"))
	writeString(h.Write, spec.Name)
	writeString(h.Write, spec.Symbol)
	writeU64(h.Write, spec.TotalSupply)
	h.Write(spec.Controller.Bytes())
	writeU64(h.Write, uint64(spec.Timestamp))
	writeU64(h.Write, spec.Nonce)
	var addr types.Address
	copy(addr[:], h.Sum(nil))
	return addr
}

func (d *MemoryDeployer) Deploy(_ context.Context, spec DeploySpec) (types.Address, AssetLedger, error) {
	addr := d.PredictAddress(spec)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.assets[addr]; exists {
		return types.Address{}, nil, fmt.Errorf("deployer: asset already deployed at %s", addr.Short())
	}
	asset := NewMemory(spec.Name, spec.Symbol, spec.TotalSupply, spec.Controller, spec.Controller)
	d.assets[addr] = asset

	d.logger.Info("Asset deployed",
		zap.String("address", addr.String()),
		zap.String("symbol", spec.Symbol),
		zap.Uint64("total_supply", spec.TotalSupply))
	return addr, asset, nil
}

func writeString(w func([]byte) (int, error), s string) {
	writeU64(w, uint64(len(s)))
	_, _ = w([]byte(s))
}

func writeU64(w func([]byte) (int, error), v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = w(buf[:])
}
