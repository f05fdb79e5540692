// internal/ledger/pool.go
package ledger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// PairAddress derives the deterministic trading-pair address for an asset.
// Like asset addresses, pairs are content-addressed so they are known
// before any liquidity lands.
func PairAddress(asset types.Address) types.Address {
	return types.AddressFromSeed(append([]byte("launchpad/pair"), asset.Bytes()...))
}

// MemoryPool is an in-process LiquidityPool. It mints one LP receipt unit
// per base unit supplied and records a pair address per asset.
type MemoryPool struct {
	mu     sync.Mutex
	logger *zap.Logger
	pairs  map[types.Address]types.Address
}

func NewMemoryPool(logger *zap.Logger) *MemoryPool {
	return &MemoryPool{
		logger: logger.Named("liquidity_pool"),
		pairs:  make(map[types.Address]types.Address),
	}
}

func (p *MemoryPool) AddLiquidity(_ context.Context, asset types.Address, baseAmount, tokenAmount uint64) (uint64, error) {
	if baseAmount == 0 || tokenAmount == 0 {
		return 0, fmt.Errorf("pool: zero-sided liquidity for %s", asset.Short())
	}
	p.mu.Lock()
	p.pairs[asset] = PairAddress(asset)
	p.mu.Unlock()

	p.logger.Info("Liquidity added",
		zap.String("asset", asset.String()),
		zap.Uint64("base_amount", baseAmount),
		zap.Uint64("token_amount", tokenAmount))
	return baseAmount, nil
}

func (p *MemoryPool) PairFor(_ context.Context, asset types.Address) (types.Address, error) {
	p.mu.Lock()
	pair, ok := p.pairs[asset]
	p.mu.Unlock()
	if !ok {
		return types.Address{}, fmt.Errorf("pool: no pair for asset %s", asset.Short())
	}
	return pair, nil
}
