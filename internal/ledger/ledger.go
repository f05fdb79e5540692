// internal/ledger/ledger.go
//
// Package ledger defines the external capabilities the engine consumes:
// atomic fungible-asset transfers, deterministic asset deployment, and the
// liquidity pool that receives graduated assets. The engine never assumes
// anything about the underlying settlement layer beyond these interfaces.
package ledger

import (
	"context"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// AssetLedger is the atomic transfer capability over one fungible asset.
// Implementations must guarantee all-or-nothing balance moves.
type AssetLedger interface {
	// Transfer moves amount from the caller-controlled account to another.
	Transfer(ctx context.Context, from, to types.Address, amount uint64) error
	// TransferFrom moves amount on behalf of from; the spender must have
	// been approved by the account owner.
	TransferFrom(ctx context.Context, spender, from, to types.Address, amount uint64) error
	// Approve lets spender move up to amount from owner's balance via
	// TransferFrom. Only the owner may set its own approvals.
	Approve(ctx context.Context, owner, spender types.Address, amount uint64) error
	// BalanceOf returns the current balance of addr.
	BalanceOf(ctx context.Context, addr types.Address) (uint64, error)
	// SetRestricted toggles the restricted transfer mode. While restricted,
	// only the controller may move balances; used to freeze secondary
	// transfers between PendingGraduation and Graduated. Controller only.
	SetRestricted(ctx context.Context, caller types.Address, restricted bool) error
}

// Deployer creates new asset ledgers at content-addressed, predictable
// addresses.
type Deployer interface {
	// Deploy creates the asset ledger, minting totalSupply to controller.
	Deploy(ctx context.Context, spec DeploySpec) (types.Address, AssetLedger, error)
	// PredictAddress returns the address Deploy would produce for spec
	// without deploying. Derivable fully off-system.
	PredictAddress(spec DeploySpec) types.Address
}

// DeploySpec is the salt input set for a deterministic deployment.
type DeploySpec struct {
	Name        string
	Symbol      string
	TotalSupply uint64
	Controller  types.Address
	Timestamp   int64
	Nonce       uint64
}

// LiquidityPool accepts graduated reserves and returns an opaque
// liquidity-receipt amount.
type LiquidityPool interface {
	AddLiquidity(ctx context.Context, asset types.Address, baseAmount, tokenAmount uint64) (uint64, error)
	// PairFor returns the trading-pair address for an asset, if one exists.
	PairFor(ctx context.Context, asset types.Address) (types.Address, error)
}
