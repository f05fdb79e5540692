// ==============================================
// File: internal/launch/graduate.go
// ==============================================
package launch

import (
	"context"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/authz"
	"github.com/rovshanmuradov/launchpad-engine/internal/curve"
	"github.com/rovshanmuradov/launchpad-engine/internal/errs"
	"github.com/rovshanmuradov/launchpad-engine/internal/events"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// GraduationResult reports how the collected reserves were split.
type GraduationResult struct {
	PlatformFee     uint64
	CreatorFee      uint64
	LiquidityBase   uint64
	LiquidityTokens uint64
	LPReceipt       uint64
}

// GraduateToken migrates a PendingGraduation launch to the liquidity pool.
// The platform and creator take their shares of the collected base; the
// remainder, together with the engine's entire remaining token balance,
// seeds the pool. Transfers unfreeze once migration completes.
func (o *Orchestrator) GraduateToken(ctx context.Context, caller, asset types.Address) (GraduationResult, error) {
	if !o.auth.Allow(caller, authz.PermOperator) && !o.auth.Allow(caller, authz.PermAdmin) {
		return GraduationResult{}, errs.New(errs.KindAuthorization, ErrNotAuthorized)
	}
	l, err := o.launch(asset)
	if err != nil {
		return GraduationResult{}, err
	}
	assetLedger, ok := o.registry.Get(asset)
	if !ok {
		return GraduationResult{}, errs.New(errs.KindState, ErrTokenNotFound)
	}
	if err := o.enter(asset); err != nil {
		return GraduationResult{}, err
	}
	defer o.exit(asset)

	o.mu.Lock()
	if l.Status != StatusPendingGraduation {
		status := l.Status
		o.mu.Unlock()
		return GraduationResult{}, errs.Newf(errs.KindState, "%w: status %s, want %s",
			ErrWrongStatus, status, StatusPendingGraduation)
	}
	collected := l.Curve.CollectedBase
	params := o.params
	o.mu.Unlock()

	platformFee, err := curve.BpShare(collected, params.PlatformFeeBp)
	if err != nil {
		return GraduationResult{}, errs.New(errs.KindEconomic, err)
	}
	creatorFee, err := curve.BpShare(collected, params.CreatorFeeBp)
	if err != nil {
		return GraduationResult{}, errs.New(errs.KindEconomic, err)
	}
	liquidityBase := collected - platformFee - creatorFee

	// Everything still on the engine account (vesting escrow lives on the
	// vesting engine's own account) backs the pool's token side.
	liquidityTokens, err := assetLedger.BalanceOf(ctx, o.account)
	if err != nil {
		return GraduationResult{}, errs.New(errs.KindTransfer, err)
	}

	receipt, err := o.pool.AddLiquidity(ctx, asset, liquidityBase, liquidityTokens)
	if err != nil {
		return GraduationResult{}, errs.New(errs.KindTransfer, err)
	}
	pair := l.LiquidityPair
	if err := o.base.Transfer(ctx, o.account, pair, liquidityBase); err != nil {
		return GraduationResult{}, errs.New(errs.KindTransfer, err)
	}
	if err := assetLedger.Transfer(ctx, o.account, pair, liquidityTokens); err != nil {
		return GraduationResult{}, errs.New(errs.KindTransfer, err)
	}

	// Fee legs after the liquidity migration; they redirect, never unwind.
	o.payout(ctx, o.base, asset, params.PlatformReceiver, platformFee, "graduation_platform_fee")
	o.payout(ctx, o.base, asset, l.Creator, creatorFee, "graduation_creator_fee")

	if err := assetLedger.SetRestricted(ctx, o.account, false); err != nil {
		o.logger.Error("Failed to lift transfer restriction after graduation",
			zap.String("asset", asset.Short()), zap.Error(err))
	}
	o.setStatus(ctx, l, StatusGraduated, caller)

	o.publish(&events.TokenGraduatedEvent{
		BaseEvent:       events.Now(events.TokenGraduated),
		Asset:           asset,
		PlatformFee:     platformFee,
		CreatorFee:      creatorFee,
		LiquidityBase:   liquidityBase,
		LiquidityTokens: liquidityTokens,
		LPReceipt:       receipt,
	})
	o.logger.Info("Token graduated",
		zap.String("asset", asset.Short()),
		zap.Uint64("liquidity_base", liquidityBase),
		zap.Uint64("liquidity_tokens", liquidityTokens),
		zap.Uint64("platform_fee", platformFee),
		zap.Uint64("creator_fee", creatorFee))
	return GraduationResult{
		PlatformFee:     platformFee,
		CreatorFee:      creatorFee,
		LiquidityBase:   liquidityBase,
		LiquidityTokens: liquidityTokens,
		LPReceipt:       receipt,
	}, nil
}

// PauseToken suspends trading on a Trading launch.
func (o *Orchestrator) PauseToken(ctx context.Context, caller, asset types.Address) error {
	return o.transition(ctx, caller, asset, StatusTrading, StatusPaused)
}

// UnpauseToken resumes trading on a Paused launch.
func (o *Orchestrator) UnpauseToken(ctx context.Context, caller, asset types.Address) error {
	return o.transition(ctx, caller, asset, StatusPaused, StatusTrading)
}

// BlacklistToken removes a launch from circulation. Graduated launches are
// out of the engine's hands and cannot be blacklisted.
func (o *Orchestrator) BlacklistToken(ctx context.Context, caller, asset types.Address) error {
	if !o.auth.Allow(caller, authz.PermAdmin) {
		return errs.New(errs.KindAuthorization, ErrNotAuthorized)
	}
	l, err := o.launch(asset)
	if err != nil {
		return err
	}
	o.mu.Lock()
	status := l.Status
	o.mu.Unlock()
	if status == StatusGraduated || status == StatusBlacklisted {
		return errs.Newf(errs.KindState, "%w: status %s", ErrWrongStatus, status)
	}
	o.setStatus(ctx, l, StatusBlacklisted, caller)
	return nil
}

// RemoveFromBlacklist returns a Blacklisted launch to Trading.
func (o *Orchestrator) RemoveFromBlacklist(ctx context.Context, caller, asset types.Address) error {
	return o.transition(ctx, caller, asset, StatusBlacklisted, StatusTrading)
}

func (o *Orchestrator) transition(ctx context.Context, caller, asset types.Address, from, to Status) error {
	if !o.auth.Allow(caller, authz.PermAdmin) {
		return errs.New(errs.KindAuthorization, ErrNotAuthorized)
	}
	l, err := o.launch(asset)
	if err != nil {
		return err
	}
	o.mu.Lock()
	status := l.Status
	o.mu.Unlock()
	if status != from {
		return errs.Newf(errs.KindState, "%w: status %s, want %s", ErrWrongStatus, status, from)
	}
	o.setStatus(ctx, l, to, caller)
	return nil
}
