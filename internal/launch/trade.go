// ==============================================
// File: internal/launch/trade.go
// ==============================================
package launch

import (
	"context"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/curve"
	"github.com/rovshanmuradov/launchpad-engine/internal/errs"
	"github.com/rovshanmuradov/launchpad-engine/internal/events"
	"github.com/rovshanmuradov/launchpad-engine/internal/ledger"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// BuyResult reports what a committed buy actually did after clipping.
type BuyResult struct {
	TokensOut uint64
	BasePaid  uint64 // gross base actually pulled, fee included
	Fee       uint64
	Refund    uint64 // attached payment left untouched after a clip
}

// SellResult reports the proceeds of a committed sell.
type SellResult struct {
	BaseOut uint64 // net proceeds after fee
	Fee     uint64
}

// Buy spends up to payment base units against the curve. When the quoted
// output exceeds the remaining sale supply, the purchase is clipped to that
// supply and re-priced, so the caller pays for exactly the tokens received;
// the unspent remainder of the authorized payment is never pulled.
func (o *Orchestrator) Buy(ctx context.Context, caller, asset types.Address, payment, minTokensOut uint64, deadline int64) (BuyResult, error) {
	now := o.now()
	if err := o.checkDeadline(now, deadline); err != nil {
		return BuyResult{}, err
	}
	if payment == 0 {
		return BuyResult{}, errs.New(errs.KindValidation, ErrZeroAmount)
	}
	l, err := o.launch(asset)
	if err != nil {
		return BuyResult{}, err
	}
	assetLedger, ok := o.registry.Get(asset)
	if !ok {
		return BuyResult{}, errs.New(errs.KindState, ErrTokenNotFound)
	}
	if err := o.enter(asset); err != nil {
		return BuyResult{}, err
	}
	defer o.exit(asset)

	o.mu.Lock()
	if err := tradable(l, now); err != nil {
		o.mu.Unlock()
		return BuyResult{}, err
	}
	snapshot := l.Curve
	params := o.params
	o.mu.Unlock()

	fee, err := curve.Fee(payment, params.TradingFeeBp)
	if err != nil {
		return BuyResult{}, errs.New(errs.KindValidation, err)
	}
	netBase := payment - fee
	quoted, err := curve.QuoteBuy(snapshot, netBase)
	if err != nil {
		return BuyResult{}, errs.New(errs.KindEconomic, err)
	}

	var (
		next     curve.State
		tokenOut uint64
		required uint64
		refund   uint64
	)
	if quoted >= snapshot.AvailableTokens {
		// Clip to the remaining sale supply and re-price from the
		// constant-product relation, fee re-derived on the reduced gross.
		tokenOut = snapshot.AvailableTokens
		var netRequired uint64
		next, netRequired, err = curve.ApplyBuyExact(snapshot, tokenOut)
		if err != nil {
			return BuyResult{}, errs.New(errs.KindEconomic, err)
		}
		required, err = curve.GrossForNet(netRequired, params.TradingFeeBp)
		if err != nil {
			return BuyResult{}, errs.New(errs.KindEconomic, err)
		}
		fee = required - netRequired
		netBase = netRequired
		refund = payment - required
	} else {
		next, tokenOut, err = curve.ApplyBuy(snapshot, netBase)
		if err != nil {
			return BuyResult{}, errs.New(errs.KindEconomic, err)
		}
		required = payment
	}
	if tokenOut == 0 {
		return BuyResult{}, errs.Newf(errs.KindEconomic, "%w: payment buys no tokens", ErrZeroAmount)
	}
	if tokenOut < minTokensOut {
		return BuyResult{}, errs.Newf(errs.KindEconomic, "%w: out %d below minimum %d",
			ErrSlippageExceeded, tokenOut, minTokensOut)
	}

	// Pull exactly what the trade costs. The clipped remainder of the
	// attached payment stays with the caller.
	if err := o.base.TransferFrom(ctx, o.account, caller, o.account, required); err != nil {
		return BuyResult{}, errs.New(errs.KindTransfer, err)
	}

	o.mu.Lock()
	l.Curve = next
	soldOut := next.AvailableTokens <= l.GraduationThreshold
	o.mu.Unlock()

	if err := assetLedger.Transfer(ctx, o.account, caller, tokenOut); err != nil {
		// Unwind: restore the reserve snapshot and return the pulled base.
		o.mu.Lock()
		l.Curve = snapshot
		o.mu.Unlock()
		o.refund(ctx, caller, required)
		return BuyResult{}, errs.New(errs.KindTransfer, err)
	}

	if soldOut {
		o.beginGraduation(ctx, l, assetLedger, caller)
	}

	o.payout(ctx, o.base, asset, params.FeeReceiver, fee, "trading_fee")
	o.recordTrade(ctx, l, events.SideBuy, caller, netBase, tokenOut, fee)
	o.publish(&events.TradeExecutedEvent{
		BaseEvent:       events.Now(events.TradeExecuted),
		Asset:           asset,
		Actor:           caller,
		Side:            events.SideBuy,
		BaseAmount:      netBase,
		TokenAmount:     tokenOut,
		Fee:             fee,
		Refund:          refund,
		VirtualBase:     next.VirtualBaseReserve,
		VirtualToken:    next.VirtualTokenReserve,
		AvailableTokens: next.AvailableTokens,
		CollectedBase:   next.CollectedBase,
	})
	o.logger.Debug("Buy executed",
		zap.String("asset", asset.Short()),
		zap.String("buyer", caller.Short()),
		zap.Uint64("tokens_out", tokenOut),
		zap.Uint64("base_paid", required),
		zap.Uint64("refund", refund))
	return BuyResult{TokensOut: tokenOut, BasePaid: required, Fee: fee, Refund: refund}, nil
}

// Sell returns tokenIn tokens to the curve for base proceeds. The sell fee
// comes off the gross curve output, and the payout is bounded by the base
// the curve has actually collected.
func (o *Orchestrator) Sell(ctx context.Context, caller, asset types.Address, tokenIn, minBaseOut uint64, deadline int64) (SellResult, error) {
	now := o.now()
	if err := o.checkDeadline(now, deadline); err != nil {
		return SellResult{}, err
	}
	if tokenIn == 0 {
		return SellResult{}, errs.New(errs.KindValidation, ErrZeroAmount)
	}
	l, err := o.launch(asset)
	if err != nil {
		return SellResult{}, err
	}
	assetLedger, ok := o.registry.Get(asset)
	if !ok {
		return SellResult{}, errs.New(errs.KindState, ErrTokenNotFound)
	}
	if err := o.enter(asset); err != nil {
		return SellResult{}, err
	}
	defer o.exit(asset)

	o.mu.Lock()
	if err := tradable(l, now); err != nil {
		o.mu.Unlock()
		return SellResult{}, err
	}
	snapshot := l.Curve
	params := o.params
	o.mu.Unlock()

	next, gross, err := curve.ApplySell(snapshot, tokenIn)
	if err != nil {
		return SellResult{}, errs.New(errs.KindEconomic, ErrInsufficientOutput)
	}
	if gross == 0 {
		return SellResult{}, errs.Newf(errs.KindEconomic, "%w: sale yields no proceeds", ErrZeroAmount)
	}
	fee, err := curve.Fee(gross, params.TradingFeeBp)
	if err != nil {
		return SellResult{}, errs.New(errs.KindValidation, err)
	}
	net := gross - fee
	if net < minBaseOut {
		return SellResult{}, errs.Newf(errs.KindEconomic, "%w: out %d below minimum %d",
			ErrSlippageExceeded, net, minBaseOut)
	}

	if err := assetLedger.TransferFrom(ctx, o.account, caller, o.account, tokenIn); err != nil {
		return SellResult{}, errs.New(errs.KindTransfer, err)
	}

	o.mu.Lock()
	l.Curve = next
	o.mu.Unlock()

	if err := o.base.Transfer(ctx, o.account, caller, net); err != nil {
		// Unwind: restore the reserve snapshot and return the pulled tokens.
		o.mu.Lock()
		l.Curve = snapshot
		o.mu.Unlock()
		if rbErr := assetLedger.Transfer(ctx, o.account, caller, tokenIn); rbErr != nil {
			o.logger.Error("Failed to return tokens after sell payout failure",
				zap.String("asset", asset.Short()),
				zap.String("seller", caller.Short()),
				zap.Uint64("token_amount", tokenIn),
				zap.Error(rbErr))
		}
		return SellResult{}, errs.New(errs.KindTransfer, err)
	}

	o.payout(ctx, o.base, asset, params.FeeReceiver, fee, "trading_fee")
	o.recordTrade(ctx, l, events.SideSell, caller, net, tokenIn, fee)
	o.publish(&events.TradeExecutedEvent{
		BaseEvent:       events.Now(events.TradeExecuted),
		Asset:           asset,
		Actor:           caller,
		Side:            events.SideSell,
		BaseAmount:      net,
		TokenAmount:     tokenIn,
		Fee:             fee,
		VirtualBase:     next.VirtualBaseReserve,
		VirtualToken:    next.VirtualTokenReserve,
		AvailableTokens: next.AvailableTokens,
		CollectedBase:   next.CollectedBase,
	})
	o.logger.Debug("Sell executed",
		zap.String("asset", asset.Short()),
		zap.String("seller", caller.Short()),
		zap.Uint64("tokens_in", tokenIn),
		zap.Uint64("base_out", net))
	return SellResult{BaseOut: net, Fee: fee}, nil
}

// beginGraduation moves a launch to PendingGraduation and freezes secondary
// transfers until the liquidity migration completes. Failing to restrict is
// logged, not fatal; graduation re-checks the flag.
func (o *Orchestrator) beginGraduation(ctx context.Context, l *Launch, assetLedger ledger.AssetLedger, actor types.Address) {
	if err := assetLedger.SetRestricted(ctx, o.account, true); err != nil {
		o.logger.Error("Failed to restrict transfers at graduation threshold",
			zap.String("asset", l.Asset.Short()), zap.Error(err))
	}
	o.setStatus(ctx, l, StatusPendingGraduation, actor)
}
