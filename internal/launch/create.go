// ==============================================
// File: internal/launch/create.go
// ==============================================
package launch

import (
	"context"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/authz"
	"github.com/rovshanmuradov/launchpad-engine/internal/curve"
	"github.com/rovshanmuradov/launchpad-engine/internal/errs"
	"github.com/rovshanmuradov/launchpad-engine/internal/events"
	"github.com/rovshanmuradov/launchpad-engine/internal/ledger"
	"github.com/rovshanmuradov/launchpad-engine/internal/sign"
	"github.com/rovshanmuradov/launchpad-engine/internal/storage/models"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
	"github.com/rovshanmuradov/launchpad-engine/internal/vesting"
)

// CreateToken validates and executes a signed creation request. The caller
// authorizes a base-currency pull covering the required payment; the engine
// pulls exactly what the request costs, so overpaid authorizations never
// leave the caller's balance.
func (o *Orchestrator) CreateToken(ctx context.Context, caller types.Address, req CreateRequest, signature []byte, payment uint64) (types.Address, error) {
	params := o.paramsSnapshot()

	// Authorization: recover the signer over the canonical digest and
	// check it against the recognized signer set.
	digest := sign.Digest(req.Encode(), params.ChainID, o.account)
	signer, err := o.verifier.RecoverSigner(digest, signature)
	if err != nil {
		return types.Address{}, errs.New(errs.KindAuthorization, err)
	}
	if !o.auth.Allow(signer, authz.PermSigner) {
		return types.Address{}, errs.New(errs.KindAuthorization, ErrInvalidSigner)
	}

	now := o.now()
	if now.Unix() > req.Timestamp+int64(params.RequestExpiry.Seconds()) {
		return types.Address{}, errs.New(errs.KindTemporal, ErrRequestExpired)
	}
	o.mu.Lock()
	replayed := o.usedRequests[req.RequestID]
	o.mu.Unlock()
	if replayed {
		return types.Address{}, errs.New(errs.KindState, ErrRequestReplayed)
	}

	plan, err := o.planCreation(req, params)
	if err != nil {
		return types.Address{}, err
	}
	if payment < plan.required {
		return types.Address{}, errs.Newf(errs.KindEconomic, "%w: need %d, attached %d",
			ErrInsufficientFee, plan.required, payment)
	}

	spec := ledger.DeploySpec{
		Name:        req.Name,
		Symbol:      req.Symbol,
		TotalSupply: req.TotalSupply,
		Controller:  o.account,
		Timestamp:   req.Timestamp,
		Nonce:       req.Nonce,
	}
	asset := o.deployer.PredictAddress(spec)

	if err := o.enter(asset); err != nil {
		return types.Address{}, err
	}
	defer o.exit(asset)

	// Pull exactly the required payment. The attached value beyond it
	// never leaves the caller.
	if err := o.base.TransferFrom(ctx, o.account, caller, o.account, plan.required); err != nil {
		return types.Address{}, errs.New(errs.KindTransfer, err)
	}

	deployed, assetLedger, err := o.deployer.Deploy(ctx, spec)
	if err != nil {
		o.refund(ctx, caller, plan.required)
		return types.Address{}, errs.New(errs.KindState, err)
	}
	o.registry.Register(deployed, assetLedger)

	if err := o.routeTokens(ctx, deployed, assetLedger, req, plan); err != nil {
		// routeTokens already revoked any schedules it managed to create;
		// dropping the registry entry leaves no trace of the asset.
		o.registry.Remove(deployed)
		o.refund(ctx, caller, plan.required)
		return types.Address{}, err
	}

	l := &Launch{
		Asset:               deployed,
		Creator:             req.Creator,
		Name:                req.Name,
		Symbol:              req.Symbol,
		TotalSupply:         req.TotalSupply,
		SaleAmount:          req.SaleAmount,
		CreatedAt:           now,
		LaunchTime:          req.LaunchTime,
		Status:              StatusTrading,
		LiquidityPair:       ledger.PairAddress(deployed),
		GraduationThreshold: plan.graduationThreshold,
		Curve:               plan.curveState,
	}
	o.mu.Lock()
	o.launches[deployed] = l
	o.usedRequests[req.RequestID] = true
	o.stats[deployed] = &TradeStats{}
	o.mu.Unlock()

	// Fee routing happens after state commit; fee legs fall back rather
	// than unwind the creation.
	o.payout(ctx, o.base, deployed, params.FeeReceiver, plan.creationFee+plan.preBuyFee, "creation_fee")
	o.payout(ctx, o.base, deployed, params.MarginReceiver, req.MarginAmount, "margin_deposit")

	if o.store != nil {
		requestID := types.Address(req.RequestID)
		if err := o.store.ConsumeRequest(ctx, requestID.String()); err != nil {
			o.logger.Error("Failed to journal consumed request", zap.Error(err))
		}
		record := &models.Launch{
			Asset:       deployed.String(),
			Creator:     req.Creator.String(),
			Name:        req.Name,
			Symbol:      req.Symbol,
			TotalSupply: req.TotalSupply,
			SaleAmount:  req.SaleAmount,
			LaunchTime:  req.LaunchTime,
			Status:      StatusTrading.String(),
		}
		if err := o.store.SaveLaunch(ctx, record); err != nil {
			o.logger.Error("Failed to journal launch", zap.Error(err))
		}
	}

	o.publish(&events.TokenCreatedEvent{
		BaseEvent:     events.Now(events.TokenCreated),
		Asset:         deployed,
		Creator:       req.Creator,
		Name:          req.Name,
		Symbol:        req.Symbol,
		TotalSupply:   req.TotalSupply,
		SaleAmount:    req.SaleAmount,
		InitialTokens: plan.initialTokens,
		VirtualBase:   plan.curveState.VirtualBaseReserve,
		VirtualToken:  plan.curveState.VirtualTokenReserve,
		LaunchTime:    req.LaunchTime,
	})
	o.logger.Info("Token created",
		zap.String("asset", deployed.Short()),
		zap.String("symbol", req.Symbol),
		zap.Uint64("total_supply", req.TotalSupply),
		zap.Uint64("sale_amount", req.SaleAmount),
		zap.Uint64("initial_tokens", plan.initialTokens),
		zap.Uint64("required_payment", plan.required))
	return deployed, nil
}

// creationPlan is everything computed up front so the execution phase only
// moves value.
type creationPlan struct {
	curveState          curve.State
	initialTokens       uint64
	initialBase         uint64
	preBuyFee           uint64
	creationFee         uint64
	required            uint64
	graduationThreshold uint64
	vestingPool         uint64
	allocations         []plannedAllocation
	burnTotal           uint64
	nonBurnTotal        uint64
	residueToCreator    uint64
}

type plannedAllocation struct {
	beneficiary types.Address
	amount      uint64
	mode        vesting.Mode
	duration    int64
}

// planCreation validates the request and derives amounts. No side effects.
func (o *Orchestrator) planCreation(req CreateRequest, params Params) (*creationPlan, error) {
	if req.RequestID == ([32]byte{}) || req.Name == "" || req.Symbol == "" {
		return nil, errs.New(errs.KindValidation, ErrInvalidRequest)
	}
	if req.Creator.IsZero() {
		return nil, errs.New(errs.KindValidation, ErrZeroAddress)
	}
	if req.TotalSupply == 0 || req.SaleAmount == 0 || req.SaleAmount > req.TotalSupply {
		return nil, errs.Newf(errs.KindValidation, "%w: sale amount out of range", ErrInvalidRequest)
	}
	if req.InitialBuyBp > params.MaxInitialBuyBp {
		return nil, errs.Newf(errs.KindValidation, "%w: initial buy above cap", ErrInvalidRequest)
	}
	initialTokens, err := curve.BpShare(req.TotalSupply, req.InitialBuyBp)
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	if req.SaleAmount < initialTokens {
		return nil, errs.Newf(errs.KindValidation, "%w: sale amount below initial buy", ErrInvalidRequest)
	}

	// Curve initialization. K comes from the requested reserves, before
	// the initial buy moves them: it stays constant for the curve's whole
	// lifetime.
	virtualToken, err := curve.BpShare(req.SaleAmount, params.VirtualTokenReserveBp)
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	st, err := curve.NewState(params.VirtualBaseReserve, virtualToken, req.SaleAmount)
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}

	plan := &creationPlan{curveState: st, creationFee: params.CreationFee}

	if initialTokens > 0 {
		// The initial buy is sized from the constant-product relation
		// directly, not through the fee-inclusive buy path, so it pays
		// curve slippage exactly once.
		next, netBase, err := curve.ApplyBuyExact(st, initialTokens)
		if err != nil {
			return nil, errs.New(errs.KindValidation, err)
		}
		fee, err := curve.Fee(netBase, params.TradingFeeBp)
		if err != nil {
			return nil, errs.New(errs.KindValidation, err)
		}
		plan.curveState = next
		plan.initialTokens = initialTokens
		plan.initialBase = netBase
		plan.preBuyFee = fee
	}

	if err := o.planVesting(req, plan); err != nil {
		return nil, err
	}

	plan.graduationThreshold, err = curve.BpShare(req.SaleAmount, params.GraduationThresholdBp)
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}

	required := plan.creationFee
	for _, add := range []uint64{req.MarginAmount, plan.initialBase, plan.preBuyFee} {
		sum := required + add
		if sum < required {
			return nil, errs.New(errs.KindValidation, curve.ErrAmountOverflow)
		}
		required = sum
	}
	plan.required = required
	return plan, nil
}

// planVesting splits the vesting pool across the requested allocations.
// Floor-division residue goes to the final non-burn allocation, or straight
// to the creator when every allocation burns.
func (o *Orchestrator) planVesting(req CreateRequest, plan *creationPlan) error {
	if req.VestingBp == 0 {
		if len(req.Allocations) > 0 {
			return errs.Newf(errs.KindValidation, "%w: allocations without vesting pool", ErrInvalidRequest)
		}
		return nil
	}
	if req.VestingBp > types.BpDenominator {
		return errs.Newf(errs.KindValidation, "%w: vesting share above 100%%", ErrInvalidRequest)
	}
	pool, err := curve.BpShare(req.TotalSupply, req.VestingBp)
	if err != nil {
		return errs.New(errs.KindValidation, err)
	}
	if pool > req.TotalSupply-req.SaleAmount {
		return errs.Newf(errs.KindValidation, "%w: vesting pool exceeds non-sale supply", ErrInvalidRequest)
	}
	if len(req.Allocations) == 0 {
		return errs.Newf(errs.KindValidation, "%w: vesting pool without allocations", ErrInvalidRequest)
	}

	var shareSum uint32
	var allocated uint64
	lastNonBurn := -1
	for i, a := range req.Allocations {
		if a.ShareBp == 0 {
			return errs.Newf(errs.KindValidation, "%w: zero allocation share", ErrInvalidRequest)
		}
		shareSum += a.ShareBp
		if shareSum > types.BpDenominator {
			return errs.Newf(errs.KindValidation, "%w: allocation shares above 100%%", ErrInvalidRequest)
		}
		amount, err := curve.BpShare(pool, a.ShareBp)
		if err != nil {
			return errs.New(errs.KindValidation, err)
		}
		if a.Mode != vesting.ModeBurn {
			if a.Beneficiary.IsZero() {
				return errs.New(errs.KindValidation, ErrZeroAddress)
			}
			if a.Duration <= 0 {
				return errs.Newf(errs.KindValidation, "%w: non-positive vesting duration", ErrInvalidRequest)
			}
			if amount == 0 {
				return errs.Newf(errs.KindValidation, "%w: allocation rounds to zero", ErrInvalidRequest)
			}
			lastNonBurn = i
		}
		allocated += amount
		plan.allocations = append(plan.allocations, plannedAllocation{
			beneficiary: a.Beneficiary,
			amount:      amount,
			mode:        a.Mode,
			duration:    a.Duration,
		})
	}

	residue := pool - allocated
	if residue > 0 {
		if lastNonBurn >= 0 {
			plan.allocations[lastNonBurn].amount += residue
		} else {
			plan.residueToCreator = residue
		}
	}
	for _, a := range plan.allocations {
		if a.mode == vesting.ModeBurn {
			plan.burnTotal += a.amount
		} else {
			plan.nonBurnTotal += a.amount
		}
	}
	plan.vestingPool = pool
	return nil
}

// routeTokens distributes the freshly minted supply: initial-buy tokens to
// the creator, the burn portion out of circulation, any residue back to the
// creator, and non-burn allocations into vesting escrow. On failure the
// caller discards the asset entirely, so the only routing state needing an
// unwind here is the schedules already recorded with the vesting engine.
func (o *Orchestrator) routeTokens(ctx context.Context, asset types.Address, assetLedger ledger.AssetLedger, req CreateRequest, plan *creationPlan) error {
	if plan.initialTokens > 0 {
		if err := assetLedger.Transfer(ctx, o.account, req.Creator, plan.initialTokens); err != nil {
			return errs.New(errs.KindTransfer, err)
		}
	}
	if plan.burnTotal > 0 {
		if err := assetLedger.Transfer(ctx, o.account, types.BurnAddress, plan.burnTotal); err != nil {
			return errs.New(errs.KindTransfer, err)
		}
	}
	if plan.residueToCreator > 0 {
		if err := assetLedger.Transfer(ctx, o.account, req.Creator, plan.residueToCreator); err != nil {
			return errs.New(errs.KindTransfer, err)
		}
	}
	if plan.nonBurnTotal == 0 {
		return nil
	}
	if err := assetLedger.Approve(ctx, o.account, o.vesting.Account(), plan.nonBurnTotal); err != nil {
		return errs.New(errs.KindTransfer, err)
	}
	// Preserve request order per beneficiary; one escrow pull per
	// beneficiary batch. Schedules go last so a failed batch only ever
	// leaves completed batches behind, which the unwind revokes.
	order := make([]types.Address, 0, len(plan.allocations))
	grouped := make(map[types.Address][]vesting.Allocation)
	for _, a := range plan.allocations {
		if a.mode == vesting.ModeBurn {
			continue
		}
		if _, seen := grouped[a.beneficiary]; !seen {
			order = append(order, a.beneficiary)
		}
		grouped[a.beneficiary] = append(grouped[a.beneficiary], vesting.Allocation{
			Amount:    a.amount,
			Mode:      a.mode,
			StartTime: req.LaunchTime,
			Duration:  a.duration,
		})
	}
	created := make(map[types.Address][]uint64, len(order))
	for _, beneficiary := range order {
		ids, err := o.vesting.CreateSchedules(ctx, asset, o.account, beneficiary, grouped[beneficiary])
		if err != nil {
			o.unwindSchedules(ctx, asset, created)
			return err
		}
		created[beneficiary] = ids
	}
	return nil
}

// unwindSchedules revokes schedules recorded for a creation that failed
// midway; nothing has vested yet, so the escrow returns to the engine.
func (o *Orchestrator) unwindSchedules(ctx context.Context, asset types.Address, created map[types.Address][]uint64) {
	for beneficiary, ids := range created {
		for _, id := range ids {
			if err := o.vesting.Revoke(ctx, asset, beneficiary, id, o.account); err != nil {
				o.logger.Error("Failed to revoke schedule during creation unwind",
					zap.String("asset", asset.Short()),
					zap.String("beneficiary", beneficiary.Short()),
					zap.Uint64("schedule_id", id),
					zap.Error(err))
			}
		}
	}
}

// refund returns a pulled payment after a failed creation.
func (o *Orchestrator) refund(ctx context.Context, caller types.Address, amount uint64) {
	if amount == 0 {
		return
	}
	if err := o.base.Transfer(ctx, o.account, caller, amount); err != nil {
		o.logger.Error("Failed to refund creation payment",
			zap.String("caller", caller.Short()),
			zap.Uint64("amount", amount),
			zap.Error(err))
	}
}

func (o *Orchestrator) paramsSnapshot() Params {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.params
}
