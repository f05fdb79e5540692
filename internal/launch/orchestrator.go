// ==============================================
// File: internal/launch/orchestrator.go
// ==============================================
// Package launch is the launch orchestrator: it owns every AssetLaunch
// record and its live bonding-curve reserves, executes signed creation
// requests, drives trading against the curve math, and runs graduation.
//
// Every public mutating operation is one atomic unit. The per-asset
// reentrancy guard rejects nested re-entry for the duration of a call, and
// state is committed before external transfers wherever a transfer can
// observe engine state.
package launch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/authz"
	"github.com/rovshanmuradov/launchpad-engine/internal/curve"
	"github.com/rovshanmuradov/launchpad-engine/internal/errs"
	"github.com/rovshanmuradov/launchpad-engine/internal/events"
	"github.com/rovshanmuradov/launchpad-engine/internal/ledger"
	"github.com/rovshanmuradov/launchpad-engine/internal/sign"
	"github.com/rovshanmuradov/launchpad-engine/internal/storage"
	"github.com/rovshanmuradov/launchpad-engine/internal/storage/models"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
	"github.com/rovshanmuradov/launchpad-engine/internal/vesting"
)

// Deps are the external collaborators the orchestrator consumes.
type Deps struct {
	Logger   *zap.Logger
	Bus      *events.Bus
	Store    storage.Storage // optional journal; nil disables persistence
	Deployer ledger.Deployer
	Registry *ledger.Registry
	Base     ledger.AssetLedger // the base currency ledger
	Pool     ledger.LiquidityPool
	Verifier sign.Verifier
	Auth     authz.Authorizer
	Vesting  *vesting.Engine
	Account  types.Address // the engine's own account on every ledger
}

// Orchestrator is the launch state machine. All launch records and curve
// reserves live behind its mutex; nothing hands out references into them.
type Orchestrator struct {
	logger   *zap.Logger
	bus      *events.Bus
	store    storage.Storage
	deployer ledger.Deployer
	registry *ledger.Registry
	base     ledger.AssetLedger
	pool     ledger.LiquidityPool
	verifier sign.Verifier
	auth     authz.Authorizer
	vesting  *vesting.Engine
	account  types.Address
	now      func() time.Time

	mu           sync.Mutex
	params       Params
	launches     map[types.Address]*Launch
	usedRequests map[[32]byte]bool
	inFlight     map[types.Address]bool
	stats        map[types.Address]*TradeStats
}

func New(params Params, deps Deps) (*Orchestrator, error) {
	if err := params.Validate(); err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	o := &Orchestrator{
		logger:       deps.Logger.Named("orchestrator"),
		bus:          deps.Bus,
		store:        deps.Store,
		deployer:     deps.Deployer,
		registry:     deps.Registry,
		base:         deps.Base,
		pool:         deps.Pool,
		verifier:     deps.Verifier,
		auth:         deps.Auth,
		vesting:      deps.Vesting,
		account:      deps.Account,
		now:          time.Now,
		params:       params,
		launches:     make(map[types.Address]*Launch),
		usedRequests: make(map[[32]byte]bool),
		inFlight:     make(map[types.Address]bool),
		stats:        make(map[types.Address]*TradeStats),
	}
	return o, nil
}

// Account returns the engine's own account address.
func (o *Orchestrator) Account() types.Address {
	return o.account
}

// RestoreConsumedRequests seeds the in-memory replay set from the journal,
// called once at startup.
func (o *Orchestrator) RestoreConsumedRequests(ctx context.Context) error {
	if o.store == nil {
		return nil
	}
	ids, err := o.store.ListConsumedRequests(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		var key [32]byte
		addr, err := types.AddressFromHex(id)
		if err != nil {
			o.logger.Warn("Skipping malformed request id in journal", zap.String("request_id", id))
			continue
		}
		copy(key[:], addr.Bytes())
		o.usedRequests[key] = true
	}
	o.logger.Info("Replay ledger restored", zap.Int("consumed_requests", len(ids)))
	return nil
}

// enter acquires the per-asset reentrancy guard. A transfer hook that calls
// back into any guarded operation on the same asset is rejected here.
func (o *Orchestrator) enter(asset types.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[asset] {
		return errs.New(errs.KindState, ErrReentrantCall)
	}
	o.inFlight[asset] = true
	return nil
}

// exit releases the guard. Deferred on every entry path.
func (o *Orchestrator) exit(asset types.Address) {
	o.mu.Lock()
	delete(o.inFlight, asset)
	o.mu.Unlock()
}

// checkDeadline validates an advisory deadline at operation start: expired
// deadlines fail, and so do deadlines absurdly far in the future.
func (o *Orchestrator) checkDeadline(now time.Time, deadline int64) error {
	if now.Unix() > deadline {
		return errs.New(errs.KindTemporal, ErrTransactionExpired)
	}
	if deadline > now.Add(o.maxDeadlineDrift()).Unix() {
		return errs.Newf(errs.KindTemporal, "%w: deadline too far in the future", ErrTransactionExpired)
	}
	return nil
}

func (o *Orchestrator) maxDeadlineDrift() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.params.MaxDeadlineDrift
}

// tradable checks the trading-eligibility gate. The launch is recorded as
// Trading from creation regardless of its launch time; eligibility is
// evaluated per call against the clock.
func tradable(l *Launch, now time.Time) error {
	if l.Status != StatusTrading {
		return errs.Newf(errs.KindState, "%w: status %s", ErrTokenNotTrading, l.Status)
	}
	if l.LaunchTime > 0 && now.Unix() < l.LaunchTime {
		return errs.New(errs.KindTemporal, ErrTokenNotLaunched)
	}
	return nil
}

// payout transfers amount from the engine account to a designated receiver
// and redirects to the fallback receiver if that transfer fails. Redirects
// are never silent: each one emits a fee.redirected event.
func (o *Orchestrator) payout(ctx context.Context, l ledger.AssetLedger, asset, to types.Address, amount uint64, label string) {
	if amount == 0 {
		return
	}
	fallback := o.fallbackReceiver()
	if to.IsZero() {
		to = fallback
	}
	err := l.Transfer(ctx, o.account, to, amount)
	if err == nil {
		return
	}
	o.logger.Warn("Payout failed, redirecting to fallback receiver",
		zap.String("label", label),
		zap.String("intended", to.Short()),
		zap.Uint64("amount", amount),
		zap.Error(err))
	if to == fallback {
		return
	}
	if err := l.Transfer(ctx, o.account, fallback, amount); err != nil {
		o.logger.Error("Fallback payout failed, funds remain on engine account",
			zap.String("label", label),
			zap.Uint64("amount", amount),
			zap.Error(err))
		return
	}
	o.publish(&events.FeeRedirectedEvent{
		BaseEvent: events.Now(events.FeeRedirected),
		Asset:     asset,
		Intended:  to,
		Fallback:  fallback,
		Amount:    amount,
		Reason:    label,
	})
}

func (o *Orchestrator) fallbackReceiver() types.Address {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.params.FallbackReceiver
}

// setStatus transitions a launch and emits/persists the change. Caller
// holds no locks.
func (o *Orchestrator) setStatus(ctx context.Context, l *Launch, to Status, actor types.Address) {
	o.mu.Lock()
	from := l.Status
	l.Status = to
	o.mu.Unlock()

	o.publish(&events.TokenStatusChangedEvent{
		BaseEvent: events.Now(events.TokenStatusChanged),
		Asset:     l.Asset,
		Actor:     actor,
		From:      from.String(),
		To:        to.String(),
	})
	if o.store != nil {
		if err := o.store.UpdateLaunchStatus(ctx, l.Asset.String(), to.String()); err != nil {
			o.logger.Error("Failed to persist status change",
				zap.String("asset", l.Asset.Short()), zap.Error(err))
		}
	}
	o.logger.Info("Token status changed",
		zap.String("asset", l.Asset.Short()),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

// launch returns the live record for an asset.
func (o *Orchestrator) launch(asset types.Address) (*Launch, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.launches[asset]
	if !ok {
		return nil, errs.New(errs.KindState, ErrTokenNotFound)
	}
	return l, nil
}

// GetLaunch returns a copy of the launch record.
func (o *Orchestrator) GetLaunch(asset types.Address) (Launch, error) {
	l, err := o.launch(asset)
	if err != nil {
		return Launch{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return *l, nil
}

// StatusOf returns the lifecycle status; assets without a record are
// NotCreated.
func (o *Orchestrator) StatusOf(asset types.Address) Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.launches[asset]
	if !ok {
		return StatusNotCreated
	}
	return l.Status
}

// Stats returns the per-asset trade statistics snapshot.
func (o *Orchestrator) Stats(asset types.Address) TradeStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.stats[asset]
	if !ok {
		return TradeStats{}
	}
	return *s
}

// recordTrade updates the stats snapshot and journals the trade. Caller
// holds no locks.
func (o *Orchestrator) recordTrade(ctx context.Context, l *Launch, side events.TradeSide, actor types.Address, baseAmount, tokenAmount, fee uint64) {
	o.mu.Lock()
	st, ok := o.stats[l.Asset]
	if !ok {
		st = &TradeStats{}
		o.stats[l.Asset] = st
	}
	st.Trades++
	if side == events.SideBuy {
		st.BuyVolume += baseAmount
	} else {
		st.SellVolume += baseAmount
	}
	if price, err := curve.SpotPriceDecimal(l.Curve, o.params.BaseDecimals, o.params.TokenDecimals); err == nil {
		st.LastPrice = price.String()
	}
	cv := l.Curve
	o.mu.Unlock()

	if o.store != nil {
		trade := &models.Trade{
			Asset:           l.Asset.String(),
			Actor:           actor.String(),
			Side:            string(side),
			BaseAmount:      baseAmount,
			TokenAmount:     tokenAmount,
			Fee:             fee,
			VirtualBase:     cv.VirtualBaseReserve,
			VirtualToken:    cv.VirtualTokenReserve,
			AvailableTokens: cv.AvailableTokens,
			CollectedBase:   cv.CollectedBase,
		}
		if err := o.store.SaveTrade(ctx, trade); err != nil {
			o.logger.Error("Failed to journal trade",
				zap.String("asset", l.Asset.Short()), zap.Error(err))
		}
	}
}

func (o *Orchestrator) publish(ev events.Event) {
	if o.bus == nil {
		return
	}
	_ = o.bus.Publish(ev)
}

// SetClock overrides the time source. Tests only.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}
