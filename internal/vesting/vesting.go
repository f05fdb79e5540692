// ==============================================
// File: internal/vesting/vesting.go
// ==============================================
// Package vesting owns the per-asset, per-beneficiary schedule ledgers.
// Schedules are append-only: indices are never reused and records are never
// deleted, revocation only flips a one-way flag.
package vesting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/errs"
	"github.com/rovshanmuradov/launchpad-engine/internal/events"
	"github.com/rovshanmuradov/launchpad-engine/internal/ledger"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

var (
	ErrScheduleNotFound  = errors.New("vesting: schedule not found")
	ErrScheduleRevoked   = errors.New("vesting: schedule already revoked")
	ErrNoClaimableAmount = errors.New("vesting: nothing claimable")
	ErrInvalidAmount     = errors.New("vesting: zero amount for non-burn allocation")
	ErrLedgerNotFound    = errors.New("vesting: no ledger registered for asset")
	ErrAmountOverflow    = errors.New("vesting: amount overflow")
)

// Mode selects how a schedule unlocks.
type Mode uint8

const (
	// ModeBurn records an allocation that was burned instead of escrowed.
	// Never claimable, no-op on revoke.
	ModeBurn Mode = iota
	// ModeCliff unlocks nothing until EndTime, then everything. There is no
	// partial unlock before the end; it is an all-or-nothing lock.
	ModeCliff
	// ModeLinear unlocks proportionally to elapsed time.
	ModeLinear
)

func (m Mode) String() string {
	switch m {
	case ModeBurn:
		return "burn"
	case ModeCliff:
		return "cliff"
	case ModeLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// Schedule is one unlock record. Claimed is monotonically non-decreasing
// and never exceeds Total.
type Schedule struct {
	ID        uint64
	Total     uint64
	Claimed   uint64
	StartTime int64
	EndTime   int64
	Mode      Mode
	Revoked   bool
}

// Allocation is the input for one schedule.
type Allocation struct {
	Amount    uint64
	Mode      Mode
	StartTime int64 // unix seconds; 0 means "now"
	Duration  int64 // seconds from StartTime to full unlock
}

// Engine is the vesting state machine. Escrowed tokens sit on the engine's
// own account of each asset ledger; the only state shared with the
// orchestrator is the asset identifier.
type Engine struct {
	mu       sync.Mutex
	logger   *zap.Logger
	bus      *events.Bus
	registry *ledger.Registry
	account  types.Address
	now      func() time.Time

	books  map[types.Address]map[types.Address][]*Schedule
	locked map[types.Address]uint64
}

func NewEngine(logger *zap.Logger, bus *events.Bus, registry *ledger.Registry, account types.Address) *Engine {
	return &Engine{
		logger:   logger.Named("vesting"),
		bus:      bus,
		registry: registry,
		account:  account,
		now:      time.Now,
		books:    make(map[types.Address]map[types.Address][]*Schedule),
		locked:   make(map[types.Address]uint64),
	}
}

// Account returns the engine's escrow account address.
func (e *Engine) Account() types.Address {
	return e.account
}

// CreateSchedules records one schedule per allocation for the beneficiary,
// pulling the sum of all non-burn amounts from the funder in a single
// transfer. Burn-mode allocations are recorded without escrow.
func (e *Engine) CreateSchedules(ctx context.Context, asset, funder, beneficiary types.Address, allocations []Allocation) ([]uint64, error) {
	if len(allocations) == 0 {
		return nil, nil
	}
	var total uint64
	for _, a := range allocations {
		if a.Mode == ModeBurn {
			continue
		}
		if a.Amount == 0 {
			return nil, errs.New(errs.KindValidation, ErrInvalidAmount)
		}
		sum := total + a.Amount
		if sum < total {
			return nil, errs.New(errs.KindValidation, ErrAmountOverflow)
		}
		total = sum
	}

	l, ok := e.registry.Get(asset)
	if !ok {
		return nil, errs.New(errs.KindValidation, ErrLedgerNotFound)
	}
	// One external call per batch, before any schedule is recorded: if the
	// pull fails nothing was written.
	if total > 0 {
		if err := l.TransferFrom(ctx, e.account, funder, e.account, total); err != nil {
			return nil, errs.New(errs.KindTransfer, err)
		}
	}

	now := e.now().Unix()
	e.mu.Lock()
	if e.books[asset] == nil {
		e.books[asset] = make(map[types.Address][]*Schedule)
	}
	book := e.books[asset][beneficiary]
	ids := make([]uint64, 0, len(allocations))
	created := make([]*Schedule, 0, len(allocations))
	for _, a := range allocations {
		start := a.StartTime
		if start == 0 {
			start = now
		}
		s := &Schedule{
			ID:        uint64(len(book)),
			Total:     a.Amount,
			StartTime: start,
			EndTime:   start + a.Duration,
			Mode:      a.Mode,
		}
		book = append(book, s)
		ids = append(ids, s.ID)
		created = append(created, s)
		if a.Mode != ModeBurn {
			e.locked[asset] += a.Amount
		}
	}
	e.books[asset][beneficiary] = book
	e.mu.Unlock()

	for _, s := range created {
		e.publish(&events.VestingCreatedEvent{
			BaseEvent:   events.Now(events.VestingCreated),
			Asset:       asset,
			Beneficiary: beneficiary,
			ScheduleID:  s.ID,
			Amount:      s.Total,
			Mode:        s.Mode.String(),
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
		})
	}
	e.logger.Info("Vesting schedules created",
		zap.String("asset", asset.Short()),
		zap.String("beneficiary", beneficiary.Short()),
		zap.Int("schedules", len(ids)),
		zap.Uint64("escrowed", total))
	return ids, nil
}

// ClaimableAmount computes the unclaimed unlocked amount of a schedule at
// the given unix time. Pure; revocation is not considered here.
func ClaimableAmount(s Schedule, now int64) uint64 {
	if s.Mode == ModeBurn {
		return 0
	}
	var unlocked uint64
	switch {
	case now <= s.StartTime:
		unlocked = 0
	case now >= s.EndTime:
		unlocked = s.Total
	case s.Mode == ModeCliff:
		unlocked = 0
	default: // linear
		elapsed := uint256.NewInt(uint64(now - s.StartTime))
		span := uint256.NewInt(uint64(s.EndTime - s.StartTime))
		u := new(uint256.Int).Mul(uint256.NewInt(s.Total), elapsed)
		unlocked = u.Div(u, span).Uint64()
	}
	if unlocked <= s.Claimed {
		return 0
	}
	return unlocked - s.Claimed
}

// Claim pays out the claimable amount of one schedule.
func (e *Engine) Claim(ctx context.Context, asset, beneficiary types.Address, scheduleID uint64) (uint64, error) {
	l, ok := e.registry.Get(asset)
	if !ok {
		return 0, errs.New(errs.KindValidation, ErrLedgerNotFound)
	}
	now := e.now().Unix()

	e.mu.Lock()
	s, err := e.find(asset, beneficiary, scheduleID)
	if err != nil {
		e.mu.Unlock()
		return 0, err
	}
	amount := ClaimableAmount(*s, now)
	if amount == 0 {
		e.mu.Unlock()
		return 0, errs.New(errs.KindEconomic, ErrNoClaimableAmount)
	}
	s.Claimed += amount
	e.locked[asset] -= amount
	e.mu.Unlock()

	// State is committed before the external transfer; on failure the
	// claim is rolled back wholesale.
	if err := l.Transfer(ctx, e.account, beneficiary, amount); err != nil {
		e.mu.Lock()
		s.Claimed -= amount
		e.locked[asset] += amount
		e.mu.Unlock()
		return 0, errs.New(errs.KindTransfer, err)
	}

	e.publish(&events.VestingClaimedEvent{
		BaseEvent:   events.Now(events.VestingClaimed),
		Asset:       asset,
		Beneficiary: beneficiary,
		ScheduleID:  scheduleID,
		Amount:      amount,
	})
	return amount, nil
}

// ClaimAll claims across every non-revoked schedule of the beneficiary with
// a single aggregate transfer, regardless of schedule count.
func (e *Engine) ClaimAll(ctx context.Context, asset, beneficiary types.Address) (uint64, error) {
	l, ok := e.registry.Get(asset)
	if !ok {
		return 0, errs.New(errs.KindValidation, ErrLedgerNotFound)
	}
	now := e.now().Unix()

	type part struct {
		s      *Schedule
		amount uint64
	}

	e.mu.Lock()
	book := e.book(asset, beneficiary)
	var parts []part
	var total uint64
	for _, s := range book {
		if s.Revoked {
			continue
		}
		amount := ClaimableAmount(*s, now)
		if amount == 0 {
			continue
		}
		parts = append(parts, part{s: s, amount: amount})
		total += amount
	}
	if total == 0 {
		e.mu.Unlock()
		return 0, errs.New(errs.KindEconomic, ErrNoClaimableAmount)
	}
	for _, p := range parts {
		p.s.Claimed += p.amount
	}
	e.locked[asset] -= total
	e.mu.Unlock()

	if err := l.Transfer(ctx, e.account, beneficiary, total); err != nil {
		e.mu.Lock()
		for _, p := range parts {
			p.s.Claimed -= p.amount
		}
		e.locked[asset] += total
		e.mu.Unlock()
		return 0, errs.New(errs.KindTransfer, err)
	}

	for _, p := range parts {
		e.publish(&events.VestingClaimedEvent{
			BaseEvent:   events.Now(events.VestingClaimed),
			Asset:       asset,
			Beneficiary: beneficiary,
			ScheduleID:  p.s.ID,
			Amount:      p.amount,
		})
	}
	return total, nil
}

// Revoke pays the currently claimable amount to the beneficiary, returns
// the remainder to the revoker, and marks the schedule revoked. Burn-mode
// schedules only flip the flag: nothing was ever escrowed for them.
func (e *Engine) Revoke(ctx context.Context, asset, beneficiary types.Address, scheduleID uint64, revoker types.Address) error {
	l, ok := e.registry.Get(asset)
	if !ok {
		return errs.New(errs.KindValidation, ErrLedgerNotFound)
	}
	now := e.now().Unix()

	e.mu.Lock()
	s, err := e.find(asset, beneficiary, scheduleID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if s.Mode == ModeBurn {
		s.Revoked = true
		e.mu.Unlock()
		e.publish(&events.VestingRevokedEvent{
			BaseEvent:   events.Now(events.VestingRevoked),
			Asset:       asset,
			Beneficiary: beneficiary,
			ScheduleID:  scheduleID,
		})
		return nil
	}
	payout := ClaimableAmount(*s, now)
	remainder := s.Total - s.Claimed - payout
	prevClaimed := s.Claimed
	s.Claimed += payout
	s.Revoked = true
	e.locked[asset] -= payout + remainder
	e.mu.Unlock()

	rollback := func() {
		e.mu.Lock()
		s.Claimed = prevClaimed
		s.Revoked = false
		e.locked[asset] += payout + remainder
		e.mu.Unlock()
	}
	if payout > 0 {
		if err := l.Transfer(ctx, e.account, beneficiary, payout); err != nil {
			rollback()
			return errs.New(errs.KindTransfer, err)
		}
	}
	if remainder > 0 {
		if err := l.Transfer(ctx, e.account, revoker, remainder); err != nil {
			// The beneficiary payout already settled; only the remainder
			// leg is undone.
			e.mu.Lock()
			s.Revoked = false
			e.locked[asset] += remainder
			e.mu.Unlock()
			return errs.New(errs.KindTransfer, err)
		}
	}

	e.publish(&events.VestingRevokedEvent{
		BaseEvent:   events.Now(events.VestingRevoked),
		Asset:       asset,
		Beneficiary: beneficiary,
		ScheduleID:  scheduleID,
		PaidOut:     payout,
		Returned:    remainder,
	})
	return nil
}

// TotalVested aggregates unlock figures across all non-revoked, non-burn
// schedules of the beneficiary: total unlocked, total claimed, and the
// still-locked remainder.
func (e *Engine) TotalVested(asset, beneficiary types.Address) (vested, claimed, locked uint64) {
	now := e.now().Unix()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.book(asset, beneficiary) {
		if s.Revoked || s.Mode == ModeBurn {
			continue
		}
		unlocked := ClaimableAmount(*s, now) + s.Claimed
		vested += unlocked
		claimed += s.Claimed
		locked += s.Total - unlocked
	}
	return vested, claimed, locked
}

// LockedTotal returns the per-asset running locked counter.
func (e *Engine) LockedTotal(asset types.Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked[asset]
}

// Schedules returns a snapshot of the beneficiary's schedules.
func (e *Engine) Schedules(asset, beneficiary types.Address) []Schedule {
	e.mu.Lock()
	defer e.mu.Unlock()
	book := e.book(asset, beneficiary)
	out := make([]Schedule, len(book))
	for i, s := range book {
		out[i] = *s
	}
	return out
}

// SetClock overrides the time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) book(asset, beneficiary types.Address) []*Schedule {
	if e.books[asset] == nil {
		return nil
	}
	return e.books[asset][beneficiary]
}

// find must be called with the mutex held.
func (e *Engine) find(asset, beneficiary types.Address, scheduleID uint64) (*Schedule, error) {
	book := e.book(asset, beneficiary)
	if scheduleID >= uint64(len(book)) {
		return nil, errs.New(errs.KindState, ErrScheduleNotFound)
	}
	s := book[scheduleID]
	if s.Revoked {
		return nil, errs.New(errs.KindState, ErrScheduleRevoked)
	}
	return s, nil
}

func (e *Engine) publish(ev events.Event) {
	if e.bus == nil {
		return
	}
	_ = e.bus.Publish(ev)
}
