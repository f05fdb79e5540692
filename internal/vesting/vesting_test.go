package vesting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/ledger"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

var (
	testAsset       = types.AddressFromSeed([]byte("test/asset"))
	escrowAccount   = types.AddressFromSeed([]byte("test/escrow"))
	funderAccount   = types.AddressFromSeed([]byte("test/funder"))
	beneficiaryAddr = types.AddressFromSeed([]byte("test/beneficiary"))
	revokerAccount  = types.AddressFromSeed([]byte("test/revoker"))
)

func newTestEngine(t *testing.T) (*Engine, *ledger.Memory) {
	t.Helper()
	registry := ledger.NewRegistry()
	l := ledger.NewMemory("Test Token", "TST", 1_000_000, escrowAccount, funderAccount)
	registry.Register(testAsset, l)

	engine := NewEngine(zap.NewNop(), nil, registry, escrowAccount)
	require.NoError(t, l.Approve(context.Background(), funderAccount, escrowAccount, 1_000_000))
	return engine, l
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestCreateSchedulesEscrowsNonBurnTotal(t *testing.T) {
	engine, l := newTestEngine(t)
	ctx := context.Background()
	engine.SetClock(fixedClock(1000))

	ids, err := engine.CreateSchedules(ctx, testAsset, funderAccount, beneficiaryAddr, []Allocation{
		{Amount: 400, Mode: ModeLinear, StartTime: 1000, Duration: 1000},
		{Amount: 100, Mode: ModeBurn, StartTime: 1000, Duration: 1},
		{Amount: 200, Mode: ModeCliff, StartTime: 1000, Duration: 500},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2}, ids)

	// Burn allocations are recorded without escrow.
	bal, err := l.BalanceOf(ctx, escrowAccount)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), bal)
	assert.Equal(t, uint64(600), engine.LockedTotal(testAsset))
}

func TestCreateSchedulesRejectsZeroNonBurnAmount(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CreateSchedules(context.Background(), testAsset, funderAccount, beneficiaryAddr, []Allocation{
		{Amount: 0, Mode: ModeLinear, Duration: 100},
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLinearUnlocksProportionally(t *testing.T) {
	s := Schedule{Total: 1000, StartTime: 0, EndTime: 1000, Mode: ModeLinear}

	assert.Equal(t, uint64(0), ClaimableAmount(s, 0))
	assert.Equal(t, uint64(500), ClaimableAmount(s, 500))
	assert.Equal(t, uint64(250), ClaimableAmount(s, 250))
	assert.Equal(t, uint64(1000), ClaimableAmount(s, 1000))
	assert.Equal(t, uint64(1000), ClaimableAmount(s, 5000))

	s.Claimed = 300
	assert.Equal(t, uint64(200), ClaimableAmount(s, 500))
}

func TestCliffIsAllOrNothing(t *testing.T) {
	s := Schedule{Total: 1000, StartTime: 0, EndTime: 1000, Mode: ModeCliff}

	assert.Equal(t, uint64(0), ClaimableAmount(s, 999))
	assert.Equal(t, uint64(1000), ClaimableAmount(s, 1000))
}

func TestBurnNeverClaimable(t *testing.T) {
	s := Schedule{Total: 1000, StartTime: 0, EndTime: 1000, Mode: ModeBurn}
	assert.Equal(t, uint64(0), ClaimableAmount(s, 10_000))
}

func TestClaimPaysOutAndAdvancesClaimed(t *testing.T) {
	engine, l := newTestEngine(t)
	ctx := context.Background()
	engine.SetClock(fixedClock(0))

	_, err := engine.CreateSchedules(ctx, testAsset, funderAccount, beneficiaryAddr, []Allocation{
		{Amount: 1000, Mode: ModeLinear, StartTime: 1, Duration: 1000},
	})
	require.NoError(t, err)

	engine.SetClock(fixedClock(501))
	paid, err := engine.Claim(ctx, testAsset, beneficiaryAddr, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), paid)

	bal, err := l.BalanceOf(ctx, beneficiaryAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)
	assert.Equal(t, uint64(500), engine.LockedTotal(testAsset))

	// Claiming again at the same instant yields nothing.
	_, err = engine.Claim(ctx, testAsset, beneficiaryAddr, 0)
	assert.ErrorIs(t, err, ErrNoClaimableAmount)

	// The remainder unlocks at the end.
	engine.SetClock(fixedClock(2000))
	paid, err = engine.Claim(ctx, testAsset, beneficiaryAddr, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), paid)
}

func TestClaimAllAggregatesSchedules(t *testing.T) {
	engine, l := newTestEngine(t)
	ctx := context.Background()
	engine.SetClock(fixedClock(0))

	_, err := engine.CreateSchedules(ctx, testAsset, funderAccount, beneficiaryAddr, []Allocation{
		{Amount: 1000, Mode: ModeLinear, StartTime: 1, Duration: 1000},
		{Amount: 600, Mode: ModeCliff, StartTime: 1, Duration: 400},
		{Amount: 50, Mode: ModeBurn, StartTime: 1, Duration: 1},
	})
	require.NoError(t, err)

	engine.SetClock(fixedClock(501))
	total, err := engine.ClaimAll(ctx, testAsset, beneficiaryAddr)
	require.NoError(t, err)
	// 500 linear + 600 matured cliff; the burn schedule contributes nothing.
	assert.Equal(t, uint64(1100), total)

	bal, err := l.BalanceOf(ctx, beneficiaryAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1100), bal)
}

func TestRevokeSplitsClaimableAndRemainder(t *testing.T) {
	engine, l := newTestEngine(t)
	ctx := context.Background()
	engine.SetClock(fixedClock(0))

	_, err := engine.CreateSchedules(ctx, testAsset, funderAccount, beneficiaryAddr, []Allocation{
		{Amount: 1000, Mode: ModeLinear, StartTime: 1, Duration: 1000},
	})
	require.NoError(t, err)

	engine.SetClock(fixedClock(251))
	require.NoError(t, engine.Revoke(ctx, testAsset, beneficiaryAddr, 0, revokerAccount))

	benBal, err := l.BalanceOf(ctx, beneficiaryAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), benBal)

	revBal, err := l.BalanceOf(ctx, revokerAccount)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), revBal)
	assert.Equal(t, uint64(0), engine.LockedTotal(testAsset))

	// Revoked schedules reject claims and double revocation.
	_, err = engine.Claim(ctx, testAsset, beneficiaryAddr, 0)
	assert.ErrorIs(t, err, ErrScheduleRevoked)
	err = engine.Revoke(ctx, testAsset, beneficiaryAddr, 0, revokerAccount)
	assert.ErrorIs(t, err, ErrScheduleRevoked)
}

func TestRevokeBurnScheduleMovesNothing(t *testing.T) {
	engine, l := newTestEngine(t)
	ctx := context.Background()
	engine.SetClock(fixedClock(0))

	_, err := engine.CreateSchedules(ctx, testAsset, funderAccount, beneficiaryAddr, []Allocation{
		{Amount: 500, Mode: ModeBurn, StartTime: 1, Duration: 1},
	})
	require.NoError(t, err)

	require.NoError(t, engine.Revoke(ctx, testAsset, beneficiaryAddr, 0, revokerAccount))

	revBal, err := l.BalanceOf(ctx, revokerAccount)
	require.NoError(t, err)
	assert.Zero(t, revBal)
}

func TestScheduleIndicesAreAppendOnly(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	engine.SetClock(fixedClock(0))

	_, err := engine.CreateSchedules(ctx, testAsset, funderAccount, beneficiaryAddr, []Allocation{
		{Amount: 100, Mode: ModeLinear, StartTime: 1, Duration: 100},
	})
	require.NoError(t, err)
	require.NoError(t, engine.Revoke(ctx, testAsset, beneficiaryAddr, 0, revokerAccount))

	ids, err := engine.CreateSchedules(ctx, testAsset, funderAccount, beneficiaryAddr, []Allocation{
		{Amount: 100, Mode: ModeLinear, StartTime: 1, Duration: 100},
	})
	require.NoError(t, err)
	// The revoked record keeps its slot; new schedules never reuse indices.
	assert.Equal(t, []uint64{1}, ids)

	schedules := engine.Schedules(testAsset, beneficiaryAddr)
	require.Len(t, schedules, 2)
	assert.True(t, schedules[0].Revoked)
	assert.False(t, schedules[1].Revoked)
}

func TestTotalVested(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	engine.SetClock(fixedClock(0))

	_, err := engine.CreateSchedules(ctx, testAsset, funderAccount, beneficiaryAddr, []Allocation{
		{Amount: 1000, Mode: ModeLinear, StartTime: 1, Duration: 1000},
	})
	require.NoError(t, err)

	engine.SetClock(fixedClock(501))
	_, err = engine.Claim(ctx, testAsset, beneficiaryAddr, 0)
	require.NoError(t, err)

	engine.SetClock(fixedClock(751))
	vested, claimed, locked := engine.TotalVested(testAsset, beneficiaryAddr)
	assert.Equal(t, uint64(750), vested)
	assert.Equal(t, uint64(500), claimed)
	assert.Equal(t, uint64(250), locked)
}
