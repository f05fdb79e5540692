package launch

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/authz"
	"github.com/rovshanmuradov/launchpad-engine/internal/curve"
	"github.com/rovshanmuradov/launchpad-engine/internal/ledger"
	"github.com/rovshanmuradov/launchpad-engine/internal/sign"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
	"github.com/rovshanmuradov/launchpad-engine/internal/vesting"
)

var (
	engineAcct   = types.AddressFromSeed([]byte("test/engine"))
	vestingAcct  = types.AddressFromSeed([]byte("test/vesting"))
	faucetAcct   = types.AddressFromSeed([]byte("test/faucet"))
	creatorAcct  = types.AddressFromSeed([]byte("test/creator"))
	buyerAcct    = types.AddressFromSeed([]byte("test/buyer"))
	teamAcct     = types.AddressFromSeed([]byte("test/team"))
	operatorAcct = types.AddressFromSeed([]byte("test/operator"))
	adminAcct    = types.AddressFromSeed([]byte("test/admin"))
	feeRecv      = types.AddressFromSeed([]byte("test/fee_receiver"))
	marginRecv   = types.AddressFromSeed([]byte("test/margin_receiver"))
	platformRecv = types.AddressFromSeed([]byte("test/platform_receiver"))
	fallbackRecv = types.AddressFromSeed([]byte("test/fallback_receiver"))
)

const funding = uint64(1) << 50

type testEnv struct {
	t        *testing.T
	o        *Orchestrator
	base     *ledger.Memory
	registry *ledger.Registry
	auth     *authz.Table
	vest     *vesting.Engine
	priv     *btcec.PrivateKey
	params   Params
	now      int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	params := DefaultParams()
	params.ChainID = "launchpad-test"
	params.CreationFee = 1000
	params.FeeReceiver = feeRecv
	params.MarginReceiver = marginRecv
	params.PlatformReceiver = platformRecv
	params.FallbackReceiver = fallbackRecv

	registry := ledger.NewRegistry()
	auth := authz.NewTable()
	vest := vesting.NewEngine(zap.NewNop(), nil, registry, vestingAcct)

	base := ledger.NewMemory("Base Currency", "BASE", 1<<60, engineAcct, faucetAcct)
	require.NoError(t, base.Transfer(ctx, faucetAcct, creatorAcct, funding))
	require.NoError(t, base.Transfer(ctx, faucetAcct, buyerAcct, funding))

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	auth.Grant(sign.AddressOf(priv.PubKey()), authz.PermSigner)
	auth.Grant(operatorAcct, authz.PermOperator)
	auth.Grant(adminAcct, authz.PermAdmin)

	o, err := New(params, Deps{
		Logger:   zap.NewNop(),
		Deployer: ledger.NewMemoryDeployer(zap.NewNop()),
		Registry: registry,
		Base:     base,
		Pool:     ledger.NewMemoryPool(zap.NewNop()),
		Verifier: sign.Secp256k1{},
		Auth:     auth,
		Vesting:  vest,
		Account:  engineAcct,
	})
	require.NoError(t, err)

	env := &testEnv{
		t: t, o: o, base: base, registry: registry,
		auth: auth, vest: vest, priv: priv, params: params,
		now: 1_000_000,
	}
	clock := func() time.Time { return time.Unix(env.now, 0) }
	o.SetClock(clock)
	vest.SetClock(clock)
	return env
}

func (e *testEnv) request(mutate func(*CreateRequest)) CreateRequest {
	req := CreateRequest{
		RequestID:   types.AddressFromSeed([]byte("test/request")),
		Name:        "Test Token",
		Symbol:      "TEST",
		TotalSupply: 1_000_000,
		SaleAmount:  800_000,
		Timestamp:   e.now,
		Nonce:       1,
		Creator:     creatorAcct,
	}
	if mutate != nil {
		mutate(&req)
	}
	return req
}

func (e *testEnv) signRequest(req CreateRequest) []byte {
	digest := sign.Digest(req.Encode(), e.params.ChainID, e.o.Account())
	return sign.SignCompact(e.priv, digest)
}

func (e *testEnv) create(req CreateRequest) (types.Address, error) {
	ctx := context.Background()
	require.NoError(e.t, e.base.Approve(ctx, creatorAcct, engineAcct, funding))
	return e.o.CreateToken(ctx, creatorAcct, req, e.signRequest(req), funding)
}

func (e *testEnv) mustCreate(req CreateRequest) types.Address {
	asset, err := e.create(req)
	require.NoError(e.t, err)
	return asset
}

func (e *testEnv) assetLedger(asset types.Address) ledger.AssetLedger {
	l, ok := e.registry.Get(asset)
	require.True(e.t, ok)
	return l
}

func (e *testEnv) balance(l ledger.AssetLedger, addr types.Address) uint64 {
	bal, err := l.BalanceOf(context.Background(), addr)
	require.NoError(e.t, err)
	return bal
}

func TestCreateTokenEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	creatorBefore := env.balance(env.base, creatorAcct)
	req := env.request(func(r *CreateRequest) {
		r.InitialBuyBp = 1000 // 10% of supply
		r.MarginAmount = 5000
	})
	asset := env.mustCreate(req)

	l, err := env.o.GetLaunch(asset)
	require.NoError(t, err)
	assert.Equal(t, StatusTrading, l.Status)
	assert.Equal(t, uint64(1_000_000), l.TotalSupply)
	assert.Equal(t, ledger.PairAddress(asset), l.LiquidityPair)

	// 15% of the sale amount.
	assert.Equal(t, uint64(120_000), l.GraduationThreshold)

	// Initial buy: 100k tokens to the creator, 700k left on the curve.
	tokens := env.assetLedger(asset)
	assert.Equal(t, uint64(100_000), env.balance(tokens, creatorAcct))
	assert.Equal(t, uint64(700_000), l.Curve.AvailableTokens)

	// The creator paid creation fee + margin + the exact initial-buy cost;
	// the rest of the attached payment never moved.
	vToken0, err := curve.BpShare(req.SaleAmount, env.params.VirtualTokenReserveBp)
	require.NoError(t, err)
	st, err := curve.NewState(env.params.VirtualBaseReserve, vToken0, req.SaleAmount)
	require.NoError(t, err)
	netBase, err := curve.RequiredInputFor(st, 100_000)
	require.NoError(t, err)
	preBuyFee, err := curve.Fee(netBase, env.params.TradingFeeBp)
	require.NoError(t, err)
	wantPaid := env.params.CreationFee + req.MarginAmount + netBase + preBuyFee
	assert.Equal(t, wantPaid, creatorBefore-env.balance(env.base, creatorAcct))

	assert.Equal(t, netBase, l.Curve.CollectedBase)
	assert.Equal(t, env.params.CreationFee+preBuyFee, env.balance(env.base, feeRecv))
	assert.Equal(t, req.MarginAmount, env.balance(env.base, marginRecv))

	_ = ctx
}

func TestCreateTokenRoutesVestingAllocations(t *testing.T) {
	env := newTestEnv(t)

	req := env.request(func(r *CreateRequest) {
		r.VestingBp = 1000 // 100k token pool
		r.LaunchTime = env.now + 3600
		r.Allocations = []AllocationRequest{
			{Beneficiary: teamAcct, ShareBp: 5000, Mode: vesting.ModeLinear, Duration: 1000},
			{Beneficiary: teamAcct, ShareBp: 3000, Mode: vesting.ModeCliff, Duration: 500},
			{ShareBp: 2000, Mode: vesting.ModeBurn},
		}
	})
	asset := env.mustCreate(req)
	tokens := env.assetLedger(asset)

	// 80k escrowed, 20k burned, nothing with the creator.
	assert.Equal(t, uint64(80_000), env.balance(tokens, vestingAcct))
	assert.Equal(t, uint64(20_000), env.balance(tokens, types.BurnAddress))
	assert.Equal(t, uint64(0), env.balance(tokens, creatorAcct))
	assert.Equal(t, uint64(80_000), env.vest.LockedTotal(asset))

	schedules := env.vest.Schedules(asset, teamAcct)
	require.Len(t, schedules, 2)
	assert.Equal(t, req.LaunchTime, schedules[0].StartTime)
	assert.Equal(t, uint64(50_000), schedules[0].Total)
	assert.Equal(t, vesting.ModeLinear, schedules[0].Mode)
	assert.Equal(t, uint64(30_000), schedules[1].Total)

	// Halfway through the linear schedule.
	env.now = req.LaunchTime + 500
	paid, err := env.vest.Claim(context.Background(), asset, teamAcct, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(25_000), paid)
}

func TestVestingResidueGoesToFinalNonBurnAllocation(t *testing.T) {
	env := newTestEnv(t)

	req := env.request(func(r *CreateRequest) {
		r.TotalSupply = 1_000_001 // pool of 100_000 (floor), shares leave residue
		r.VestingBp = 1000
		r.Allocations = []AllocationRequest{
			{Beneficiary: teamAcct, ShareBp: 3333, Mode: vesting.ModeLinear, Duration: 1000},
			{Beneficiary: teamAcct, ShareBp: 3333, Mode: vesting.ModeLinear, Duration: 1000},
		}
	})
	asset := env.mustCreate(req)

	schedules := env.vest.Schedules(asset, teamAcct)
	require.Len(t, schedules, 2)
	var total uint64
	for _, s := range schedules {
		total += s.Total
	}
	// Both shares floor to 33_330; the 33_340 residue tops up the final one.
	assert.Equal(t, uint64(100_000), total)
	assert.Greater(t, schedules[1].Total, schedules[0].Total)
}

func TestCreateTokenRejectsReplay(t *testing.T) {
	env := newTestEnv(t)

	req := env.request(nil)
	env.mustCreate(req)

	// Same request id, fresh nonce: still a replay.
	req.Nonce = 2
	_, err := env.create(req)
	assert.ErrorIs(t, err, ErrRequestReplayed)
}

func TestCreateTokenRejectsUnrecognizedSigner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rogue, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	req := env.request(nil)
	digest := sign.Digest(req.Encode(), env.params.ChainID, env.o.Account())
	sig := sign.SignCompact(rogue, digest)

	require.NoError(t, env.base.Approve(ctx, creatorAcct, engineAcct, funding))
	_, err = env.o.CreateToken(ctx, creatorAcct, req, sig, funding)
	assert.ErrorIs(t, err, ErrInvalidSigner)
}

func TestCreateTokenRejectsExpiredRequest(t *testing.T) {
	env := newTestEnv(t)

	req := env.request(nil)
	env.now += int64(env.params.RequestExpiry.Seconds()) + 1
	_, err := env.create(req)
	assert.ErrorIs(t, err, ErrRequestExpired)
}

func TestCreateTokenRejectsUnderfundedPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.request(func(r *CreateRequest) { r.MarginAmount = 5000 })
	require.NoError(t, env.base.Approve(ctx, creatorAcct, engineAcct, funding))
	_, err := env.o.CreateToken(ctx, creatorAcct, req, env.signRequest(req), 10)
	assert.ErrorIs(t, err, ErrInsufficientFee)

	// A failed creation must not consume the request id.
	_, err = env.create(req)
	assert.NoError(t, err)
}

func TestBuySellRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(nil))
	tokens := env.assetLedger(asset)
	deadline := env.now + 60

	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))
	buyerBefore := env.balance(env.base, buyerAcct)

	buy, err := env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 0, deadline)
	require.NoError(t, err)
	assert.NotZero(t, buy.TokensOut)
	assert.Equal(t, uint64(1_000_000_000), buy.BasePaid)
	assert.Zero(t, buy.Refund)
	assert.Equal(t, buy.TokensOut, env.balance(tokens, buyerAcct))
	assert.Equal(t, buy.BasePaid, buyerBefore-env.balance(env.base, buyerAcct))

	require.NoError(t, tokens.Approve(ctx, buyerAcct, engineAcct, buy.TokensOut))
	sell, err := env.o.Sell(ctx, buyerAcct, asset, buy.TokensOut, 0, deadline)
	require.NoError(t, err)
	assert.Zero(t, env.balance(tokens, buyerAcct))

	// Fees on both legs guarantee the roundtrip loses value.
	assert.Less(t, sell.BaseOut, buy.BasePaid)
}

func TestBuyEnforcesSlippageAndDeadline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(nil))
	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))

	_, err := env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 1<<62, env.now+60)
	assert.ErrorIs(t, err, ErrSlippageExceeded)

	_, err = env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 0, env.now-1)
	assert.ErrorIs(t, err, ErrTransactionExpired)

	drift := int64(env.params.MaxDeadlineDrift.Seconds())
	_, err = env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 0, env.now+drift+100)
	assert.ErrorIs(t, err, ErrTransactionExpired)
}

func TestBuyRespectsLaunchTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(func(r *CreateRequest) {
		r.LaunchTime = env.now + 3600
	}))
	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))

	_, err := env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 0, env.now+60)
	assert.ErrorIs(t, err, ErrTokenNotLaunched)

	env.now += 3600
	_, err = env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 0, env.now+60)
	assert.NoError(t, err)
}

func TestClippedBuyRefundsExactly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(nil))
	tokens := env.assetLedger(asset)
	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))
	buyerBefore := env.balance(env.base, buyerAcct)

	// Far more than the whole sale supply costs.
	payment := uint64(500_000_000_000)
	buy, err := env.o.Buy(ctx, buyerAcct, asset, payment, 0, env.now+60)
	require.NoError(t, err)

	// Clipped to the full remaining supply, paying exactly its price.
	assert.Equal(t, uint64(800_000), buy.TokensOut)
	assert.Equal(t, uint64(800_000), env.balance(tokens, buyerAcct))
	assert.Equal(t, payment-buy.BasePaid, buy.Refund)
	assert.Equal(t, buy.BasePaid, buyerBefore-env.balance(env.base, buyerAcct))
	assert.Less(t, buy.BasePaid, payment)

	// Selling out moved the launch past the graduation threshold.
	assert.Equal(t, StatusPendingGraduation, env.o.StatusOf(asset))

	// Secondary transfers are frozen until graduation completes.
	err = tokens.Transfer(ctx, buyerAcct, teamAcct, 1)
	assert.Error(t, err)
}

func TestGraduationSplitsReserves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(func(r *CreateRequest) {
		r.InitialBuyBp = 1000
	}))
	tokens := env.assetLedger(asset)
	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))

	_, err := env.o.Buy(ctx, buyerAcct, asset, 500_000_000_000, 0, env.now+60)
	require.NoError(t, err)
	require.Equal(t, StatusPendingGraduation, env.o.StatusOf(asset))

	// Only the operator may graduate.
	_, err = env.o.GraduateToken(ctx, buyerAcct, asset)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	l, err := env.o.GetLaunch(asset)
	require.NoError(t, err)
	collected := l.Curve.CollectedBase
	engineTokens := env.balance(tokens, engineAcct)
	creatorBefore := env.balance(env.base, creatorAcct)

	res, err := env.o.GraduateToken(ctx, operatorAcct, asset)
	require.NoError(t, err)
	assert.Equal(t, StatusGraduated, env.o.StatusOf(asset))

	// Split sums to the collected base exactly.
	assert.Equal(t, collected, res.PlatformFee+res.CreatorFee+res.LiquidityBase)
	assert.Equal(t, res.PlatformFee, env.balance(env.base, platformRecv))
	assert.Equal(t, res.CreatorFee, env.balance(env.base, creatorAcct)-creatorBefore)

	pair := ledger.PairAddress(asset)
	assert.Equal(t, res.LiquidityBase, env.balance(env.base, pair))
	assert.Equal(t, engineTokens, env.balance(tokens, pair))
	assert.Zero(t, env.balance(tokens, engineAcct))

	// Transfers unfreeze after graduation.
	require.NoError(t, tokens.Transfer(ctx, buyerAcct, teamAcct, 1))

	// A graduated launch cannot graduate twice or trade on the curve.
	_, err = env.o.GraduateToken(ctx, operatorAcct, asset)
	assert.ErrorIs(t, err, ErrWrongStatus)
	_, err = env.o.Buy(ctx, buyerAcct, asset, 1_000_000, 0, env.now+60)
	assert.ErrorIs(t, err, ErrTokenNotTrading)
}

func TestPauseBlocksTrading(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(nil))
	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))

	require.NoError(t, env.o.PauseToken(ctx, adminAcct, asset))
	_, err := env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 0, env.now+60)
	assert.ErrorIs(t, err, ErrTokenNotTrading)

	require.NoError(t, env.o.UnpauseToken(ctx, adminAcct, asset))
	_, err = env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 0, env.now+60)
	assert.NoError(t, err)

	// Only admins may pause.
	err = env.o.PauseToken(ctx, buyerAcct, asset)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestBlacklistLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(nil))
	require.NoError(t, env.o.BlacklistToken(ctx, adminAcct, asset))
	assert.Equal(t, StatusBlacklisted, env.o.StatusOf(asset))

	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))
	_, err := env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 0, env.now+60)
	assert.ErrorIs(t, err, ErrTokenNotTrading)

	require.NoError(t, env.o.RemoveFromBlacklist(ctx, adminAcct, asset))
	assert.Equal(t, StatusTrading, env.o.StatusOf(asset))
}

func TestReentrantBuyIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(nil))
	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))

	var reentrantErr error
	env.base.AddHook(func(hookCtx context.Context, _, _ types.Address, _ uint64) {
		if reentrantErr == nil {
			_, reentrantErr = env.o.Buy(hookCtx, buyerAcct, asset, 1_000_000, 0, env.now+60)
		}
	})

	_, err := env.o.Buy(ctx, buyerAcct, asset, 1_000_000_000, 0, env.now+60)
	require.NoError(t, err)
	assert.ErrorIs(t, reentrantErr, ErrReentrantCall)
}

func TestStatsTrackTrades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(nil))
	tokens := env.assetLedger(asset)
	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))

	buy, err := env.o.Buy(ctx, buyerAcct, asset, 2_000_000_000, 0, env.now+60)
	require.NoError(t, err)
	require.NoError(t, tokens.Approve(ctx, buyerAcct, engineAcct, buy.TokensOut))
	_, err = env.o.Sell(ctx, buyerAcct, asset, buy.TokensOut/2, 0, env.now+60)
	require.NoError(t, err)

	stats := env.o.Stats(asset)
	assert.Equal(t, uint64(2), stats.Trades)
	assert.NotZero(t, stats.BuyVolume)
	assert.NotZero(t, stats.SellVolume)
	assert.NotEmpty(t, stats.LastPrice)
}

func TestQuotesMatchExecution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	asset := env.mustCreate(env.request(nil))
	require.NoError(t, env.base.Approve(ctx, buyerAcct, engineAcct, funding))

	payment := uint64(3_000_000_000)
	quotedTokens, quotedPaid, quotedFee, err := env.o.BuyQuote(asset, payment)
	require.NoError(t, err)

	buy, err := env.o.Buy(ctx, buyerAcct, asset, payment, 0, env.now+60)
	require.NoError(t, err)
	assert.Equal(t, quotedTokens, buy.TokensOut)
	assert.Equal(t, quotedPaid, buy.BasePaid)
	assert.Equal(t, quotedFee, buy.Fee)
}

func TestAdminSettersEnforceBounds(t *testing.T) {
	env := newTestEnv(t)

	assert.ErrorIs(t, env.o.SetTradingFee(buyerAcct, 50), ErrNotAuthorized)
	assert.ErrorIs(t, env.o.SetTradingFee(adminAcct, MaxTradingFeeBp+1), ErrFeeTooHigh)
	require.NoError(t, env.o.SetTradingFee(adminAcct, 50))
	assert.Equal(t, uint32(50), env.o.Params().TradingFeeBp)

	assert.ErrorIs(t, env.o.SetCreationFee(adminAcct, env.params.MaxCreationFee+1), ErrFeeTooHigh)
	require.NoError(t, env.o.SetCreationFee(adminAcct, 42))

	assert.ErrorIs(t, env.o.SetFeeReceiver(adminAcct, types.ZeroAddress), ErrZeroAddress)
	require.NoError(t, env.o.SetFeeReceiver(adminAcct, teamAcct))
	assert.Equal(t, teamAcct, env.o.Params().FeeReceiver)
}

func TestCreateTokenValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"empty name", func(r *CreateRequest) { r.Name = "" }},
		{"zero request id", func(r *CreateRequest) { r.RequestID = [32]byte{} }},
		{"zero creator", func(r *CreateRequest) { r.Creator = types.ZeroAddress }},
		{"sale above supply", func(r *CreateRequest) { r.SaleAmount = r.TotalSupply + 1 }},
		{"zero sale", func(r *CreateRequest) { r.SaleAmount = 0 }},
		{"initial buy above cap", func(r *CreateRequest) { r.InitialBuyBp = env.params.MaxInitialBuyBp + 1 }},
		{"initial buy above sale", func(r *CreateRequest) {
			r.SaleAmount = 100_000
			r.InitialBuyBp = 2000 // 200k of supply > 100k sale
		}},
		{"vesting pool exceeds non-sale supply", func(r *CreateRequest) {
			r.VestingBp = 3000 // 300k > 200k non-sale
			r.Allocations = []AllocationRequest{
				{Beneficiary: teamAcct, ShareBp: 10000, Mode: vesting.ModeLinear, Duration: 100},
			}
		}},
		{"allocations without pool", func(r *CreateRequest) {
			r.Allocations = []AllocationRequest{
				{Beneficiary: teamAcct, ShareBp: 10000, Mode: vesting.ModeLinear, Duration: 100},
			}
		}},
		{"pool without allocations", func(r *CreateRequest) { r.VestingBp = 1000 }},
		{"allocation shares above 100%", func(r *CreateRequest) {
			r.VestingBp = 1000
			r.Allocations = []AllocationRequest{
				{Beneficiary: teamAcct, ShareBp: 6000, Mode: vesting.ModeLinear, Duration: 100},
				{Beneficiary: teamAcct, ShareBp: 6000, Mode: vesting.ModeLinear, Duration: 100},
			}
		}},
		{"non-burn with zero duration", func(r *CreateRequest) {
			r.VestingBp = 1000
			r.Allocations = []AllocationRequest{
				{Beneficiary: teamAcct, ShareBp: 10000, Mode: vesting.ModeLinear},
			}
		}},
		{"non-burn with zero beneficiary", func(r *CreateRequest) {
			r.VestingBp = 1000
			r.Allocations = []AllocationRequest{
				{ShareBp: 10000, Mode: vesting.ModeLinear, Duration: 100},
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.create(env.request(tc.mutate))
			assert.Error(t, err)
		})
	}
}

// flakyAssetDeployer hands out asset ledgers whose escrow pulls start
// failing once the budget runs out.
type flakyAssetDeployer struct {
	ledger.Deployer
	pullBudget int
}

func (d *flakyAssetDeployer) Deploy(ctx context.Context, spec ledger.DeploySpec) (types.Address, ledger.AssetLedger, error) {
	asset, l, err := d.Deployer.Deploy(ctx, spec)
	if err != nil {
		return asset, l, err
	}
	return asset, &flakyAssetLedger{AssetLedger: l, budget: &d.pullBudget}, nil
}

type flakyAssetLedger struct {
	ledger.AssetLedger
	budget *int
}

func (f *flakyAssetLedger) TransferFrom(ctx context.Context, spender, from, to types.Address, amount uint64) error {
	if *f.budget == 0 {
		return assert.AnError
	}
	*f.budget--
	return f.AssetLedger.TransferFrom(ctx, spender, from, to, amount)
}

func TestCreateTokenUnwindsPartialVestingSetup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// The first beneficiary's escrow pull succeeds, the second fails.
	flaky := &flakyAssetDeployer{
		Deployer:   ledger.NewMemoryDeployer(zap.NewNop()),
		pullBudget: 1,
	}
	o, err := New(env.params, Deps{
		Logger:   zap.NewNop(),
		Deployer: flaky,
		Registry: env.registry,
		Base:     env.base,
		Pool:     ledger.NewMemoryPool(zap.NewNop()),
		Verifier: sign.Secp256k1{},
		Auth:     env.auth,
		Vesting:  env.vest,
		Account:  engineAcct,
	})
	require.NoError(t, err)
	o.SetClock(func() time.Time { return time.Unix(env.now, 0) })

	req := env.request(func(r *CreateRequest) {
		r.VestingBp = 1000
		r.LaunchTime = env.now + 3600
		r.Allocations = []AllocationRequest{
			{Beneficiary: teamAcct, ShareBp: 5000, Mode: vesting.ModeLinear, Duration: 1000},
			{Beneficiary: buyerAcct, ShareBp: 5000, Mode: vesting.ModeLinear, Duration: 1000},
		}
	})
	creatorBefore := env.balance(env.base, creatorAcct)
	require.NoError(t, env.base.Approve(ctx, creatorAcct, engineAcct, funding))
	_, err = o.CreateToken(ctx, creatorAcct, req, env.signRequest(req), funding)
	require.Error(t, err)

	// The payment came back in full and no launch state survived.
	assert.Equal(t, creatorBefore, env.balance(env.base, creatorAcct))
	asset := flaky.PredictAddress(ledger.DeploySpec{
		Name:        req.Name,
		Symbol:      req.Symbol,
		TotalSupply: req.TotalSupply,
		Controller:  engineAcct,
		Timestamp:   req.Timestamp,
		Nonce:       req.Nonce,
	})
	_, registered := env.registry.Get(asset)
	assert.False(t, registered)
	_, err = o.GetLaunch(asset)
	assert.Error(t, err)

	// The batch that landed before the failure is revoked, not left
	// claimable against a dead asset.
	schedules := env.vest.Schedules(asset, teamAcct)
	require.Len(t, schedules, 1)
	assert.True(t, schedules[0].Revoked)
	assert.Zero(t, env.vest.LockedTotal(asset))
}
