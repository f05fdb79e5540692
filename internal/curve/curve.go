// ==============================================
// File: internal/curve/curve.go
// ==============================================
// Package curve implements the constant-product bonding-curve math.
//
// Every function here is pure: it takes a State snapshot by value and
// returns a result without touching shared state. The orchestrator owns the
// live per-asset State and feeds snapshots in.
package curve

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// PriceScale is the fixed-point scale for SpotPrice (1e18).
var PriceScale = uint256.NewInt(1_000_000_000_000_000_000)

var (
	ErrInvalidCurve          = errors.New("curve: invalid curve state")
	ErrAmountOverflow        = errors.New("curve: amount overflows 64 bits")
	ErrInsufficientLiquidity = errors.New("curve: insufficient token liquidity")
	ErrInvalidFeeRate        = errors.New("curve: fee rate out of range")
)

// State is a snapshot of one asset's bonding curve.
//
// Invariant: VirtualBaseReserve and VirtualTokenReserve are always > 0 while
// the curve is live, and VirtualBaseReserve × VirtualTokenReserve never
// exceeds K. K is fixed at creation and never changes.
type State struct {
	VirtualBaseReserve  uint64
	VirtualTokenReserve uint64
	K                   uint256.Int
	AvailableTokens     uint64
	CollectedBase       uint64
}

// NewState builds the initial curve state. K is computed from the initial
// virtual reserves, so the product starts exactly at K.
func NewState(virtualBase, virtualToken, availableTokens uint64) (State, error) {
	if virtualBase == 0 || virtualToken == 0 {
		return State{}, ErrInvalidCurve
	}
	var k uint256.Int
	k.Mul(uint256.NewInt(virtualBase), uint256.NewInt(virtualToken))
	return State{
		VirtualBaseReserve:  virtualBase,
		VirtualTokenReserve: virtualToken,
		K:                   k,
		AvailableTokens:     availableTokens,
	}, nil
}

// Valid reports whether the snapshot satisfies the structural invariants.
func (s State) Valid() bool {
	if s.VirtualBaseReserve == 0 || s.VirtualTokenReserve == 0 || s.K.IsZero() {
		return false
	}
	return Slack(s).Sign() >= 0
}

// Slack returns K − virtualBase × virtualToken. Non-negative for any valid
// state, and monotonically non-increasing under ApplyBuy/ApplySell.
func Slack(s State) *uint256.Int {
	var product uint256.Int
	product.Mul(uint256.NewInt(s.VirtualBaseReserve), uint256.NewInt(s.VirtualTokenReserve))
	return new(uint256.Int).Sub(&s.K, &product)
}

// QuoteBuy prices a buy of baseIn against the snapshot. Floor division,
// output clamped at zero.
func QuoteBuy(s State, baseIn uint64) (uint64, error) {
	_, tokenOut, err := buyReserves(s, baseIn)
	return tokenOut, err
}

// QuoteBuyWithFee extracts the buy-side fee from the input before pricing.
// The buy fee is taken on input; the sell fee is taken on output. The
// asymmetry is part of the pricing contract.
func QuoteBuyWithFee(s State, baseIn uint64, feeRateBp uint32) (tokenOut, netBase, feeBase uint64, err error) {
	feeBase, err = Fee(baseIn, feeRateBp)
	if err != nil {
		return 0, 0, 0, err
	}
	netBase = baseIn - feeBase
	tokenOut, err = QuoteBuy(s, netBase)
	if err != nil {
		return 0, 0, 0, err
	}
	return tokenOut, netBase, feeBase, nil
}

// QuoteSell prices a sell of tokenIn against the snapshot. Floor division,
// output clamped at zero.
func QuoteSell(s State, tokenIn uint64) (uint64, error) {
	_, baseOut, err := sellReserves(s, tokenIn)
	return baseOut, err
}

// QuoteSellWithFee prices a sell and splits the fee off the gross proceeds.
func QuoteSellWithFee(s State, tokenIn uint64, feeRateBp uint32) (netBase, feeBase uint64, err error) {
	gross, err := QuoteSell(s, tokenIn)
	if err != nil {
		return 0, 0, err
	}
	feeBase, err = Fee(gross, feeRateBp)
	if err != nil {
		return 0, 0, err
	}
	return gross - feeBase, feeBase, nil
}

// RequiredInputFor is the inverse of QuoteBuy: the net base input that moves
// the curve to exactly tokenOut tokens sold. Used when a requested purchase
// is clipped to the remaining supply and must be re-priced, and for sizing
// the creator's initial buy directly from the constant-product relation.
func RequiredInputFor(s State, tokenOut uint64) (uint64, error) {
	if tokenOut == 0 {
		return 0, nil
	}
	_, baseIn, err := exactBuyReserves(s, tokenOut)
	return baseIn, err
}

// SpotPrice returns virtualBase × PriceScale / virtualToken.
func SpotPrice(s State) (*uint256.Int, error) {
	if s.VirtualTokenReserve == 0 {
		return nil, ErrInvalidCurve
	}
	price := new(uint256.Int).Mul(uint256.NewInt(s.VirtualBaseReserve), PriceScale)
	return price.Div(price, uint256.NewInt(s.VirtualTokenReserve)), nil
}

// SpotPriceDecimal renders the spot price as a decimal in whole base units
// per whole token, given the two assets' decimal places. View-only helper
// for off-system quoting.
func SpotPriceDecimal(s State, baseDecimals, tokenDecimals int32) (decimal.Decimal, error) {
	if s.VirtualTokenReserve == 0 {
		return decimal.Zero, ErrInvalidCurve
	}
	base := decimal.New(int64(s.VirtualBaseReserve), -baseDecimals)
	token := decimal.New(int64(s.VirtualTokenReserve), -tokenDecimals)
	return base.DivRound(token, 18), nil
}

// ApplyBuy advances the snapshot by a net (post-fee) base input and returns
// the new state together with the granted token output.
func ApplyBuy(s State, netBase uint64) (State, uint64, error) {
	newBase, tokenOut, err := buyReserves(s, netBase)
	if err != nil {
		return State{}, 0, err
	}
	if tokenOut > s.AvailableTokens {
		return State{}, 0, ErrInsufficientLiquidity
	}
	next := s
	next.VirtualBaseReserve = newBase
	next.VirtualTokenReserve = s.VirtualTokenReserve - tokenOut
	next.AvailableTokens = s.AvailableTokens - tokenOut
	next.CollectedBase, err = addU64(s.CollectedBase, netBase)
	if err != nil {
		return State{}, 0, err
	}
	return next, tokenOut, nil
}

// ApplyBuyExact advances the snapshot so that exactly tokenOut tokens leave
// the curve, returning the net base input the constant-product relation
// demands for them.
func ApplyBuyExact(s State, tokenOut uint64) (State, uint64, error) {
	if tokenOut > s.AvailableTokens {
		return State{}, 0, ErrInsufficientLiquidity
	}
	newBase, netBase, err := exactBuyReserves(s, tokenOut)
	if err != nil {
		return State{}, 0, err
	}
	next := s
	next.VirtualBaseReserve = newBase
	next.VirtualTokenReserve = s.VirtualTokenReserve - tokenOut
	next.AvailableTokens = s.AvailableTokens - tokenOut
	next.CollectedBase, err = addU64(s.CollectedBase, netBase)
	if err != nil {
		return State{}, 0, err
	}
	return next, netBase, nil
}

// ApplySell advances the snapshot by a token input and returns the new state
// together with the gross base output (before the sell-side fee).
func ApplySell(s State, tokenIn uint64) (State, uint64, error) {
	newToken, grossBase, err := sellReserves(s, tokenIn)
	if err != nil {
		return State{}, 0, err
	}
	if grossBase > s.CollectedBase {
		return State{}, 0, ErrInsufficientLiquidity
	}
	next := s
	next.VirtualBaseReserve = s.VirtualBaseReserve - grossBase
	next.VirtualTokenReserve = newToken
	next.AvailableTokens, err = addU64(s.AvailableTokens, tokenIn)
	if err != nil {
		return State{}, 0, err
	}
	next.CollectedBase = s.CollectedBase - grossBase
	return next, grossBase, nil
}

// Fee returns floor(amount × feeRateBp / 10000) with checked arithmetic.
// Fee rates above the full denominator are rejected.
func Fee(amount uint64, feeRateBp uint32) (uint64, error) {
	if feeRateBp > types.BpDenominator {
		return 0, ErrInvalidFeeRate
	}
	return BpShare(amount, feeRateBp)
}

// BpShare returns floor(amount × bp / 10000). The same floor division backs
// allocation shares, thresholds, and reserve ratios; ratios above the
// denominator are legal here and scale the amount up.
func BpShare(amount uint64, bp uint32) (uint64, error) {
	share := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(bp)))
	share.Div(share, uint256.NewInt(types.BpDenominator))
	return toU64(share)
}

// GrossForNet returns the smallest gross amount whose post-fee remainder
// covers net. Used on the clipped buy path so the refund leaves zero dust.
func GrossForNet(net uint64, feeRateBp uint32) (uint64, error) {
	if feeRateBp >= types.BpDenominator {
		return 0, ErrInvalidFeeRate
	}
	gross := new(uint256.Int).Mul(uint256.NewInt(net), uint256.NewInt(types.BpDenominator))
	gross.Div(gross, uint256.NewInt(types.BpDenominator-uint64(feeRateBp)))
	g, err := toU64(gross)
	if err != nil {
		return 0, err
	}
	// Floor division can land a unit off on either side; walk to the
	// smallest gross that still covers net.
	for {
		fee, err := Fee(g, feeRateBp)
		if err != nil {
			return 0, err
		}
		if g-fee >= net {
			break
		}
		g, err = addU64(g, 1)
		if err != nil {
			return 0, err
		}
	}
	for g > 0 {
		fee, err := Fee(g-1, feeRateBp)
		if err != nil {
			return 0, err
		}
		if g-1-fee < net {
			break
		}
		g--
	}
	return g, nil
}

// buyReserves computes the post-buy reserves for a net base input.
// newToken = floor(K / (virtualBase + netBase)), clamped so the product
// never exceeds K and the token reserve never grows on a buy.
func buyReserves(s State, netBase uint64) (newBase, tokenOut uint64, err error) {
	if s.K.IsZero() || s.VirtualBaseReserve == 0 || s.VirtualTokenReserve == 0 {
		return 0, 0, ErrInvalidCurve
	}
	newBase, err = addU64(s.VirtualBaseReserve, netBase)
	if err != nil {
		return 0, 0, err
	}
	newToken := new(uint256.Int).Div(&s.K, uint256.NewInt(newBase))
	nt, err := toU64(newToken)
	if err != nil {
		return 0, 0, err
	}
	if nt >= s.VirtualTokenReserve {
		return newBase, 0, nil
	}
	return newBase, s.VirtualTokenReserve - nt, nil
}

// sellReserves computes the post-sell reserves for a token input, solving
// for base against the increased token reserve.
func sellReserves(s State, tokenIn uint64) (newToken, grossBase uint64, err error) {
	if s.K.IsZero() || s.VirtualBaseReserve == 0 || s.VirtualTokenReserve == 0 {
		return 0, 0, ErrInvalidCurve
	}
	newToken, err = addU64(s.VirtualTokenReserve, tokenIn)
	if err != nil {
		return 0, 0, err
	}
	newBase := new(uint256.Int).Div(&s.K, uint256.NewInt(newToken))
	nb, err := toU64(newBase)
	if err != nil {
		return 0, 0, err
	}
	if nb >= s.VirtualBaseReserve {
		return newToken, 0, nil
	}
	return newToken, s.VirtualBaseReserve - nb, nil
}

// exactBuyReserves solves the constant-product relation for the base reserve
// that corresponds to exactly tokenOut tokens leaving the curve.
func exactBuyReserves(s State, tokenOut uint64) (newBase, netBase uint64, err error) {
	if s.K.IsZero() || s.VirtualBaseReserve == 0 || s.VirtualTokenReserve == 0 {
		return 0, 0, ErrInvalidCurve
	}
	if tokenOut >= s.VirtualTokenReserve {
		return 0, 0, ErrInsufficientLiquidity
	}
	newToken := s.VirtualTokenReserve - tokenOut
	nb := new(uint256.Int).Div(&s.K, uint256.NewInt(newToken))
	newBase, err = toU64(nb)
	if err != nil {
		return 0, 0, err
	}
	if newBase < s.VirtualBaseReserve {
		// Rounding slack can swallow a tiny purchase entirely.
		return s.VirtualBaseReserve, 0, nil
	}
	return newBase, newBase - s.VirtualBaseReserve, nil
}

func toU64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrAmountOverflow
	}
	return v.Uint64(), nil
}

func addU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}
