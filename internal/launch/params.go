// internal/launch/params.go
package launch

import (
	"errors"
	"time"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

const (
	// MaxTradingFeeBp caps the trading fee at 2%.
	MaxTradingFeeBp = 200
	// MaxGraduationSplitBp caps platform+creator graduation shares so the
	// liquidity side always keeps the majority of proceeds.
	MaxGraduationSplitBp = 3000
)

// Params are the engine's economic parameters. Admin setters mutate them
// within the hard bounds enforced by Validate.
type Params struct {
	ChainID string

	CreationFee    uint64
	MaxCreationFee uint64
	TradingFeeBp   uint32

	PlatformFeeBp uint32 // graduation split
	CreatorFeeBp  uint32 // graduation split

	MaxInitialBuyBp       uint32 // hard cap below 100%, leaves a supply floor
	GraduationThresholdBp uint32 // of SaleAmount

	VirtualBaseReserve    uint64 // base-side virtual reserve at creation
	VirtualTokenReserveBp uint32 // token-side virtual reserve, bp of SaleAmount (>= 10000)

	BaseDecimals  int32
	TokenDecimals int32

	RequestExpiry    time.Duration
	MaxDeadlineDrift time.Duration

	FeeReceiver      types.Address
	MarginReceiver   types.Address
	PlatformReceiver types.Address
	FallbackReceiver types.Address
}

// DefaultParams returns a workable parameter set; the daemon overrides it
// from configuration.
func DefaultParams() Params {
	return Params{
		ChainID:               "launchpad-dev",
		CreationFee:           0,
		MaxCreationFee:        1_000_000_000,
		TradingFeeBp:          100,
		PlatformFeeBp:         500,
		CreatorFeeBp:          200,
		MaxInitialBuyBp:       5000,
		GraduationThresholdBp: 1500,
		VirtualBaseReserve:    30_000_000_000,
		VirtualTokenReserveBp: 13000,
		BaseDecimals:          9,
		TokenDecimals:         6,
		RequestExpiry:         5 * time.Minute,
		MaxDeadlineDrift:      time.Hour,
	}
}

// Validate enforces the hard parameter bounds.
func (p Params) Validate() error {
	if p.ChainID == "" {
		return errors.New("launch: empty chain id")
	}
	if p.TradingFeeBp > MaxTradingFeeBp {
		return ErrFeeTooHigh
	}
	if p.CreationFee > p.MaxCreationFee {
		return ErrFeeTooHigh
	}
	if p.PlatformFeeBp+p.CreatorFeeBp > MaxGraduationSplitBp {
		return ErrFeeTooHigh
	}
	if p.MaxInitialBuyBp >= types.BpDenominator {
		return errors.New("launch: initial buy cap must stay below 100%")
	}
	if p.GraduationThresholdBp == 0 || p.GraduationThresholdBp >= types.BpDenominator {
		return errors.New("launch: graduation threshold out of range")
	}
	if p.VirtualBaseReserve == 0 {
		return errors.New("launch: zero virtual base reserve")
	}
	if p.VirtualTokenReserveBp < types.BpDenominator {
		return errors.New("launch: virtual token reserve below sale amount")
	}
	if p.RequestExpiry <= 0 || p.MaxDeadlineDrift <= 0 {
		return errors.New("launch: non-positive expiry window")
	}
	if p.FallbackReceiver.IsZero() {
		return errors.New("launch: fallback receiver unset")
	}
	return nil
}
