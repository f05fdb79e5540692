// ==============================================
// File: internal/launch/quotes.go
// ==============================================
package launch

import (
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchpad-engine/internal/curve"
	"github.com/rovshanmuradov/launchpad-engine/internal/errs"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// BuyQuote previews a buy against the current reserves, clipping exactly the
// way Buy would. View only; reserves do not move.
func (o *Orchestrator) BuyQuote(asset types.Address, payment uint64) (tokensOut, basePaid, fee uint64, err error) {
	l, err := o.launch(asset)
	if err != nil {
		return 0, 0, 0, err
	}
	o.mu.Lock()
	snapshot := l.Curve
	feeBp := o.params.TradingFeeBp
	o.mu.Unlock()

	fee, err = curve.Fee(payment, feeBp)
	if err != nil {
		return 0, 0, 0, errs.New(errs.KindValidation, err)
	}
	quoted, err := curve.QuoteBuy(snapshot, payment-fee)
	if err != nil {
		return 0, 0, 0, errs.New(errs.KindEconomic, err)
	}
	if quoted < snapshot.AvailableTokens {
		return quoted, payment, fee, nil
	}
	tokensOut = snapshot.AvailableTokens
	netRequired, err := curve.RequiredInputFor(snapshot, tokensOut)
	if err != nil {
		return 0, 0, 0, errs.New(errs.KindEconomic, err)
	}
	basePaid, err = curve.GrossForNet(netRequired, feeBp)
	if err != nil {
		return 0, 0, 0, errs.New(errs.KindEconomic, err)
	}
	return tokensOut, basePaid, basePaid - netRequired, nil
}

// SellQuote previews the net proceeds and fee for a sell. View only.
func (o *Orchestrator) SellQuote(asset types.Address, tokenIn uint64) (baseOut, fee uint64, err error) {
	l, err := o.launch(asset)
	if err != nil {
		return 0, 0, err
	}
	o.mu.Lock()
	snapshot := l.Curve
	feeBp := o.params.TradingFeeBp
	o.mu.Unlock()

	baseOut, fee, err = curve.QuoteSellWithFee(snapshot, tokenIn, feeBp)
	if err != nil {
		return 0, 0, errs.New(errs.KindEconomic, err)
	}
	return baseOut, fee, nil
}

// SpotPrice returns the instantaneous curve price as a decimal in whole base
// units per whole token.
func (o *Orchestrator) SpotPrice(asset types.Address) (decimal.Decimal, error) {
	l, err := o.launch(asset)
	if err != nil {
		return decimal.Zero, err
	}
	o.mu.Lock()
	snapshot := l.Curve
	baseDec, tokenDec := o.params.BaseDecimals, o.params.TokenDecimals
	o.mu.Unlock()
	return curve.SpotPriceDecimal(snapshot, baseDec, tokenDec)
}

// CurveState returns the current reserve snapshot for an asset.
func (o *Orchestrator) CurveState(asset types.Address) (curve.State, error) {
	l, err := o.launch(asset)
	if err != nil {
		return curve.State{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return l.Curve, nil
}
