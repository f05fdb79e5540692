// ==============================================
// File: internal/launch/admin.go
// ==============================================
package launch

import (
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/authz"
	"github.com/rovshanmuradov/launchpad-engine/internal/errs"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// SetTradingFee updates the trading fee within its hard cap.
func (o *Orchestrator) SetTradingFee(caller types.Address, feeBp uint32) error {
	if err := o.requireAdmin(caller); err != nil {
		return err
	}
	if feeBp > MaxTradingFeeBp {
		return errs.New(errs.KindValidation, ErrFeeTooHigh)
	}
	o.mu.Lock()
	old := o.params.TradingFeeBp
	o.params.TradingFeeBp = feeBp
	o.mu.Unlock()
	o.logger.Info("Trading fee updated",
		zap.Uint32("old_bp", old), zap.Uint32("new_bp", feeBp))
	return nil
}

// SetCreationFee updates the flat creation fee within its hard cap.
func (o *Orchestrator) SetCreationFee(caller types.Address, fee uint64) error {
	if err := o.requireAdmin(caller); err != nil {
		return err
	}
	o.mu.Lock()
	if fee > o.params.MaxCreationFee {
		o.mu.Unlock()
		return errs.New(errs.KindValidation, ErrFeeTooHigh)
	}
	old := o.params.CreationFee
	o.params.CreationFee = fee
	o.mu.Unlock()
	o.logger.Info("Creation fee updated",
		zap.Uint64("old", old), zap.Uint64("new", fee))
	return nil
}

// SetFeeReceiver updates the trading/creation fee receiver.
func (o *Orchestrator) SetFeeReceiver(caller, receiver types.Address) error {
	return o.setReceiver(caller, receiver, "fee_receiver", func(p *Params) { p.FeeReceiver = receiver })
}

// SetMarginReceiver updates the margin deposit receiver.
func (o *Orchestrator) SetMarginReceiver(caller, receiver types.Address) error {
	return o.setReceiver(caller, receiver, "margin_receiver", func(p *Params) { p.MarginReceiver = receiver })
}

// SetPlatformReceiver updates the graduation platform-share receiver.
func (o *Orchestrator) SetPlatformReceiver(caller, receiver types.Address) error {
	return o.setReceiver(caller, receiver, "platform_receiver", func(p *Params) { p.PlatformReceiver = receiver })
}

// SetFallbackReceiver updates the receiver of redirected payouts.
func (o *Orchestrator) SetFallbackReceiver(caller, receiver types.Address) error {
	return o.setReceiver(caller, receiver, "fallback_receiver", func(p *Params) { p.FallbackReceiver = receiver })
}

func (o *Orchestrator) setReceiver(caller, receiver types.Address, label string, apply func(*Params)) error {
	if err := o.requireAdmin(caller); err != nil {
		return err
	}
	if receiver.IsZero() {
		return errs.New(errs.KindValidation, ErrZeroAddress)
	}
	o.mu.Lock()
	apply(&o.params)
	o.mu.Unlock()
	o.logger.Info("Receiver updated",
		zap.String("receiver", label), zap.String("address", receiver.Short()))
	return nil
}

func (o *Orchestrator) requireAdmin(caller types.Address) error {
	if !o.auth.Allow(caller, authz.PermAdmin) {
		return errs.New(errs.KindAuthorization, ErrNotAuthorized)
	}
	return nil
}

// Params returns the current parameter snapshot.
func (o *Orchestrator) Params() Params {
	return o.paramsSnapshot()
}
