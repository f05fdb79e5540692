// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// EventType represents the type of event.
type EventType string

const (
	// Launch lifecycle events
	TokenCreated       EventType = "token.created"
	TokenStatusChanged EventType = "token.status_changed"
	TokenGraduated     EventType = "token.graduated"

	// Trading events
	TradeExecuted EventType = "trade.executed"

	// Vesting events
	VestingCreated EventType = "vesting.created"
	VestingClaimed EventType = "vesting.claimed"
	VestingRevoked EventType = "vesting.revoked"

	// Payout events
	FeeRedirected EventType = "fee.redirected"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// Now builds a BaseEvent for the given type stamped with the current time.
func Now(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// TradeSide distinguishes buys from sells in trade events.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TokenCreatedEvent is emitted once per asset at creation.
type TokenCreatedEvent struct {
	BaseEvent
	Asset         types.Address
	Creator       types.Address
	Name          string
	Symbol        string
	TotalSupply   uint64
	SaleAmount    uint64
	InitialTokens uint64 // tokens granted by the initial buy, 0 if none
	VirtualBase   uint64
	VirtualToken  uint64
	LaunchTime    int64
}

// TokenStatusChangedEvent is emitted on every lifecycle transition.
type TokenStatusChangedEvent struct {
	BaseEvent
	Asset types.Address
	Actor types.Address
	From  string
	To    string
}

// TokenGraduatedEvent is emitted when an asset moves to the liquidity pool.
type TokenGraduatedEvent struct {
	BaseEvent
	Asset           types.Address
	PlatformFee     uint64
	CreatorFee      uint64
	LiquidityBase   uint64
	LiquidityTokens uint64
	LPReceipt       uint64
}

// TradeExecutedEvent is emitted after every committed buy or sell,
// carrying the post-trade reserve snapshot.
type TradeExecutedEvent struct {
	BaseEvent
	Asset           types.Address
	Actor           types.Address
	Side            TradeSide
	BaseAmount      uint64 // net base in (buy) or net base out (sell)
	TokenAmount     uint64
	Fee             uint64
	Refund          uint64 // clipped-buy refund, 0 otherwise
	VirtualBase     uint64
	VirtualToken    uint64
	AvailableTokens uint64
	CollectedBase   uint64
}

// VestingCreatedEvent is emitted once per recorded schedule.
type VestingCreatedEvent struct {
	BaseEvent
	Asset       types.Address
	Beneficiary types.Address
	ScheduleID  uint64
	Amount      uint64
	Mode        string
	StartTime   int64
	EndTime     int64
}

// VestingClaimedEvent is emitted after a claim payout.
type VestingClaimedEvent struct {
	BaseEvent
	Asset       types.Address
	Beneficiary types.Address
	ScheduleID  uint64
	Amount      uint64
}

// VestingRevokedEvent is emitted when a schedule is revoked.
type VestingRevokedEvent struct {
	BaseEvent
	Asset       types.Address
	Beneficiary types.Address
	ScheduleID  uint64
	PaidOut     uint64 // claimable paid to the beneficiary
	Returned    uint64 // remainder returned to the revoker
}

// FeeRedirectedEvent is emitted whenever a payout to a designated receiver
// failed and the funds went to the fallback receiver instead. The redirect
// must never be silent.
type FeeRedirectedEvent struct {
	BaseEvent
	Asset    types.Address
	Intended types.Address
	Fallback types.Address
	Amount   uint64
	Reason   string
}
