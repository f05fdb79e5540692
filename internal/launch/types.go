// ==============================================
// File: internal/launch/types.go
// ==============================================
package launch

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/rovshanmuradov/launchpad-engine/internal/curve"
	"github.com/rovshanmuradov/launchpad-engine/internal/types"
	"github.com/rovshanmuradov/launchpad-engine/internal/vesting"
)

// Status is the per-asset lifecycle state. An asset with no launch record
// is implicitly NotCreated.
type Status uint8

const (
	StatusNotCreated Status = iota
	StatusTrading
	StatusPendingGraduation
	StatusGraduated
	StatusPaused
	StatusBlacklisted
)

func (s Status) String() string {
	switch s {
	case StatusNotCreated:
		return "not_created"
	case StatusTrading:
		return "trading"
	case StatusPendingGraduation:
		return "pending_graduation"
	case StatusGraduated:
		return "graduated"
	case StatusPaused:
		return "paused"
	case StatusBlacklisted:
		return "blacklisted"
	default:
		return "unknown"
	}
}

// Launch is the per-asset record owned by the orchestrator. Created once,
// never deleted; status moves only through orchestrator operations.
type Launch struct {
	Asset               types.Address
	Creator             types.Address
	Name                string
	Symbol              string
	TotalSupply         uint64
	SaleAmount          uint64
	CreatedAt           time.Time
	LaunchTime          int64 // unix seconds; 0 = tradable immediately
	Status              Status
	LiquidityPair       types.Address
	GraduationThreshold uint64
	Curve               curve.State
}

// AllocationRequest is one requested vesting slice: a basis-point share of
// the request's vesting pool.
type AllocationRequest struct {
	Beneficiary types.Address
	ShareBp     uint32
	Mode        vesting.Mode
	Duration    int64 // seconds
}

// CreateRequest is the signed creation payload. The signature covers the
// canonical encoding bound to the chain context and engine address.
type CreateRequest struct {
	RequestID    [32]byte
	Name         string
	Symbol       string
	TotalSupply  uint64
	SaleAmount   uint64
	InitialBuyBp uint32
	VestingBp    uint32 // share of TotalSupply set aside for vesting
	LaunchTime   int64
	MarginAmount uint64
	Timestamp    int64 // unix seconds, request creation time
	Nonce        uint64
	Creator      types.Address
	Allocations  []AllocationRequest
}

// Encode produces the canonical byte encoding used for the request digest.
// Fixed-width big-endian fields, length-prefixed strings.
func (r CreateRequest) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(r.RequestID[:])
	encodeString(&buf, r.Name)
	encodeString(&buf, r.Symbol)
	encodeU64(&buf, r.TotalSupply)
	encodeU64(&buf, r.SaleAmount)
	encodeU64(&buf, uint64(r.InitialBuyBp))
	encodeU64(&buf, uint64(r.VestingBp))
	encodeU64(&buf, uint64(r.LaunchTime))
	encodeU64(&buf, r.MarginAmount)
	encodeU64(&buf, uint64(r.Timestamp))
	encodeU64(&buf, r.Nonce)
	buf.Write(r.Creator.Bytes())
	encodeU64(&buf, uint64(len(r.Allocations)))
	for _, a := range r.Allocations {
		buf.Write(a.Beneficiary.Bytes())
		encodeU64(&buf, uint64(a.ShareBp))
		encodeU64(&buf, uint64(a.Mode))
		encodeU64(&buf, uint64(a.Duration))
	}
	return buf.Bytes()
}

func encodeString(buf *bytes.Buffer, s string) {
	encodeU64(buf, uint64(len(s)))
	buf.WriteString(s)
}

func encodeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// TradeStats is the running per-asset trade snapshot exposed by Stats.
type TradeStats struct {
	Trades     uint64
	BuyVolume  uint64 // net base paid into the curve
	SellVolume uint64 // gross base paid out of the curve
	LastPrice  string // decimal spot price after the last trade
}
