// internal/types/types.go
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// BpDenominator is the basis-point denominator used for every percentage
// parameter in the engine (fees, allocations, thresholds).
const BpDenominator = 10000

// Address identifies an account or a deployed asset ledger.
type Address [32]byte

// ZeroAddress is the empty address. It is never a valid actor.
var ZeroAddress Address

// BurnAddress receives tokens that are permanently removed from supply.
var BurnAddress = AddressFromSeed([]byte("launchpad/burn"))

// AddressFromSeed derives a stable address from arbitrary seed bytes.
func AddressFromSeed(seed []byte) Address {
	return Address(sha256.Sum256(seed))
}

// AddressFromHex parses a 64-character hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address hex: %w", err)
	}
	if len(raw) != len(Address{}) {
		return Address{}, fmt.Errorf("invalid address length: %d", len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// String returns the hex form of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns a truncated form for log fields.
func (a Address) Short() string {
	s := a.String()
	return s[:8] + ".." + s[len(s)-6:]
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Bytes returns the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}
