// internal/sign/sign.go
//
// Package sign provides the signature-verification capability for creation
// requests: secp256k1 compact signatures with public-key recovery.
package sign

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// Verifier recovers the signer identity from a message digest and a
// compact signature.
type Verifier interface {
	RecoverSigner(digest [32]byte, signature []byte) (types.Address, error)
}

// Secp256k1 is the production Verifier.
type Secp256k1 struct{}

// RecoverSigner recovers the compressed public key from a 65-byte compact
// signature and returns its address form.
func (Secp256k1) RecoverSigner(digest [32]byte, signature []byte) (types.Address, error) {
	pub, _, err := ecdsa.RecoverCompact(signature, digest[:])
	if err != nil {
		return types.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return AddressOf(pub), nil
}

// AddressOf derives the address form of a public key.
func AddressOf(pub *btcec.PublicKey) types.Address {
	return types.AddressFromSeed(pub.SerializeCompressed())
}

// Digest binds a canonical payload encoding to the chain context and the
// engine address, so a signed request cannot be replayed against another
// deployment.
func Digest(payload []byte, chainID string, engine types.Address) [32]byte {
	h := sha256.New()
	h.Write([]byte("launchpad/create/v1"))
	h.Write([]byte(chainID))
	h.Write(engine.Bytes())
	h.Write(payload)
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// SignCompact signs a digest with a recoverable compact signature. Used by
// off-system signers and tests.
func SignCompact(priv *btcec.PrivateKey, digest [32]byte) []byte {
	return ecdsa.SignCompact(priv, digest[:], true)
}
