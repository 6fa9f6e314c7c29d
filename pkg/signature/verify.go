package signature

import (
	"crypto/ed25519"
	"errors"

	"github.com/mr-tron/base58"
)

var (
	// ErrInvalidSignatureEncoding: the signature bytes are not valid base58
	// or have the wrong length. Distinct from a verification failure so
	// callers can tell malformed input from a rejected signature.
	ErrInvalidSignatureEncoding = errors.New("invalid signature encoding")

	// ErrInvalidSigner: the claimed public key is not a valid base58
	// ed25519 key.
	ErrInvalidSigner = errors.New("invalid signer public key")
)

// Verify checks a detached ed25519 signature over message against the
// base58-encoded public key. It returns false only when both inputs decode
// cleanly and the signature simply does not match.
func Verify(message []byte, signatureB58, publicKeyB58 string) (bool, error) {
	pub, err := base58.Decode(publicKeyB58)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false, ErrInvalidSigner
	}
	sig, err := base58.Decode(signatureB58)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, ErrInvalidSignatureEncoding
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig), nil
}
