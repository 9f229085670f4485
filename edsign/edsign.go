// Package edsign implements the trust engine's Ed25519 signer: keypair
// generation, detached signing and verification, and a bridge for
// verifying over a pre-computed SHA-256 digest (used for GPG-signed
// hashes). It is the Go analogue of validate.cpp's generate_ed25519_keypair/
// sign/verify/verify_gpg_hashed_msg, which call into OpenSSL's
// EVP_PKEY_ED25519; here the equivalent stdlib primitive is
// crypto/ed25519.
package edsign

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/mamba-org/go-trust/hex"
)

const (
	// KeySize is the raw Ed25519 public/private seed key size in bytes.
	KeySize = ed25519.SeedSize // 32
	// KeySizeHex is KeySize encoded as hex characters.
	KeySizeHex = KeySize * 2
	// SigSize is the raw Ed25519 detached signature size in bytes.
	SigSize = ed25519.SignatureSize // 64
	// SigSizeHex is SigSize encoded as hex characters.
	SigSizeHex = SigSize * 2
	// SHA256Size is the size in bytes of a SHA-256 digest.
	SHA256Size = 32
	// SHA256SizeHex is SHA256Size encoded as hex characters.
	SHA256SizeHex = SHA256Size * 2
)

// CryptoError wraps any failure from key generation, signing, or
// verification setup, matching spec.md's CryptoError taxonomy entry.
type CryptoError struct {
	Msg string
	Err error
}

func (e CryptoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("edsign: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("edsign: %s", e.Msg)
}

func (e CryptoError) Unwrap() error { return e.Err }

var initOnce sync.Once

// ensureInit is the explicit init() guard spec.md §9 calls for. Go's
// crypto/ed25519 requires no one-time process setup, but the guard is
// kept so a future swap to a library that does need one stays a
// one-line change.
func ensureInit() {
	initOnce.Do(func() {})
}

// GenerateKeypair produces a fresh Ed25519 keypair, returning the raw
// 32-byte public and private (seed) keys.
func GenerateKeypair() (pk [KeySize]byte, sk [KeySize]byte, err error) {
	ensureInit()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return pk, sk, CryptoError{Msg: "keypair generation failed", Err: err}
	}
	copy(pk[:], pub)
	// priv is the 64-byte expanded key (seed || public); we store only
	// the 32-byte seed, matching validate.cpp's raw secret key size.
	copy(sk[:], priv.Seed())
	return pk, sk, nil
}

// Sign produces a detached Ed25519 signature over data using the raw
// 32-byte seed sk.
func Sign(data []byte, sk []byte) (sig [SigSize]byte, err error) {
	ensureInit()
	if len(sk) != KeySize {
		return sig, CryptoError{Msg: fmt.Sprintf("private key must be %d bytes, got %d", KeySize, len(sk))}
	}
	priv := ed25519.NewKeyFromSeed(sk)
	s := ed25519.Sign(priv, data)
	copy(sig[:], s)
	return sig, nil
}

// Verify reports whether sig is a valid Ed25519 signature over data for
// the raw 32-byte public key pk.
func Verify(data []byte, pk []byte, sig []byte) bool {
	ensureInit()
	if len(pk) != KeySize || len(sig) != SigSize {
		return false
	}
	return ed25519.Verify(pk, data, sig)
}

// VerifyHex is a convenience overload of Verify that accepts
// hex-encoded public key and signature, decoding them first.
func VerifyHex(data []byte, pkHex, sigHex string) (bool, error) {
	pk, err := hex.DecodeFixed(pkHex, KeySize)
	if err != nil {
		return false, CryptoError{Msg: "failed to decode public key hex", Err: err}
	}
	sig, err := hex.DecodeFixed(sigHex, SigSize)
	if err != nil {
		return false, CryptoError{Msg: "failed to decode signature hex", Err: err}
	}
	return Verify(data, pk, sig), nil
}

// VerifyGPGHashedMessage treats hexSHA256 as a pre-computed SHA-256
// digest (as produced by, e.g., a GPG-signed hash) and verifies sig
// over those 32 raw bytes rather than over the original message. This
// bridges GPG-signed hashes into the Ed25519 verifier, per spec.md
// §4.3.
func VerifyGPGHashedMessage(hexSHA256 string, pk []byte, sig []byte) (bool, error) {
	digest, err := hex.DecodeFixed(hexSHA256, SHA256Size)
	if err != nil {
		return false, CryptoError{Msg: "failed to decode sha256 digest hex", Err: err}
	}
	return Verify(digest, pk, sig), nil
}
