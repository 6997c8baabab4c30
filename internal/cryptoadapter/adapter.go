// Package cryptoadapter is the thin signing and verification surface every
// other package in this module calls through. No package outside
// cryptoadapter touches secp256k1 or the digest algorithm directly, so the
// choice of curve and digest can change in one place.
package cryptoadapter

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// Digest, PubKey and Signature match the byte widths spec.md fixes: a
// 32-byte Keccak-256 digest, a 64-byte uncompressed public key (X||Y,
// no 0x04 prefix), and a 65-byte recoverable signature.
type (
	Digest    [32]byte
	PubKey    [64]byte
	Signature [65]byte
)

// KeyPair bundles a private key with its derived public key. It
// implements core.Signer, so a block or transaction producer can sign
// directly against a KeyPair without this package's callers importing
// secp256k1 themselves.
type KeyPair struct {
	Priv *secp256k1.PrivateKey
	Pub  PubKey
}

// Sign signs digest with the key pair's private key.
func (k *KeyPair) Sign(digest Digest) (Signature, error) {
	return Sign(k.Priv, digest)
}

// PubKey returns the key pair's public key.
func (k *KeyPair) PubKey() PubKey {
	return k.Pub
}

// GenerateKeyPair produces a fresh, randomly generated signing key. It is
// the one piece of "wallet" functionality this core needs: a miner's
// signer_private_key.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return &KeyPair{Priv: priv, Pub: pubKeyOf(priv.PubKey())}, nil
}

// KeyPairFromPrivateKey rebuilds a KeyPair from a raw 32-byte private key,
// e.g. one loaded from config's signer_private_key.
func KeyPairFromPrivateKey(raw [32]byte) *KeyPair {
	priv := secp256k1.PrivKeyFromBytes(raw[:])
	return &KeyPair{Priv: priv, Pub: pubKeyOf(priv.PubKey())}
}

func pubKeyOf(pub *secp256k1.PublicKey) PubKey {
	var out PubKey
	// SerializeUncompressed is 0x04 || X(32) || Y(32); drop the prefix
	// byte to get the 64-byte X||Y encoding spec.md uses.
	copy(out[:], pub.SerializeUncompressed()[1:])
	return out
}

// Hash is the digest algorithm used throughout this module: Keccak-256.
func Hash(data []byte) Digest {
	var out Digest
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Sum(out[:0])
	return out
}

// Sign produces a 65-byte recoverable signature over digest under priv.
func Sign(priv *secp256k1.PrivateKey, digest Digest) (Signature, error) {
	var out Signature
	sig := ecdsa.SignCompact(priv, digest[:], false)
	if len(sig) != len(out) {
		return out, fmt.Errorf("cryptoadapter: unexpected compact signature length %d", len(sig))
	}
	copy(out[:], sig)
	return out, nil
}

// Recover recovers the public key that produced sig over digest.
func Recover(sig Signature, digest Digest) (PubKey, error) {
	pub, _, err := ecdsa.RecoverCompact(sig[:], digest[:])
	if err != nil {
		return PubKey{}, fmt.Errorf("recover public key: %w", err)
	}
	return pubKeyOf(pub), nil
}

// Verify reports whether sig is a valid signature over digest by the
// holder of pub. Recoverable signatures make verification and recovery
// the same primitive: a signature verifies iff the key it recovers to
// matches the claimed signer.
func Verify(pub PubKey, sig Signature, digest Digest) bool {
	recovered, err := Recover(sig, digest)
	if err != nil {
		return false
	}
	return recovered == pub
}
