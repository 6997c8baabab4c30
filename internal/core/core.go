// Package core contains the fundamental data structures of the Sleepy
// chain core: Block, Proof, SignedBlock, Transaction and
// SignedTransaction. Encoding is deterministic and byte-exact so that a
// block's identity hash agrees across every node that admits it.
package core

import "empower1.com/sleepycore/internal/cryptoadapter"

// Hash, PubKey and Signature are re-exported from cryptoadapter so that
// callers of this package never need to import the crypto layer directly
// just to spell a field type.
type (
	Hash      = cryptoadapter.Digest
	PubKey    = cryptoadapter.PubKey
	Signature = cryptoadapter.Signature
)
