package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"empower1.com/sleepycore/internal/cryptoadapter"
	internalerrors "empower1.com/sleepycore/internal/errors"
)

// computeHash is the digest function used for every hash this package
// computes; production code always goes through cryptoadapter.Hash.
var computeHash = cryptoadapter.Hash

// Proof is a miner-signed timestamp establishing this node's right to
// extend the chain at this moment under the Sleepy consensus discipline.
type Proof struct {
	Timestamp uint64    // milliseconds since Unix epoch
	Key       PubKey    // miner public key
	Signature Signature // signature over the 32-byte big-endian encoding of Timestamp
}

// encode appends the proof's canonical bytes to buf.
func (p Proof) encode(buf *bytes.Buffer) {
	binary.Write(buf, binary.BigEndian, p.Timestamp)
	buf.Write(p.Key[:])
	buf.Write(p.Signature[:])
}

// decodeProof reads one canonically-encoded proof from r.
func decodeProof(r *bytes.Reader) (Proof, error) {
	var p Proof
	if err := binary.Read(r, binary.BigEndian, &p.Timestamp); err != nil {
		return Proof{}, fmt.Errorf("core: decode proof timestamp: %w", err)
	}
	if _, err := io.ReadFull(r, p.Key[:]); err != nil {
		return Proof{}, fmt.Errorf("core: decode proof key: %w", err)
	}
	if _, err := io.ReadFull(r, p.Signature[:]); err != nil {
		return Proof{}, fmt.Errorf("core: decode proof signature: %w", err)
	}
	return p, nil
}

// timestampDigest is the exact byte string Proof.Signature covers: the
// timestamp, big-endian, left-padded to 32 bytes.
func timestampDigest(timestamp uint64) Hash {
	var out Hash
	binary.BigEndian.PutUint64(out[24:], timestamp)
	return out
}

// Verify reports whether the proof's signature over its timestamp is
// valid under the proof's key.
func (p Proof) Verify(verify func(pub PubKey, sig Signature, digest Hash) bool) bool {
	return verify(p.Key, p.Signature, timestampDigest(p.Timestamp))
}

// Block is a unit of chain extension: a height, a parent link, a proof,
// and an ordered list of transactions. Height 0 is reserved for the
// genesis sentinel and is never admitted.
type Block struct {
	Height       uint64
	PreHash      Hash // digest of the parent block's canonical encoding
	Proof        Proof
	Transactions []Transaction
}

// Encode produces the deterministic, byte-exact canonical encoding of the
// block. Field order and transaction order both matter: two blocks with
// the same fields in a different transaction order encode (and hash)
// differently.
func (b *Block) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, b.Height)
	buf.Write(b.PreHash[:])
	b.Proof.encode(&buf)
	binary.Write(&buf, binary.BigEndian, uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		tx.encode(&buf)
	}
	return buf.Bytes()
}

// Hash returns the block's identity hash: the digest of its canonical
// encoding.
func (b *Block) Hash() Hash {
	return computeHash(b.Encode())
}

// decodeBlock reads one canonically-encoded block from r.
func decodeBlock(r *bytes.Reader) (Block, error) {
	var b Block
	if err := binary.Read(r, binary.BigEndian, &b.Height); err != nil {
		return Block{}, fmt.Errorf("core: decode block height: %w", err)
	}
	if _, err := io.ReadFull(r, b.PreHash[:]); err != nil {
		return Block{}, fmt.Errorf("core: decode block pre_hash: %w", err)
	}
	proof, err := decodeProof(r)
	if err != nil {
		return Block{}, err
	}
	b.Proof = proof

	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return Block{}, fmt.Errorf("core: decode block transaction count: %w", err)
	}
	b.Transactions = make([]Transaction, n)
	for i := range b.Transactions {
		tx, err := decodeTransaction(r)
		if err != nil {
			return Block{}, fmt.Errorf("core: decode transaction %d: %w", i, err)
		}
		b.Transactions[i] = tx
	}
	return b, nil
}

// DecodeBlock parses the bytes Encode produces back into a Block.
func DecodeBlock(data []byte) (Block, error) {
	r := bytes.NewReader(data)
	b, err := decodeBlock(r)
	if err != nil {
		return Block{}, err
	}
	if r.Len() != 0 {
		return Block{}, fmt.Errorf("core: trailing bytes after block encoding")
	}
	return b, nil
}

// IsFirst reports whether this block is the first block of the chain
// (height 1). A height-1 block with a non-zero PreHash is malformed.
func (b *Block) IsFirst() (bool, error) {
	if b.Height != 1 {
		return false, nil
	}
	if b.PreHash != (Hash{}) {
		return false, internalerrors.ErrMalformed
	}
	return true, nil
}

// Signer knows how to sign digests and report its own public key;
// Block.Sign and Transaction.Sign take one instead of calling
// cryptoadapter's signing functions directly, so tests can substitute a
// fake without touching real keys.
type Signer interface {
	Sign(digest Hash) (Signature, error)
	PubKey() PubKey
}

// Sign produces a SignedBlock whose signature covers the hash of the
// block's canonical encoding.
func (b Block) Sign(s Signer) (SignedBlock, error) {
	sig, err := s.Sign(b.Hash())
	if err != nil {
		return SignedBlock{}, err
	}
	return SignedBlock{
		Block:     b,
		Signer:    s.PubKey(),
		Signature: sig,
	}, nil
}

// SignedBlock wraps a Block with the miner's signature over the block's
// hash. The signer is authoritative for identity at that height.
type SignedBlock struct {
	Block
	Signer    PubKey
	Signature Signature
}

// Verify reports whether the block-level signature is valid.
func (sb *SignedBlock) Verify(verify func(pub PubKey, sig Signature, digest Hash) bool) bool {
	return verify(sb.Signer, sb.Signature, sb.Block.Hash())
}

// Encode produces the signed block's canonical encoding: the wrapped
// block's encoding followed by the signer's public key and signature.
func (sb *SignedBlock) Encode() []byte {
	buf := bytes.NewBuffer(sb.Block.Encode())
	buf.Write(sb.Signer[:])
	buf.Write(sb.Signature[:])
	return buf.Bytes()
}

// DecodeSignedBlock parses the bytes Encode produces back into a
// SignedBlock.
func DecodeSignedBlock(data []byte) (SignedBlock, error) {
	r := bytes.NewReader(data)
	b, err := decodeBlock(r)
	if err != nil {
		return SignedBlock{}, err
	}
	var signer PubKey
	if _, err := io.ReadFull(r, signer[:]); err != nil {
		return SignedBlock{}, fmt.Errorf("core: decode signed block signer: %w", err)
	}
	var sig Signature
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return SignedBlock{}, fmt.Errorf("core: decode signed block signature: %w", err)
	}
	if r.Len() != 0 {
		return SignedBlock{}, fmt.Errorf("core: trailing bytes after signed block encoding")
	}
	return SignedBlock{Block: b, Signer: signer, Signature: sig}, nil
}
