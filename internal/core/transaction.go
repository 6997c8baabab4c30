package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Transaction carries an opaque payload and its content hash. The hash
// is cached at construction so that pool lookups and block encoding
// never recompute it.
type Transaction struct {
	Data []byte
	hash Hash
}

// NewTransaction computes the content hash of data and returns the
// resulting Transaction.
func NewTransaction(data []byte) Transaction {
	return Transaction{Data: data, hash: computeHash(data)}
}

// Hash returns the transaction's content hash.
func (t Transaction) Hash() Hash {
	return t.hash
}

// encode appends the transaction's canonical bytes to buf. Only Data is
// encoded: Hash is a derived field and including it would make the
// encoding redundant rather than more precise.
func (t Transaction) encode(buf *bytes.Buffer) {
	binary.Write(buf, binary.BigEndian, uint64(len(t.Data)))
	buf.Write(t.Data)
}

// Encode produces the transaction's canonical encoding on its own,
// outside the context of a containing block.
func (t Transaction) Encode() []byte {
	var buf bytes.Buffer
	t.encode(&buf)
	return buf.Bytes()
}

// decodeTransaction reads one canonically-encoded transaction from r,
// leaving the reader positioned after it so callers can decode a run of
// transactions back to back (as Block's encoding does).
func decodeTransaction(r *bytes.Reader) (Transaction, error) {
	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return Transaction{}, fmt.Errorf("core: decode transaction length: %w", err)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return Transaction{}, fmt.Errorf("core: decode transaction data: %w", err)
	}
	return NewTransaction(data), nil
}

// DecodeTransaction parses the bytes Encode produces back into a
// Transaction, recomputing its content hash from the decoded data.
func DecodeTransaction(data []byte) (Transaction, error) {
	r := bytes.NewReader(data)
	t, err := decodeTransaction(r)
	if err != nil {
		return Transaction{}, err
	}
	if r.Len() != 0 {
		return Transaction{}, fmt.Errorf("core: trailing bytes after transaction encoding")
	}
	return t, nil
}

// SignedTransaction is a Transaction plus a signature over its content
// hash. The sender's public key is recovered from (Signature, Hash),
// not carried explicitly.
type SignedTransaction struct {
	Transaction
	Signature Signature
}

// Sign produces a SignedTransaction whose signature covers the
// transaction's content hash.
func (t Transaction) Sign(s Signer) (SignedTransaction, error) {
	sig, err := s.Sign(t.Hash())
	if err != nil {
		return SignedTransaction{}, err
	}
	return SignedTransaction{Transaction: t, Signature: sig}, nil
}

// RecoverSender recovers the public key of the account that signed this
// transaction.
func (st SignedTransaction) RecoverSender(recover func(sig Signature, digest Hash) (PubKey, error)) (PubKey, error) {
	return recover(st.Signature, st.Hash())
}

// Encode produces the signed transaction's canonical encoding: the
// wrapped transaction's encoding followed by the signature bytes.
func (st SignedTransaction) Encode() []byte {
	var buf bytes.Buffer
	st.Transaction.encode(&buf)
	buf.Write(st.Signature[:])
	return buf.Bytes()
}

// DecodeSignedTransaction parses the bytes Encode produces back into a
// SignedTransaction.
func DecodeSignedTransaction(data []byte) (SignedTransaction, error) {
	r := bytes.NewReader(data)
	tx, err := decodeTransaction(r)
	if err != nil {
		return SignedTransaction{}, err
	}
	var sig Signature
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return SignedTransaction{}, fmt.Errorf("core: decode signed transaction signature: %w", err)
	}
	if r.Len() != 0 {
		return SignedTransaction{}, fmt.Errorf("core: trailing bytes after signed transaction encoding")
	}
	return SignedTransaction{Transaction: tx, Signature: sig}, nil
}
