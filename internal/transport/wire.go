// Package transport implements the peer wire protocol: a tagged length
// header followed by a 4-byte origin id_card and an opaque payload, and
// the routing predicate that decides which peers a message reaches. See
// spec §4.8, grounded on the original connection.rs's framing.
package transport

import (
	"encoding/binary"
	"fmt"
)

// magic tags every frame header so a misaligned read fails fast instead
// of silently desyncing the stream.
const magic uint64 = 0xDEADBEEF00000000

// originLen is the width of the origin id_card field that follows the
// header.
const originLen = 4

// Operation selects which peers a broadcast reaches.
type Operation int

const (
	// Broadcast reaches every peer.
	Broadcast Operation = iota
	// Single reaches only the peer whose id_card equals origin.
	Single
	// Subtract reaches every peer except the one whose id_card equals origin.
	Subtract
)

func (op Operation) String() string {
	switch op {
	case Broadcast:
		return "broadcast"
	case Single:
		return "single"
	case Subtract:
		return "subtract"
	default:
		return "unknown"
	}
}

// IsSend reports whether a message from origin, routed with op, should
// be delivered to the peer identified by idCard.
func IsSend(idCard, origin uint32, op Operation) bool {
	switch op {
	case Broadcast:
		return true
	case Single:
		return idCard == origin
	case Subtract:
		return origin != idCard
	default:
		return false
	}
}

// EncodeFrame produces the wire bytes for payload sent on behalf of
// origin: an 8-byte magic-tagged length header, the 4-byte origin, then
// payload itself.
func EncodeFrame(origin uint32, payload []byte) []byte {
	header := magic + uint64(len(payload)) + originLen
	buf := make([]byte, 8+originLen+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], header)
	binary.BigEndian.PutUint32(buf[8:12], origin)
	copy(buf[12:], payload)
	return buf
}

// DecodeFrame splits a wire frame with its 8-byte header already
// stripped (the body serveConn reads after the header) into its origin
// and payload.
func DecodeFrame(frame []byte) (origin uint32, payload []byte, err error) {
	if len(frame) < originLen {
		return 0, nil, fmt.Errorf("transport: frame too short: %d bytes", len(frame))
	}
	origin = binary.BigEndian.Uint32(frame[0:originLen])
	payload = frame[originLen:]
	return origin, payload, nil
}

// HeaderLength reports how many payload+origin bytes a decoded header
// value promises follow it on the wire.
func HeaderLength(header uint64) (int, error) {
	if header&^0xFFFFFFFF != magic {
		return 0, fmt.Errorf("transport: bad frame magic in header %#x", header)
	}
	return int(header - magic), nil
}

// EncodeHeader returns the 8-byte magic-tagged length header for a frame
// whose origin+payload together are n bytes.
func EncodeHeader(n int) uint64 {
	return magic + uint64(n)
}

// Handshake is the frame a newly established connection writes before
// anything else: the bare magic header with a zero length, identifying
// the stream as speaking this protocol.
func Handshake() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, magic)
	return buf
}
