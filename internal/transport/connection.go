package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/decred/slog"
)

// log defaults to the no-op logger; cmd/sleepynode installs a real one
// via UseLogger.
var log = slog.Disabled

// UseLogger installs logger as the package-wide logger for transport.
func UseLogger(logger slog.Logger) {
	log = logger
}

// reconnectInterval is how long a dead peer connection waits before the
// next dial attempt.
const reconnectInterval = 15 * time.Second

// PeerConfig names one configured peer: its id_card and dial address.
type PeerConfig struct {
	IDCard uint32
	IP     string
	Port   int
}

func (p PeerConfig) addr() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}

type peer struct {
	idCard uint32
	addr   string

	mu   sync.Mutex
	conn net.Conn
}

func (p *peer) setConn(c net.Conn) {
	p.mu.Lock()
	p.conn = c
	p.mu.Unlock()
}

func (p *peer) write(b []byte) error {
	p.mu.Lock()
	c := p.conn
	p.mu.Unlock()
	if c == nil {
		return fmt.Errorf("transport: peer %d not connected", p.idCard)
	}
	_, err := c.Write(b)
	if err != nil {
		p.setConn(nil)
	}
	return err
}

// Connection holds this node's identity and its dial table to every
// configured peer.
type Connection struct {
	IDCard uint32
	peers  []*peer
}

// NewConnection builds a Connection from this node's id_card and its
// configured peer list.
func NewConnection(idCard uint32, peers []PeerConfig) *Connection {
	c := &Connection{IDCard: idCard}
	for _, pc := range peers {
		c.peers = append(c.peers, &peer{idCard: pc.IDCard, addr: pc.addr()})
	}
	return c
}

// Connect spawns one dial-and-handshake loop per peer. Each loop runs
// until ctx is cancelled, redialing every reconnectInterval while the
// peer is unreachable or the connection drops.
func (c *Connection) Connect(ctx context.Context) {
	for _, p := range c.peers {
		go c.maintainPeer(ctx, p)
	}
}

func (c *Connection) maintainPeer(ctx context.Context, p *peer) {
	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()

	c.dialAndHandshake(p)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.dialAndHandshake(p)
		}
	}
}

func (c *Connection) dialAndHandshake(p *peer) {
	p.mu.Lock()
	connected := p.conn != nil
	p.mu.Unlock()
	if connected {
		return
	}

	log.Tracef("connecting to peer %d at %s", p.idCard, p.addr)
	conn, err := net.DialTimeout("tcp", p.addr, reconnectInterval)
	if err != nil {
		log.Warnf("dial peer %d at %s failed: %v", p.idCard, p.addr, err)
		return
	}
	if _, err := conn.Write(Handshake()); err != nil {
		log.Warnf("handshake with peer %d failed: %v", p.idCard, err)
		conn.Close()
		return
	}
	log.Infof("connected to peer %d at %s", p.idCard, p.addr)
	p.setConn(conn)
}

// Broadcast routes msg to every peer for which IsSend reports true under
// op, framing it with this node's id_card as origin.
func (c *Connection) Broadcast(op Operation, msg []byte) {
	frame := EncodeFrame(c.IDCard, msg)
	var sent []uint32
	for _, p := range c.peers {
		if !IsSend(p.idCard, c.IDCard, op) {
			continue
		}
		if err := p.write(frame); err != nil {
			log.Warnf("send to peer %d failed: %v", p.idCard, err)
			continue
		}
		sent = append(sent, p.idCard)
	}
	log.Infof("%d broadcast %s msg to peers %v", c.IDCard, op, sent)
}

// outboundMessage is one item of the outbound queue Connection.Run drains.
type outboundMessage struct {
	op  Operation
	msg []byte
}

// Run starts the dial loops and drains outbox until ctx is cancelled.
// Callers submit messages to outbox from anywhere; Run is the single
// writer that turns them into wire traffic.
func (c *Connection) Run(ctx context.Context, outbox <-chan outboundMessage) error {
	c.Connect(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-outbox:
			c.Broadcast(m.op, m.msg)
		}
	}
}

// NewOutbox allocates an outbound message queue of the given capacity
// for use with Run.
func NewOutbox(capacity int) chan outboundMessage {
	return make(chan outboundMessage, capacity)
}

// Send enqueues msg for broadcast under op. It blocks if outbox is full.
func Send(outbox chan<- outboundMessage, op Operation, msg []byte) {
	outbox <- outboundMessage{op: op, msg: msg}
}
