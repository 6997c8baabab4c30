package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestConnectionBroadcastReachesListener(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split listener addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse listener port: %v", err)
	}
	if host == "" || host == "::" {
		host = "127.0.0.1"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan uint32, 1)
	go ln.Serve(ctx, func(origin uint32, payload []byte) {
		if len(payload) > 0 {
			received <- origin
		}
	})

	conn := NewConnection(7, []PeerConfig{{IDCard: 1, IP: host, Port: port}})
	conn.Connect(ctx)

	deadline := time.After(2 * time.Second)
	for {
		conn.Broadcast(Broadcast, []byte("hello"))
		select {
		case origin := <-received:
			if origin != 7 {
				t.Fatalf("expected origin 7, got %d", origin)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for broadcast to reach the listener")
		case <-time.After(20 * time.Millisecond):
			// peer may not have finished dialing yet; retry the broadcast.
		}
	}
}

func TestPeerConfigAddr(t *testing.T) {
	pc := PeerConfig{IDCard: 1, IP: "10.0.0.1", Port: 4000}
	want := fmt.Sprintf("%s:%d", "10.0.0.1", 4000)
	if got := pc.addr(); got != want {
		t.Fatalf("expected addr %q, got %q", want, got)
	}
	if !strings.Contains(pc.addr(), ":4000") {
		t.Fatalf("expected addr to contain port, got %q", pc.addr())
	}
}
