// Command sleepynode runs a single Sleepy-consensus chain node: it runs
// the chain store's maintenance and future-replay workers, dials its
// configured peers, accepts inbound peer frames, and keeps a transaction
// pool that drops the transactions of every admitted block. Inbound
// frames are only logged: they are not decoded or inserted into the
// chain, and this command neither enqueues nor packages transactions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"empower1.com/sleepycore/internal/chain"
	"empower1.com/sleepycore/internal/config"
	"empower1.com/sleepycore/internal/core"
	"empower1.com/sleepycore/internal/cryptoadapter"
	"empower1.com/sleepycore/internal/logging"
	"empower1.com/sleepycore/internal/mempool"
	"empower1.com/sleepycore/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sleepynode:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if cfg.ConfigFile != "" {
		if err := config.LoadIniFile(cfg, cfg.ConfigFile); err != nil {
			return fmt.Errorf("load config file %s: %w", cfg.ConfigFile, err)
		}
	}

	backend := logging.NewBackend(os.Stdout)
	chain.UseLogger(backend.Logger("CHAN"))
	transport.UseLogger(backend.Logger("XPRT"))
	log := backend.Logger("NODE")

	if cfg.SignerPrivateKey != "" {
		privKeyBytes, err := cfg.PrivateKeyBytes()
		if err != nil {
			return err
		}
		keyPair := cryptoadapter.KeyPairFromPrivateKey(privKeyBytes)
		log.Infof("node %d signing with public key %x", cfg.IDCard, keyPair.Pub)
	} else {
		log.Infof("node %d started without a signing key: peer-ingest only, no mining", cfg.IDCard)
	}

	pool, err := mempool.NewWithStrategy(cfg.PoolCapacity, cfg.PackageLimit, cfg.Strategy())
	if err != nil {
		return fmt.Errorf("build transaction pool: %w", err)
	}

	store := chain.New(chain.Config{
		HZ: cfg.HZ,
		OnAdmit: func(b core.SignedBlock) {
			hashes := make([]core.Hash, len(b.Transactions))
			for i, tx := range b.Transactions {
				hashes[i] = tx.Hash()
			}
			pool.Update(hashes)
		},
	})

	peers := make([]transport.PeerConfig, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peers = append(peers, transport.PeerConfig{IDCard: p.IDCard, IP: p.IP, Port: p.Port})
	}
	conn := transport.NewConnection(cfg.IDCard, peers)
	outbox := transport.NewOutbox(256)

	listenAddr := fmt.Sprintf(":%d", cfg.ListenPort)
	listener, err := transport.Listen(listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return store.Run(ctx) })
	g.Go(func() error { return conn.Run(ctx, outbox) })
	g.Go(func() error {
		// Decoding a received payload into a SignedBlock or
		// SignedTransaction is left to the persistence/RPC layer this
		// core treats as an external collaborator; this handler only
		// observes that a frame arrived.
		return listener.Serve(ctx, func(origin uint32, payload []byte) {
			log.Debugf("received %d-byte frame from origin %d", len(payload), origin)
		})
	})

	log.Infof("node %d started, %d configured peers", cfg.IDCard, len(peers))
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Infof("node %d shut down", cfg.IDCard)
	return nil
}
