// Package chain implements the in-memory, fork-aware block graph: the
// ingestion state machine, the canonical main-chain index, the fork
// table, the three future buckets, and the maintenance (reorg) and
// future-replay workers that keep them converging. See spec §4.4-4.7.
package chain

import (
	"math/rand"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/btree"

	"empower1.com/sleepycore/internal/core"
	"empower1.com/sleepycore/internal/cryptoadapter"
)

func defaultVerify(pub core.PubKey, sig core.Signature, digest core.Hash) bool {
	return cryptoadapter.Verify(pub, sig, digest)
}

// log defaults to the no-op logger; cmd/sleepynode installs a real one
// via UseLogger.
var log = slog.Disabled

// UseLogger installs logger as the package-wide logger for chain.
func UseLogger(logger slog.Logger) {
	log = logger
}

// RNG is the minimal random source Insert needs to pick a sibling at a
// contested tip. spec §9 requires tests to be able to inject it.
type RNG interface {
	Intn(n int) int
}

// TimeSource returns the current wall-clock time in Unix milliseconds.
type TimeSource func() uint64

// Verifier matches cryptoadapter.Verify's signature; Store checks
// signatures through one rather than calling cryptoadapter.Verify
// directly so tests can substitute a fake. The default is
// cryptoadapter.Verify.
type Verifier func(pub core.PubKey, sig core.Signature, digest core.Hash) bool

type heightBucket struct {
	height uint64
	blocks map[core.Hash]core.SignedBlock
}

func heightBucketLess(a, b heightBucket) bool { return a.height < b.height }

type timestampBucket struct {
	timestamp uint64
	blocks    map[core.Hash]core.SignedBlock
}

func timestampBucketLess(a, b timestampBucket) bool { return a.timestamp < b.timestamp }

// Store holds every mutable piece of chain state named in spec §3. Each
// of the eight sub-maps is guarded by its own sync.RWMutex; every
// operation that needs more than one acquires them in the fixed order
// blocks -> height -> hash -> forks -> main -> height_future ->
// timestamp_future -> parent_future, per spec §5.
type Store struct {
	blocksMu sync.RWMutex
	blocks   map[core.Hash]core.SignedBlock

	heightMu      sync.RWMutex
	currentHeight uint64

	hashMu      sync.RWMutex
	currentHash core.Hash

	forksMu sync.RWMutex
	forks   map[uint64][]core.Hash

	mainMu sync.RWMutex
	main   map[uint64]core.Hash

	heightFutureMu sync.RWMutex
	heightFuture   *btree.BTreeG[heightBucket]

	timestampFutureMu sync.RWMutex
	timestampFuture   *btree.BTreeG[timestampBucket]

	parentFutureMu sync.RWMutex
	parentFuture   map[core.Hash]map[core.Hash]core.SignedBlock

	maintenanceCh chan maintenanceRequest

	now     TimeSource
	verify  Verifier
	rng     RNG
	hz      int
	onAdmit func(core.SignedBlock)
}

// Config configures a new Store. Zero-value fields take the defaults
// documented on each.
type Config struct {
	// Now returns the current wall-clock time in Unix milliseconds.
	// Defaults to time.Now().
	Now TimeSource
	// Verify checks a signature against a public key and digest.
	// Defaults to cryptoadapter.Verify.
	Verify Verifier
	// Rand picks a sibling when a fork lands at the tip. Defaults to
	// math/rand's top-level source.
	Rand RNG
	// HZ is the future-replay worker's tick rate, ticks per second.
	// Defaults to 10, per spec §6.
	HZ int
	// MaintenanceQueueSize bounds the single-producer single-consumer
	// maintenance queue. Defaults to 256.
	MaintenanceQueueSize int
	// OnAdmit, if set, is called synchronously every time a block is
	// newly admitted into blocks, after the fork table is updated but
	// before head-extension logic runs. It is the hook the transaction
	// pool uses to drop the transactions a freshly admitted block
	// carries; it must not call back into the Store.
	OnAdmit func(core.SignedBlock)
}

// New creates a Store with all future buckets and indexes empty, tip at
// height 0 with the all-zero hash, per spec §3.
func New(cfg Config) *Store {
	if cfg.Now == nil {
		cfg.Now = func() uint64 { return uint64(time.Now().UnixMilli()) }
	}
	if cfg.Verify == nil {
		cfg.Verify = defaultVerify
	}
	if cfg.Rand == nil {
		cfg.Rand = defaultRNG{}
	}
	if cfg.HZ <= 0 {
		cfg.HZ = 10
	}
	if cfg.MaintenanceQueueSize <= 0 {
		cfg.MaintenanceQueueSize = 256
	}

	return &Store{
		blocks:          make(map[core.Hash]core.SignedBlock),
		forks:           make(map[uint64][]core.Hash),
		main:            make(map[uint64]core.Hash),
		heightFuture:    btree.NewG(32, heightBucketLess),
		timestampFuture: btree.NewG(32, timestampBucketLess),
		parentFuture:    make(map[core.Hash]map[core.Hash]core.SignedBlock),
		maintenanceCh:   make(chan maintenanceRequest, cfg.MaintenanceQueueSize),
		now:             cfg.Now,
		verify:          cfg.Verify,
		rng:             cfg.Rand,
		hz:              cfg.HZ,
		onAdmit:         cfg.OnAdmit,
	}
}

// Status returns the canonical tip: its height and hash.
func (s *Store) Status() (uint64, core.Hash) {
	s.heightMu.RLock()
	height := s.currentHeight
	s.heightMu.RUnlock()

	s.hashMu.RLock()
	hash := s.currentHash
	s.hashMu.RUnlock()

	return height, hash
}

// Get returns the admitted block with the given hash, if any.
func (s *Store) Get(hash core.Hash) (core.SignedBlock, bool) {
	s.blocksMu.RLock()
	defer s.blocksMu.RUnlock()
	b, ok := s.blocks[hash]
	return b, ok
}

// MainHash returns the canonical hash recorded at height, if any.
func (s *Store) MainHash(height uint64) (core.Hash, bool) {
	s.mainMu.RLock()
	defer s.mainMu.RUnlock()
	h, ok := s.main[height]
	return h, ok
}

// Forks returns a copy of the sibling hashes admitted at height.
func (s *Store) Forks(height uint64) []core.Hash {
	s.forksMu.RLock()
	defer s.forksMu.RUnlock()
	siblings := s.forks[height]
	out := make([]core.Hash, len(siblings))
	copy(out, siblings)
	return out
}

type maintenanceRequest struct {
	height uint64
	hash   core.Hash
}

type defaultRNG struct{}

func (defaultRNG) Intn(n int) int { return rand.Intn(n) }
