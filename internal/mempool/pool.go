// Package mempool holds transactions waiting to be packaged into a
// block. It layers a capacity-bounded deduplication filter over a
// strictly-ordered rank set and a content map, per spec §4.3.
package mempool

import (
	"sync"

	"github.com/google/btree"
	lru "github.com/hashicorp/golang-lru/v2"

	"empower1.com/sleepycore/internal/core"
	internalerrors "empower1.com/sleepycore/internal/errors"
	"empower1.com/sleepycore/internal/metrics"
)

// Strategy selects how a newly enqueued transaction's rank is computed.
// PRIORITY and VIP are extension points: the current design yields
// identical ordering to FIFO for both, matching the upstream pool this
// design is based on.
type Strategy int

const (
	FIFO Strategy = iota
	PRIORITY
	VIP
)

func (s Strategy) String() string {
	switch s {
	case FIFO:
		return "fifo"
	case PRIORITY:
		return "priority"
	case VIP:
		return "vip"
	default:
		return "unknown"
	}
}

// txOrder is a (hash, rank) pair; order_set orders strictly by rank.
type txOrder struct {
	hash core.Hash
	rank uint64
}

func orderLess(a, b txOrder) bool {
	return a.rank < b.rank
}

// Pool is the transaction admission pool that feeds block production.
// Its mutex makes every method safe for concurrent use: cmd/sleepynode
// calls Update from the chain store's OnAdmit hook, which runs on the
// ingestion path, while the block producer enqueues and packages.
type Pool struct {
	mu sync.RWMutex

	packageLimit int
	strategy     Strategy
	filter       *lru.Cache[core.Hash, struct{}]
	orderSet     *btree.BTreeG[txOrder]
	txs          map[core.Hash]core.Transaction
	ranks        map[core.Hash]uint64
	rank         uint64
}

// New creates a Pool using the FIFO strategy.
func New(capacity, packageLimit int) (*Pool, error) {
	return NewWithStrategy(capacity, packageLimit, FIFO)
}

// NewWithStrategy creates a Pool with an explicit packaging strategy.
// capacity bounds the dedup filter; packageLimit bounds how many
// transactions a single Package call returns.
func NewWithStrategy(capacity, packageLimit int, strategy Strategy) (*Pool, error) {
	filter, err := lru.New[core.Hash, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &Pool{
		packageLimit: packageLimit,
		strategy:     strategy,
		filter:       filter,
		orderSet:     btree.NewG(32, orderLess),
		txs:          make(map[core.Hash]core.Transaction),
		ranks:        make(map[core.Hash]uint64),
	}, nil
}

// nextRank assigns this transaction's rank per the pool's strategy. The
// counter is 64-bit and wraps on overflow; wrap is tolerated because
// the filter capacity bounds active membership far below 2^64.
func (p *Pool) nextRank(tx core.Transaction) uint64 {
	switch p.strategy {
	case PRIORITY:
		return p.orderByPriority(tx)
	case VIP:
		return p.orderByVIP(tx)
	default:
		return p.orderByFIFO()
	}
}

func (p *Pool) orderByFIFO() uint64 {
	r := p.rank
	p.rank++
	return r
}

func (p *Pool) orderByPriority(tx core.Transaction) uint64 { return p.orderByFIFO() }

func (p *Pool) orderByVIP(tx core.Transaction) uint64 { return p.orderByFIFO() }

// Enqueue admits tx if the dedup filter has not already admitted its
// hash. It returns false, leaving the pool unmodified, if the filter
// rejects the hash.
func (p *Pool) Enqueue(tx core.Transaction) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := tx.Hash()
	if p.filter.Contains(h) {
		metrics.PoolRejected.Inc()
		return false
	}
	p.filter.Add(h, struct{}{})

	rank := p.nextRank(tx)
	p.orderSet.ReplaceOrInsert(txOrder{hash: h, rank: rank})
	p.txs[h] = tx
	p.ranks[h] = rank
	metrics.PoolSize.Set(float64(len(p.txs)))
	return true
}

// Update removes every hash in hashes from the pool, typically after a
// block containing them has been committed.
func (p *Pool) Update(hashes []core.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range hashes {
		rank, ok := p.ranks[h]
		if !ok {
			continue
		}
		p.orderSet.Delete(txOrder{hash: h, rank: rank})
		delete(p.ranks, h)
		delete(p.txs, h)
	}
	metrics.PoolSize.Set(float64(len(p.txs)))
}

// Package walks order_set in ascending rank, taking up to packageLimit
// transactions whose hash is still present in txs. It panics if it
// finds an order_set entry whose hash is absent from txs: that can only
// happen if something other than Update removed a transaction, which is
// a contract violation.
func (p *Pool) Package() ([]core.Transaction, []core.Hash) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	txList := make([]core.Transaction, 0, p.packageLimit)
	hashList := make([]core.Hash, 0, p.packageLimit)

	p.orderSet.Ascend(func(order txOrder) bool {
		if len(txList) >= p.packageLimit {
			return false
		}
		tx, ok := p.txs[order.hash]
		if !ok {
			panic(internalerrors.ErrOrderSetTxMissing)
		}
		txList = append(txList, tx)
		hashList = append(hashList, order.hash)
		return true
	})

	return txList, hashList
}

// Len returns the number of transactions currently admitted.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}
