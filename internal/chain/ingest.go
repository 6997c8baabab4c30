package chain

import (
	"empower1.com/sleepycore/internal/core"
	internalerrors "empower1.com/sleepycore/internal/errors"
	"empower1.com/sleepycore/internal/metrics"
)

// Insert is the ingestion state machine of spec §4.5. It validates and
// places a candidate block, then drains any orphans that were waiting on
// it, iteratively rather than recursively so stack depth never depends
// on chain length (spec §9).
func (s *Store) Insert(b core.SignedBlock) error {
	h := b.Hash()
	req, err := s.insertOnce(b, h)
	s.dispatchMaintenance(req)
	if err != nil {
		return err
	}

	queue := []core.Hash{h}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for _, blk := range s.takeParentFuture(parent) {
			bh := blk.Hash()
			r, e := s.insertOnce(blk, bh)
			s.dispatchMaintenance(r)
			if e == nil {
				queue = append(queue, bh)
			}
		}
	}
	return nil
}

// insertOnce performs steps 1-9 of spec §4.5 under the fixed lock order.
// It returns a maintenance request to enqueue once locks are released,
// if the insert produced one.
func (s *Store) insertOnce(b core.SignedBlock, h core.Hash) (*maintenanceRequest, error) {
	s.blocksMu.Lock()
	s.heightMu.Lock()
	s.hashMu.Lock()
	s.forksMu.Lock()
	s.mainMu.Lock()
	defer s.mainMu.Unlock()
	defer s.forksMu.Unlock()
	defer s.hashMu.Unlock()
	defer s.heightMu.Unlock()
	defer s.blocksMu.Unlock()

	// 1. Duplicate.
	if _, ok := s.blocks[h]; ok {
		metrics.Observe(metrics.OutcomeDuplicate)
		return nil, internalerrors.ErrDuplicate
	}

	// 2. Height-future.
	if b.Height > s.currentHeight+1 {
		s.parkHeightFuture(b)
		metrics.Observe(metrics.OutcomeFutureHeight)
		return nil, internalerrors.ErrFutureHeight
	}

	// 3. Timestamp-future.
	if b.Proof.Timestamp > s.now() {
		s.parkTimestampFuture(b)
		metrics.Observe(metrics.OutcomeFutureTime)
		return nil, internalerrors.ErrFutureTime
	}

	// 4. First-block check.
	first, err := b.IsFirst()
	if err != nil {
		metrics.Observe(metrics.OutcomeMalformed)
		return nil, err
	}

	var parent core.SignedBlock
	if !first {
		// 5. Orphan.
		p, ok := s.blocks[b.PreHash]
		if !ok {
			s.parkParentFuture(b)
			metrics.Observe(metrics.OutcomeMissParent)
			return nil, internalerrors.ErrMissParent
		}
		parent = p

		// 6. Monotonic time.
		if !(b.Proof.Timestamp > parent.Proof.Timestamp) {
			metrics.Observe(metrics.OutcomeMalformed)
			return nil, internalerrors.ErrMalformed
		}
	}

	// 7. Signature / proof validity.
	if !b.Verify(s.verify) || !b.Proof.Verify(s.verify) {
		metrics.Observe(metrics.OutcomeMalformed)
		return nil, internalerrors.ErrMalformed
	}

	// 8. Admission.
	s.blocks[h] = b
	s.forks[b.Height] = append(s.forks[b.Height], h)
	metrics.Observe(metrics.OutcomeAdmitted)
	if s.onAdmit != nil {
		s.onAdmit(b)
	}

	// 9. Head extension / fork resolution. Step 2 already rejected
	// anything above current_height+1, so b.Height is either the next
	// height or a contender at the height just reached; either way the
	// tip is still live and must reconsider forks[b.Height]. A height
	// below current_height is stale history and left alone here.
	var req *maintenanceRequest
	if b.Height >= s.currentHeight {
		s.currentHeight = b.Height
		siblings := s.forks[b.Height]
		if len(siblings) == 1 {
			s.currentHash = h
			s.main[b.Height] = h
		} else {
			log.Infof("fork at height %d: %d siblings", b.Height, len(siblings))
			pick := siblings[s.rng.Intn(len(siblings))]
			s.currentHash = pick
			s.main[b.Height] = pick
			parentOfPicked := s.blocks[pick].PreHash
			req = &maintenanceRequest{height: b.Height - 1, hash: parentOfPicked}
		}
		logMainTail(s.main, b.Height)
	}

	return req, nil
}

func logMainTail(main map[uint64]core.Hash, tip uint64) {
	const window = 10
	start := uint64(1)
	if tip > window {
		start = tip - window + 1
	}
	for height := start; height <= tip; height++ {
		log.Debugf("  %d => %x", height, main[height])
	}
}

func (s *Store) dispatchMaintenance(req *maintenanceRequest) {
	if req == nil {
		return
	}
	select {
	case s.maintenanceCh <- *req:
	default:
		log.Warnf("maintenance queue full, dropping reorg request for height %d", req.height)
	}
}

func (s *Store) parkHeightFuture(b core.SignedBlock) {
	s.heightFutureMu.Lock()
	defer s.heightFutureMu.Unlock()

	bucket, ok := s.heightFuture.Get(heightBucket{height: b.Height})
	if !ok {
		bucket = heightBucket{height: b.Height, blocks: make(map[core.Hash]core.SignedBlock)}
	}
	bucket.blocks[b.Hash()] = b
	s.heightFuture.ReplaceOrInsert(bucket)
}

func (s *Store) parkTimestampFuture(b core.SignedBlock) {
	s.timestampFutureMu.Lock()
	defer s.timestampFutureMu.Unlock()

	bucket, ok := s.timestampFuture.Get(timestampBucket{timestamp: b.Proof.Timestamp})
	if !ok {
		bucket = timestampBucket{timestamp: b.Proof.Timestamp, blocks: make(map[core.Hash]core.SignedBlock)}
	}
	bucket.blocks[b.Hash()] = b
	s.timestampFuture.ReplaceOrInsert(bucket)
}

func (s *Store) parkParentFuture(b core.SignedBlock) {
	s.parentFutureMu.Lock()
	defer s.parentFutureMu.Unlock()

	set, ok := s.parentFuture[b.PreHash]
	if !ok {
		set = make(map[core.Hash]core.SignedBlock)
		s.parentFuture[b.PreHash] = set
	}
	set[b.Hash()] = b
}

// takeParentFuture removes and returns every block parked on parent.
func (s *Store) takeParentFuture(parent core.Hash) []core.SignedBlock {
	s.parentFutureMu.Lock()
	defer s.parentFutureMu.Unlock()

	set, ok := s.parentFuture[parent]
	if !ok {
		return nil
	}
	delete(s.parentFuture, parent)

	out := make([]core.SignedBlock, 0, len(set))
	for _, b := range set {
		out = append(out, b)
	}
	return out
}
