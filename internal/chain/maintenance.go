package chain

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"empower1.com/sleepycore/internal/core"
)

// maintain rewrites main from height downward until it either converges
// on an already-canonical entry or runs off the front of the chain. It
// is the consumer side of a reorg: Insert enqueues a request instead of
// doing this work itself, per spec §4.6's single-producer
// single-consumer design.
func (s *Store) maintain(height uint64, hash core.Hash) {
	for {
		s.mainMu.Lock()
		if s.main[height] == hash {
			s.mainMu.Unlock()
			return
		}
		s.main[height] = hash
		s.mainMu.Unlock()
		log.Debugf("reorg: height %d now canonical at %x", height, hash)

		if height == 0 {
			return
		}

		s.blocksMu.RLock()
		b, ok := s.blocks[hash]
		s.blocksMu.RUnlock()
		if !ok {
			log.Warnf("maintenance: block %x at height %d missing, stopping walk", hash, height)
			return
		}
		height--
		hash = b.PreHash
	}
}

// runMaintenance is the sole consumer of maintenanceCh. It runs until ctx
// is cancelled.
func (s *Store) runMaintenance(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.maintenanceCh:
			s.maintain(req.height, req.hash)
		}
	}
}

// runFutureReplay ticks at 1000/hz milliseconds, draining both future
// buckets of anything that has become admissible since it was parked.
func (s *Store) runFutureReplay(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(1000/s.hz) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.replayTimestampFuture()
			s.replayHeightFuture()
		}
	}
}

// replayTimestampFuture re-submits every block parked with a proof
// timestamp that is no longer in the future.
func (s *Store) replayTimestampFuture() {
	now := s.now()

	var ready []core.SignedBlock
	var spent []timestampBucket

	s.timestampFutureMu.Lock()
	s.timestampFuture.AscendLessThan(timestampBucket{timestamp: now}, func(bucket timestampBucket) bool {
		for _, b := range bucket.blocks {
			ready = append(ready, b)
		}
		spent = append(spent, bucket)
		return true
	})
	for _, bucket := range spent {
		s.timestampFuture.Delete(bucket)
	}
	s.timestampFutureMu.Unlock()

	for _, b := range ready {
		if err := s.Insert(b); err != nil {
			log.Debugf("future-timestamp replay: %x still not admissible: %v", b.Hash(), err)
		}
	}
}

// replayHeightFuture re-submits every block parked at a height that the
// chain has now grown to reach. The bound is current_height+1, matching
// Insert's own future-height test exactly so nothing parks and unparks
// in a loop.
func (s *Store) replayHeightFuture() {
	s.heightMu.RLock()
	bound := s.currentHeight + 1
	s.heightMu.RUnlock()

	var ready []core.SignedBlock
	var spent []heightBucket

	s.heightFutureMu.Lock()
	s.heightFuture.AscendLessThan(heightBucket{height: bound + 1}, func(bucket heightBucket) bool {
		for _, b := range bucket.blocks {
			ready = append(ready, b)
		}
		spent = append(spent, bucket)
		return true
	})
	for _, bucket := range spent {
		s.heightFuture.Delete(bucket)
	}
	s.heightFutureMu.Unlock()

	for _, b := range ready {
		if err := s.Insert(b); err != nil {
			log.Debugf("future-height replay: %x still not admissible: %v", b.Hash(), err)
		}
	}
}

// Run starts the maintenance and future-replay workers and blocks until
// ctx is cancelled or one of them returns an error.
func (s *Store) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runMaintenance(ctx) })
	g.Go(func() error { return s.runFutureReplay(ctx) })
	return g.Wait()
}
