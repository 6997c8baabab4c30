package chain

import (
	"errors"
	"testing"

	"empower1.com/sleepycore/internal/core"
	internalerrors "empower1.com/sleepycore/internal/errors"
)

// S1: linear extension advances the tip one block at a time.
func TestInsertLinearExtension(t *testing.T) {
	s, _ := newTestStore(1_000_000, 0)

	b1 := block(1, core.Hash{}, 100)
	if err := s.Insert(b1); err != nil {
		t.Fatalf("insert genesis block: %v", err)
	}
	height, hash := s.Status()
	if height != 1 || hash != b1.Hash() {
		t.Fatalf("expected tip (1, %x), got (%d, %x)", b1.Hash(), height, hash)
	}

	b2 := block(2, b1.Hash(), 200)
	if err := s.Insert(b2); err != nil {
		t.Fatalf("insert second block: %v", err)
	}
	height, hash = s.Status()
	if height != 2 || hash != b2.Hash() {
		t.Fatalf("expected tip (2, %x), got (%d, %x)", b2.Hash(), height, hash)
	}
}

// S2: a block whose parent has not yet arrived parks until the parent is
// admitted, then is adopted without the caller re-submitting it.
func TestInsertOrphanAdoption(t *testing.T) {
	s, _ := newTestStore(1_000_000, 0)

	real := block(1, core.Hash{}, 100)
	if err := s.Insert(real); err != nil {
		t.Fatalf("insert real parent: %v", err)
	}

	phantom := block(1, core.Hash{}, 999) // never admitted (yet); different hash than real
	child := block(2, phantom.Hash(), 1500)

	if err := s.Insert(child); !errors.Is(err, internalerrors.ErrMissParent) {
		t.Fatalf("expected ErrMissParent for orphan, got %v", err)
	}
	if _, ok := s.Get(child.Hash()); ok {
		t.Fatal("expected orphan not to be admitted yet")
	}

	if err := s.Insert(phantom); err != nil {
		t.Fatalf("insert phantom parent: %v", err)
	}

	if _, ok := s.Get(child.Hash()); !ok {
		t.Fatal("expected orphan to be adopted once its parent was admitted")
	}
	height, hash := s.Status()
	if height != 2 || hash != child.Hash() {
		t.Fatalf("expected adopted orphan to become the tip, got (%d, %x)", height, hash)
	}
}

// S3: a block whose height exceeds current_height+1 parks in the
// height-future bucket and is released by the replay worker once the
// chain catches up.
func TestHeightFutureReplay(t *testing.T) {
	s, _ := newTestStore(1_000_000, 0)

	b1 := block(1, core.Hash{}, 100)
	b2 := block(2, b1.Hash(), 200)
	b3 := block(3, b2.Hash(), 300)

	if err := s.Insert(b3); !errors.Is(err, internalerrors.ErrFutureHeight) {
		t.Fatalf("expected ErrFutureHeight, got %v", err)
	}

	if err := s.Insert(b1); err != nil {
		t.Fatalf("insert b1: %v", err)
	}
	if err := s.Insert(b2); err != nil {
		t.Fatalf("insert b2: %v", err)
	}

	s.replayHeightFuture()

	if _, ok := s.Get(b3.Hash()); !ok {
		t.Fatal("expected height-future replay to admit b3 once the chain reached height 2")
	}
	height, hash := s.Status()
	if height != 3 || hash != b3.Hash() {
		t.Fatalf("expected tip (3, %x) after replay, got (%d, %x)", b3.Hash(), height, hash)
	}
}

// S4: a block whose proof timestamp is ahead of now() parks in the
// timestamp-future bucket until the clock catches up.
func TestTimestampFutureReplay(t *testing.T) {
	s, c := newTestStore(500, 0)

	future := block(1, core.Hash{}, 10_000)
	if err := s.Insert(future); !errors.Is(err, internalerrors.ErrFutureTime) {
		t.Fatalf("expected ErrFutureTime, got %v", err)
	}

	c.now = 20_000
	s.replayTimestampFuture()

	if _, ok := s.Get(future.Hash()); !ok {
		t.Fatal("expected timestamp-future replay to admit the block once now() passed its timestamp")
	}
}

// S5: two blocks extending the same parent both land at the tip; the
// store picks one via the injected RNG and schedules maintenance to
// reconcile the picked sibling's ancestry.
func TestForkAtTipResolution(t *testing.T) {
	s, _ := newTestStore(1_000_000, 1) // pick index 1: the second-inserted sibling

	root := block(1, core.Hash{}, 100)
	if err := s.Insert(root); err != nil {
		t.Fatalf("insert root: %v", err)
	}

	siblingA := block(2, root.Hash(), 200)
	siblingB := block(2, root.Hash(), 201)

	if err := s.Insert(siblingA); err != nil {
		t.Fatalf("insert siblingA: %v", err)
	}
	if err := s.Insert(siblingB); err != nil {
		t.Fatalf("insert siblingB: %v", err)
	}

	forks := s.Forks(2)
	if len(forks) != 2 {
		t.Fatalf("expected 2 siblings at height 2, got %d", len(forks))
	}

	height, hash := s.Status()
	if height != 2 || hash != siblingB.Hash() {
		t.Fatalf("expected fake RNG pick (index 1) to select siblingB as tip, got (%d, %x)", height, hash)
	}
	mainHash, ok := s.MainHash(2)
	if !ok || mainHash != siblingB.Hash() {
		t.Fatalf("expected main[2] to record the picked sibling's hash, got %x (ok=%v)", mainHash, ok)
	}

	select {
	case req := <-s.maintenanceCh:
		if req.height != 1 || req.hash != root.Hash() {
			t.Fatalf("expected maintenance request (1, %x), got (%d, %x)", root.Hash(), req.height, req.hash)
		}
	default:
		t.Fatal("expected a maintenance request to have been enqueued")
	}
}

// S6: maintain walks backward through main, rewriting every height until
// it converges on an entry that is already correct.
func TestMaintainWalksBackUntilConverged(t *testing.T) {
	s, _ := newTestStore(1_000_000, 0)

	a1 := block(1, core.Hash{}, 100)
	a2 := block(2, a1.Hash(), 200)
	a3 := block(3, a2.Hash(), 300)

	for _, b := range []core.SignedBlock{a1, a2, a3} {
		s.blocks[b.Hash()] = b
	}
	s.main[1] = core.Hash{0xAA} // wrong: disagrees with a1
	s.main[2] = core.Hash{0xBB} // wrong: disagrees with a2
	s.main[3] = a3.Hash()       // already correct

	s.maintain(2, a2.Hash())

	if s.main[2] != a2.Hash() {
		t.Fatalf("expected main[2] rewritten to %x, got %x", a2.Hash(), s.main[2])
	}
	if s.main[1] != a1.Hash() {
		t.Fatalf("expected maintain to walk back and rewrite main[1] to %x, got %x", a1.Hash(), s.main[1])
	}
}

func TestMaintainStopsAtGenesis(t *testing.T) {
	s, _ := newTestStore(1_000_000, 0)

	a1 := block(1, core.Hash{}, 100)
	s.blocks[a1.Hash()] = a1
	s.main[1] = core.Hash{0xAA}

	s.maintain(1, a1.Hash())

	if s.main[1] != a1.Hash() {
		t.Fatalf("expected main[1] rewritten to %x, got %x", a1.Hash(), s.main[1])
	}
	if _, ok := s.main[0]; ok {
		t.Fatal("expected maintain not to fabricate a main[0] entry beyond the genesis sentinel")
	}
}

func TestDuplicateInsertRejected(t *testing.T) {
	s, _ := newTestStore(1_000_000, 0)

	b1 := block(1, core.Hash{}, 100)
	if err := s.Insert(b1); err != nil {
		t.Fatalf("insert b1: %v", err)
	}
	if err := s.Insert(b1); !errors.Is(err, internalerrors.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on re-insert, got %v", err)
	}
}

func TestNonMonotonicTimestampRejected(t *testing.T) {
	s, _ := newTestStore(1_000_000, 0)

	b1 := block(1, core.Hash{}, 500)
	if err := s.Insert(b1); err != nil {
		t.Fatalf("insert b1: %v", err)
	}

	stale := block(2, b1.Hash(), 400) // not after parent's timestamp
	if err := s.Insert(stale); !errors.Is(err, internalerrors.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for non-monotonic timestamp, got %v", err)
	}
}
