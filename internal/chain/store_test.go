package chain

import (
	"empower1.com/sleepycore/internal/core"
)

// fakeRNG always returns a fixed index, so fork-pick tests are
// deterministic; spec §9 requires tests to be able to inject the RNG.
type fakeRNG struct {
	pick int
}

func (f fakeRNG) Intn(n int) int {
	if f.pick >= n {
		return n - 1
	}
	return f.pick
}

func alwaysValid(core.PubKey, core.Signature, core.Hash) bool { return true }

// clock is a settable TimeSource for deterministic future-timestamp tests.
type clock struct {
	now uint64
}

func (c *clock) TimeSource() TimeSource {
	return func() uint64 { return c.now }
}

func newTestStore(now uint64, pick int) (*Store, *clock) {
	c := &clock{now: now}
	s := New(Config{
		Now:    c.TimeSource(),
		Verify: alwaysValid,
		Rand:   fakeRNG{pick: pick},
	})
	return s, c
}

// block builds an unsigned-but-verifiable-by-alwaysValid SignedBlock: the
// signature payload is irrelevant since the test Store's Verifier always
// accepts, only the structural fields matter for ingestion.
func block(height uint64, preHash core.Hash, timestamp uint64) core.SignedBlock {
	b := core.Block{Height: height, PreHash: preHash, Proof: core.Proof{Timestamp: timestamp}}
	return core.SignedBlock{Block: b}
}
