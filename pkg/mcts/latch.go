package mcts

import "sync/atomic"

// writerBit marks the single writer bit of a packed latch word; the
// remaining 31 bits are a reader count. See spec §4.B.
const writerBit uint32 = 1 << 31

// latch is a single-writer / multi-reader coordination primitive that
// never blocks: a caller that cannot acquire immediately gets false back
// and must follow the FAIL path (accounting for virtual loss) rather than
// spin or sleep. This is deliberate — see spec §9, "Non-blocking latch":
// blocking here would serialize workers onto the evaluator's batch
// boundaries.
//
// acquireWriter only succeeds from a strictly idle word (no readers, no
// writer). Spec §9 leaves "idle or reader-only" ambiguous for the writer
// CAS; this resolves it conservatively in favor of invariant 2 (at most
// one writer, never concurrent with a reader) — see SPEC_FULL.md §9.
type latch struct {
	state atomic.Uint32
}

func (l *latch) acquireReader() bool {
	for {
		s := l.state.Load()
		if s&writerBit != 0 {
			return false
		}
		if l.state.CompareAndSwap(s, s+1) {
			return true
		}
	}
}

func (l *latch) releaseReader() {
	l.state.Add(^uint32(0))
}

func (l *latch) acquireWriter() bool {
	return l.state.CompareAndSwap(0, writerBit)
}

func (l *latch) releaseWriter() {
	l.state.Store(0)
}

func (l *latch) readers() uint32 {
	return l.state.Load() &^ writerBit
}

func (l *latch) writerHeld() bool {
	return l.state.Load()&writerBit != 0
}
