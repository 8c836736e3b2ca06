package sequence

import "sync/atomic"

// Sequencer hands out the per-line sequence numbers that key the journal
// and the quote outbox. Numbers start at 1 and never repeat within a run.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
// Fresh start passes 0; after a journal replay pass the last replayed seq.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Resume moves the sequencer forward to v. It never moves backwards.
func (s *Sequencer) Resume(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
