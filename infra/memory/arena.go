package memory

// DefaultChunkSize is the number of slots allocated at once when the arena grows.
const DefaultChunkSize = 4096

// Handle addresses a live slot in an Arena. The zero Handle is never valid.
type Handle struct {
	idx uint32
	gen uint32
}

// Nil is the zero handle.
var Nil Handle

func (h Handle) IsNil() bool { return h.gen == 0 }

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Arena is a typed, chunked slab. Slots never move once allocated, so a
// pointer returned by Get stays valid until the handle is freed. Freed
// slots are recycled LIFO and their generation is bumped, which turns
// every outstanding handle to them stale.
type Arena[T any] struct {
	chunks    [][]slot[T]
	chunkSize uint32
	next      uint32
	free      []uint32
	live      int
}

func NewArena[T any](chunkSize int) *Arena[T] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Arena[T]{chunkSize: uint32(chunkSize)}
}

// Alloc returns a zeroed slot and its handle.
func (a *Arena[T]) Alloc() (Handle, *T) {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if a.next == uint32(len(a.chunks))*a.chunkSize {
			a.chunks = append(a.chunks, make([]slot[T], a.chunkSize))
		}
		idx = a.next
		a.next++
	}

	s := a.slot(idx)
	s.gen++
	if s.gen == 0 {
		// wrapped; zero is reserved for Nil
		s.gen = 1
	}
	s.live = true
	a.live++
	return Handle{idx: idx, gen: s.gen}, &s.value
}

// Get resolves h, returning nil when h is nil, freed or from another arena.
func (a *Arena[T]) Get(h Handle) *T {
	if h.gen == 0 || h.idx >= a.next {
		return nil
	}
	s := a.slot(h.idx)
	if !s.live || s.gen != h.gen {
		return nil
	}
	return &s.value
}

// Free releases h. It reports false when h was already stale.
func (a *Arena[T]) Free(h Handle) bool {
	if a.Get(h) == nil {
		return false
	}
	s := a.slot(h.idx)
	var zero T
	s.value = zero
	s.live = false
	a.free = append(a.free, h.idx)
	a.live--
	return true
}

// Len is the number of live slots.
func (a *Arena[T]) Len() int { return a.live }

// Cap is the number of slots allocated so far, live or free.
func (a *Arena[T]) Cap() int { return len(a.chunks) * int(a.chunkSize) }

func (a *Arena[T]) slot(idx uint32) *slot[T] {
	return &a.chunks[idx/a.chunkSize][idx%a.chunkSize]
}
