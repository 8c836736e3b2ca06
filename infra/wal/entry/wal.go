package entry

import (
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

type Config struct {
	Dir         string
	SegmentSize int64
	// SyncEveryAppend fsyncs after each record. Off by default; Flush and
	// Close always sync.
	SyncEveryAppend bool
}

// WAL is the input journal. Every accepted feed line is appended before it
// reaches the book, so replaying the journal reproduces the output.
type WAL struct {
	mu       sync.Mutex
	dir      string
	segSize  int64
	sync     bool
	current  *segment
	segIndex int
	lastSeq  uint64
}

// Open starts a fresh segment after any existing ones. Existing segments
// are never appended to, so a torn tail from a crash stays at the end of
// its own file.
func Open(cfg Config) (*WAL, error) {
	if cfg.Dir == "" {
		return nil, errors.New("journal: empty dir")
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 8 << 20
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create journal dir")
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	next := 0
	var lastSeq uint64
	for _, f := range files {
		if idx, ok := segmentIndex(f); ok && idx >= next {
			next = idx + 1
		}
		seq, err := maxSeqInSegment(f)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", f)
		}
		if seq > lastSeq {
			lastSeq = seq
		}
	}

	seg, err := openSegment(cfg.Dir, next)
	if err != nil {
		return nil, err
	}
	return &WAL{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		sync:     cfg.SyncEveryAppend,
		current:  seg,
		segIndex: next,
		lastSeq:  lastSeq,
	}, nil
}

func (w *WAL) Dir() string { return w.dir }

// LastSeq is the highest sequence already journaled, including segments
// written by earlier runs. New records must continue after it.
func (w *WAL) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}

// Append writes one record. Sequence numbers must be strictly increasing.
func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return errors.New("journal: closed")
	}
	if r.Seq <= w.lastSeq {
		return errors.Newf("journal: non-monotonic seq %d after %d", r.Seq, w.lastSeq)
	}
	if len(r.Data) > MaxPayload {
		return errors.Wrapf(ErrTooLarge, "seq %d", r.Seq)
	}

	if err := w.current.append(encode(r)); err != nil {
		return errors.Wrap(err, "journal append")
	}
	w.lastSeq = r.Seq

	if w.sync {
		if err := w.current.flush(true); err != nil {
			return errors.Wrap(err, "journal sync")
		}
	}
	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	return w.current.flush(true)
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := w.current.flush(true)
	if cerr := w.current.close(); err == nil {
		err = cerr
	}
	w.current = nil
	return err
}

func (w *WAL) rotate() error {
	if err := w.current.flush(true); err != nil {
		return errors.Wrap(err, "journal rotate")
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}
