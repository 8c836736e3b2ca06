package exit

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Record is one emitted quote waiting for (or done with) publication.
// Seq is the input line sequence that produced it.
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

var (
	ErrNotFound = errors.New("outbox: record not found")
	ErrExists   = errors.New("outbox: record already exists")
)

const (
	keyPrefix  = "quote/"
	metaSize   = 1 + 4 + 8
	upperBound = "quote/~"
)

// [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, metaSize+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[metaSize:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < metaSize {
		return Record{}, errors.Newf("outbox: short record for seq %d", seq)
	}
	payload := make([]byte, len(b)-metaSize)
	copy(payload, b[metaSize:])
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// Outbox is the exit WAL: quotes are stored before anyone tries to
// publish them, and only leave once acknowledged.
type Outbox struct {
	db  *pebble.DB
	now func() time.Time
}

type Option func(*pebble.Options)

// WithFS swaps the filesystem, mainly for vfs.NewMem in tests.
func WithFS(fs vfs.FS) Option {
	return func(o *pebble.Options) { o.FS = fs }
}

func Open(dir string, opts ...Option) (*Outbox, error) {
	o := &pebble.Options{}
	for _, opt := range opts {
		opt(o)
	}
	db, err := pebble.Open(dir, o)
	if err != nil {
		return nil, errors.Wrap(err, "open outbox")
	}
	return &Outbox{db: db, now: time.Now}, nil
}

func (w *Outbox) Close() error {
	return w.db.Close()
}

// PutNew stores a quote payload as NEW. It never replaces a record that
// is already there, whatever its state.
func (w *Outbox) PutNew(seq uint64, payload []byte) error {
	_, closer, err := w.db.Get(keyFor(seq))
	switch {
	case err == nil:
		_ = closer.Close()
		return errors.Wrapf(ErrExists, "seq %d", seq)
	case !errors.Is(err, pebble.ErrNotFound):
		return err
	}
	return w.put(Record{Seq: seq, State: StateNew, Payload: payload})
}

// LastSeq returns the highest seq stored, or 0 for an empty outbox.
// Records survive restarts, so new quotes must be keyed after it.
func (w *Outbox) LastSeq() (uint64, error) {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(upperBound),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

func (w *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, errors.Wrapf(ErrNotFound, "seq %d", seq)
	}
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

func (w *Outbox) MarkSent(seq uint64) error {
	return w.transition(seq, func(r *Record) {
		r.State = StateSent
		r.LastAttempt = w.now().UnixNano()
	})
}

func (w *Outbox) MarkAcked(seq uint64) error {
	return w.transition(seq, func(r *Record) { r.State = StateAcked })
}

// MarkFailed records a failed attempt; the record stays pending.
func (w *Outbox) MarkFailed(seq uint64) error {
	return w.transition(seq, func(r *Record) {
		r.State = StateFailed
		r.Retries++
		r.LastAttempt = w.now().UnixNano()
	})
}

// ScanPending visits every record not yet acknowledged, in seq order.
// SENT records are included: a crash between send and ack must resend.
func (w *Outbox) ScanPending(fn func(Record) error) error {
	return w.scan(func(r Record) (bool, error) {
		if r.State == StateAcked {
			return true, nil
		}
		return true, fn(r)
	})
}

// PurgeAcked deletes acknowledged records and reports how many went.
func (w *Outbox) PurgeAcked() (int, error) {
	b := w.db.NewBatch()
	defer b.Close()

	n := 0
	err := w.scan(func(r Record) (bool, error) {
		if r.State == StateAcked {
			n++
			return true, b.Delete(keyFor(r.Seq), nil)
		}
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, b.Commit(pebble.Sync)
}

// Count returns the number of records per state.
func (w *Outbox) Count() (map[State]int, error) {
	out := make(map[State]int)
	err := w.scan(func(r Record) (bool, error) {
		out[r.State]++
		return true, nil
	})
	return out, err
}

func (w *Outbox) put(r Record) error {
	return w.db.Set(keyFor(r.Seq), encodeRecord(r), pebble.Sync)
}

func (w *Outbox) transition(seq uint64, fn func(*Record)) error {
	r, err := w.Get(seq)
	if err != nil {
		return err
	}
	fn(&r)
	return w.put(r)
}

func (w *Outbox) scan(fn func(Record) (bool, error)) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(upperBound),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		more, err := fn(rec)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	s, ok := strings.CutPrefix(string(b), keyPrefix)
	if !ok {
		return 0, errors.Newf("outbox: bad key %q", b)
	}
	return strconv.ParseUint(s, 10, 64)
}
