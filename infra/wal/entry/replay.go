package entry

import (
	"bufio"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

type ReplayHandler func(*Record) error

// Replay feeds every record in dir to fn in sequence order and returns
// the last sequence seen. A torn record ends its segment: segments are
// never reopened for append, so it can only be a crash mid-write.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := listSegments(dir)
	if err != nil {
		return 0, err
	}

	for _, path := range files {
		lastSeq, err = replaySegment(path, lastSeq, fn)
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, lastSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, errors.Wrap(err, "open segment")
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64<<10)
	for {
		rec, err := decode(r)
		switch {
		case err == io.EOF:
			return lastSeq, nil
		case errors.Is(err, ErrTornWrite):
			return lastSeq, nil
		case err != nil:
			return lastSeq, errors.Wrapf(err, "segment %s after seq %d", path, lastSeq)
		}

		if rec.Seq <= lastSeq {
			return lastSeq, errors.Newf("journal: non-monotonic seq %d after %d", rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}
