package entry

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
)

const segmentGlob = "segment-*.wal"

type segment struct {
	file   *os.File
	w      *bufio.Writer
	offset int64
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.wal", index))
}

func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open segment")
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stat segment")
	}
	return &segment{file: f, w: bufio.NewWriterSize(f, 64<<10), offset: st.Size()}, nil
}

func (s *segment) append(b []byte) error {
	n, err := s.w.Write(b)
	s.offset += int64(n)
	return err
}

func (s *segment) flush(sync bool) error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if sync {
		return s.file.Sync()
	}
	return nil
}

func (s *segment) close() error {
	ferr := s.w.Flush()
	cerr := s.file.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

// listSegments returns segment paths in index order.
func listSegments(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, segmentGlob))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func segmentIndex(path string) (int, bool) {
	var idx int
	if _, err := fmt.Sscanf(filepath.Base(path), "segment-%06d.wal", &idx); err != nil {
		return 0, false
	}
	return idx, true
}
