package feed

import (
	"fmt"
	"io"
)

var reportLabels = [numKinds]string{
	KindCorrupted:      "[ GLOBAL] Corrupted messages",
	KindOutOfRange:     "[ GLOBAL] Out of bounds or otherwise weird data",
	KindUnknownOrder:   "[  ORDER] Modify without corresponding order",
	KindDuplicateOrder: "[  ORDER] Duplicate order id",
	KindUnexpected:     "[SERIOUS] Unexpected exception",
}

// Summary tallies classified message errors.
type Summary struct {
	counts [numKinds]uint64
}

func (s *Summary) Record(k ErrorKind) {
	if k < numKinds {
		s.counts[k]++
	}
}

func (s *Summary) Count(k ErrorKind) uint64 {
	if k >= numKinds {
		return 0
	}
	return s.counts[k]
}

func (s *Summary) Total() uint64 {
	var n uint64
	for _, c := range s.counts {
		n += c
	}
	return n
}

func (s *Summary) Empty() bool { return s.Total() == 0 }

// WriteTo prints the human-readable error report.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	var written int64
	n, err := fmt.Fprintln(w, "Errors:")
	written += int64(n)
	if err != nil {
		return written, err
	}
	for _, k := range Kinds {
		n, err = fmt.Fprintf(w, "%s: %d\n", reportLabels[k], s.Count(k))
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
