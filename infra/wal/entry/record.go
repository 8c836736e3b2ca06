package entry

import "time"

type RecordType uint8

const (
	// RecordLine carries one raw feed line, exactly as received.
	RecordLine RecordType = iota + 1
	// RecordOversized stands in for a line too long to keep. No payload.
	RecordOversized
)

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewLine(seq uint64, line string) *Record {
	return &Record{
		Type: RecordLine,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: []byte(line),
	}
}

func NewOversized(seq uint64) *Record {
	return &Record{
		Type: RecordOversized,
		Seq:  seq,
		Time: time.Now().UnixNano(),
	}
}
