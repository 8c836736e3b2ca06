package entry

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cockroachdb/errors"
)

// Frame layout, big endian:
// [type:1][seq:8][time:8][len:4][payload][crc:4]
// The crc covers header and payload.
const headerSize = 1 + 8 + 8 + 4

// MaxPayload bounds a single record so a corrupt length can't force a
// huge allocation on replay.
const MaxPayload = 1 << 20

var (
	ErrChecksum  = errors.New("journal: crc mismatch")
	ErrTooLarge  = errors.New("journal: record too large")
	ErrTornWrite = errors.New("journal: torn record")
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func encode(r *Record) []byte {
	n := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(n)+4)
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], n)
	copy(buf[headerSize:], r.Data)
	binary.BigEndian.PutUint32(buf[headerSize+int(n):], crc32.Checksum(buf[:headerSize+int(n)], crcTable))
	return buf
}

// decode reads one frame. A clean end of input is io.EOF; a frame cut
// short is ErrTornWrite.
func decode(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrTornWrite
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[17:21])
	if n > MaxPayload {
		return nil, errors.Wrapf(ErrTooLarge, "%d bytes", n)
	}

	body := make([]byte, int(n)+4)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTornWrite
		}
		return nil, err
	}

	h := crc32.New(crcTable)
	h.Write(header)
	h.Write(body[:n])
	if h.Sum32() != binary.BigEndian.Uint32(body[n:]) {
		return nil, ErrChecksum
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: body[:n],
	}, nil
}
