package chunk

import (
	"encoding/binary"
	"fmt"
	"math"

	"filedrop/errors"
)

// HeaderSize is the fixed length of the binary chunk header:
// 8 bytes start offset, 8 bytes end offset (both big-endian, inclusive)
// followed by a single checksum byte.
const HeaderSize = 17

// Header is the decoded wire header preceding every chunk payload.
type Header struct {
	Start    int64
	End      int64
	Checksum byte
}

func (h Header) Range() Range {
	return Range{Start: h.Start, End: h.End}
}

// Decode splits raw upload bytes into the fixed header and the payload.
// It fails with ErrMalformedHeader when fewer than HeaderSize bytes precede
// the payload or when the advertised range is inverted.
func Decode(raw []byte) (Header, []byte, error) {
	if len(raw) < HeaderSize {
		return Header{}, nil, fmt.Errorf("%w: need %d header bytes, got %d",
			errors.ErrMalformedHeader, HeaderSize, len(raw))
	}
	start := binary.BigEndian.Uint64(raw[0:8])
	end := binary.BigEndian.Uint64(raw[8:16])
	if start > math.MaxInt64 || end > math.MaxInt64 {
		return Header{}, nil, fmt.Errorf("%w: offset overflows int64", errors.ErrMalformedHeader)
	}
	if start > end {
		return Header{}, nil, fmt.Errorf("%w: start %d beyond end %d",
			errors.ErrMalformedHeader, start, end)
	}
	header := Header{Start: int64(start), End: int64(end), Checksum: raw[16]}
	return header, raw[HeaderSize:], nil
}

// Encode renders the header in its wire form. Used by the sendfile client
// and by tests building upload bodies.
func Encode(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(h.Start))
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.End))
	buf[16] = h.Checksum
	return buf
}

// Sum computes the payload checksum: the sum of all bytes modulo 256.
func Sum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return sum
}

// Verify checks the payload length against the advertised range and
// recomputes the checksum. A mismatching chunk must be rejected by the
// caller without advancing coverage.
func Verify(h Header, payload []byte) error {
	if int64(len(payload)) != h.Range().Len() {
		return fmt.Errorf("%w: range advertises %d bytes, payload carries %d",
			errors.ErrMalformedHeader, h.Range().Len(), len(payload))
	}
	if got := Sum(payload); got != h.Checksum {
		return fmt.Errorf("%w: header declares %d, payload sums to %d",
			errors.ErrChecksumMismatch, h.Checksum, got)
	}
	return nil
}
