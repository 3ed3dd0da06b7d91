// Package frame splits a streamed byte sequence into varint-length-delimited
// binary records. Network delivery boundaries do not align with record
// boundaries, so the decoder buffers partial reads until a full length prefix
// and then a full record body are available.
package frame

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultMaxRecordSize caps how large a single record may claim to be. A
// corrupt length prefix must not cause unbounded buffering.
const DefaultMaxRecordSize = 16 << 20

var (
	ErrFrameTooLarge = errors.New("record length exceeds maximum")
	ErrTruncated     = errors.New("stream truncated mid-record")
)

// Decoder reads successive length-delimited records from r.
type Decoder struct {
	r   *bufio.Reader
	max uint64
}

// NewDecoder returns a Decoder over r. maxRecordSize <= 0 selects
// DefaultMaxRecordSize.
func NewDecoder(r io.Reader, maxRecordSize int) *Decoder {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	return &Decoder{r: bufio.NewReader(r), max: uint64(maxRecordSize)}
}

// Next returns the next complete record body. It returns io.EOF when the
// stream ends on a record boundary and ErrTruncated when it ends with a
// partially-delivered record still pending.
func (d *Decoder) Next() ([]byte, error) {
	length, err := d.readLength()
	if err != nil {
		return nil, err
	}
	if length > d.max {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, length, d.max)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(d.r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return body, nil
}

func (d *Decoder) readLength() (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		b, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				if i == 0 {
					return 0, io.EOF
				}
				return 0, ErrTruncated
			}
			return 0, err
		}
		if shift > 63 {
			return 0, fmt.Errorf("%w: length prefix overflows varint", ErrFrameTooLarge)
		}
		result |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

// AppendRecord appends record, prefixed by its varint length, to dst.
func AppendRecord(dst, record []byte) []byte {
	return protowire.AppendBytes(dst, record)
}

// Encoder writes length-delimited records to w. Used by tests and tooling
// that produce protocol streams.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(record []byte) error {
	buf := AppendRecord(nil, record)
	if _, err := e.w.Write(buf); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}
