package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// PackedSegment is one decoded record of a segment body: an ordered batch of
// messages plus optional continuation and snapshot pointers. A logical
// segment may be split across several PackedSegment records with the
// pointers repeated or only present on the last one; the last non-absent
// values are authoritative.
type PackedSegment struct {
	Messages []ChunkedMessage // field 1, repeated
	Next     *Pointer         // field 2
	Snapshot *Pointer         // field 3
}

// Pointer references another fetchable resource by URI.
type Pointer struct {
	URI string // field 1
}

func MarshalPackedSegment(s *PackedSegment) []byte {
	var b []byte
	for i := range s.Messages {
		b = appendMessage(b, 1, MarshalMessage(&s.Messages[i]))
	}
	if s.Next != nil {
		b = appendMessage(b, 2, appendString(nil, 1, s.Next.URI))
	}
	if s.Snapshot != nil {
		b = appendMessage(b, 3, appendString(nil, 1, s.Snapshot.URI))
	}
	return b
}

func UnmarshalPackedSegment(b []byte) (*PackedSegment, error) {
	s := &PackedSegment{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			m, err := UnmarshalMessage(v)
			if err != nil {
				return err
			}
			s.Messages = append(s.Messages, *m)
		case 2:
			uri, err := unmarshalPointerURI(v)
			if err != nil {
				return err
			}
			s.Next = &Pointer{URI: uri}
		case 3:
			uri, err := unmarshalPointerURI(v)
			if err != nil {
				return err
			}
			s.Snapshot = &Pointer{URI: uri}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding packed segment: %w", err)
	}
	return s, nil
}
