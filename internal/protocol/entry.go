package protocol

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Entry is one record from the entry-point ("view") stream. It is a tagged
// union: exactly one variant field is non-nil on a well-formed record. A
// record whose variant the client does not know decodes with all fields nil;
// callers check Known and decide whether to skip.
type Entry struct {
	Backward *BackwardSegment // field 1: entry into the historical chain
	Previous *MessageSegment  // field 2: window preceding the current one
	Segment  *MessageSegment  // field 3: current live segment window
	Next     *ReadyForNext    // field 4: re-query the entry point at this time
}

// Known reports whether the record carried a variant this client understands.
func (e *Entry) Known() bool {
	return e.Backward != nil || e.Previous != nil || e.Segment != nil || e.Next != nil
}

// MessageSegment is a bounded-time window of messages fetched from its own URI.
type MessageSegment struct {
	From  time.Time // field 1
	Until time.Time // field 2
	URI   string    // field 3
}

// BackwardSegment points into the historical chain. SnapshotURI optionally
// refers to a broadcast-state snapshot at that point.
type BackwardSegment struct {
	Until       time.Time // field 1
	SegmentURI  string    // field 2: Pointer{uri}
	SnapshotURI string    // field 3: Pointer{uri}
}

// ReadyForNext instructs the poller to wait until At (epoch seconds), then
// re-request the entry point with ?at=<At>.
type ReadyForNext struct {
	At int64 // field 1
}

func MarshalEntry(e *Entry) []byte {
	var b []byte
	switch {
	case e.Backward != nil:
		b = appendMessage(b, 1, marshalBackwardSegment(e.Backward))
	case e.Previous != nil:
		b = appendMessage(b, 2, marshalMessageSegment(e.Previous))
	case e.Segment != nil:
		b = appendMessage(b, 3, marshalMessageSegment(e.Segment))
	case e.Next != nil:
		b = appendMessage(b, 4, appendInt64(nil, 1, e.Next.At))
	}
	return b
}

func UnmarshalEntry(b []byte) (*Entry, error) {
	e := &Entry{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			bs, err := unmarshalBackwardSegment(v)
			if err != nil {
				return err
			}
			e.Backward = bs
		case 2:
			ms, err := unmarshalMessageSegment(v)
			if err != nil {
				return err
			}
			e.Previous = ms
		case 3:
			ms, err := unmarshalMessageSegment(v)
			if err != nil {
				return err
			}
			e.Segment = ms
		case 4:
			rn := &ReadyForNext{}
			if err := eachField(v, func(n protowire.Number, t protowire.Type, fv []byte) error {
				if n == 1 && t == protowire.VarintType {
					rn.At = asInt64(fv)
				}
				return nil
			}); err != nil {
				return err
			}
			e.Next = rn
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding entry record: %w", err)
	}
	return e, nil
}

func marshalMessageSegment(ms *MessageSegment) []byte {
	var b []byte
	b = appendTimestamp(b, 1, ms.From)
	b = appendTimestamp(b, 2, ms.Until)
	b = appendString(b, 3, ms.URI)
	return b
}

func unmarshalMessageSegment(b []byte) (*MessageSegment, error) {
	ms := &MessageSegment{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			t, err := unmarshalTimestamp(v)
			if err != nil {
				return err
			}
			ms.From = t
		case num == 2 && typ == protowire.BytesType:
			t, err := unmarshalTimestamp(v)
			if err != nil {
				return err
			}
			ms.Until = t
		case num == 3 && typ == protowire.BytesType:
			ms.URI = string(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ms, nil
}

func marshalBackwardSegment(bs *BackwardSegment) []byte {
	var b []byte
	b = appendTimestamp(b, 1, bs.Until)
	if bs.SegmentURI != "" {
		b = appendMessage(b, 2, appendString(nil, 1, bs.SegmentURI))
	}
	if bs.SnapshotURI != "" {
		b = appendMessage(b, 3, appendString(nil, 1, bs.SnapshotURI))
	}
	return b
}

func unmarshalBackwardSegment(b []byte) (*BackwardSegment, error) {
	bs := &BackwardSegment{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			t, err := unmarshalTimestamp(v)
			if err != nil {
				return err
			}
			bs.Until = t
		case num == 2 && typ == protowire.BytesType:
			uri, err := unmarshalPointerURI(v)
			if err != nil {
				return err
			}
			bs.SegmentURI = uri
		case num == 3 && typ == protowire.BytesType:
			uri, err := unmarshalPointerURI(v)
			if err != nil {
				return err
			}
			bs.SnapshotURI = uri
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bs, nil
}

func unmarshalPointerURI(b []byte) (string, error) {
	var uri string
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num == 1 && typ == protowire.BytesType {
			uri = string(v)
		}
		return nil
	})
	return uri, err
}
