// Package protocol defines the protobuf-encoded record bodies carried by the
// NDGR comment server's streaming APIs and hand-rolled codecs for them built
// on protowire. The schema is small and closed, so the records are decoded
// into plain structs with one pointer field per oneof variant.
package protocol

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

// appendTimestamp encodes t as a google.protobuf.Timestamp-shaped submessage
// (seconds=1, nanos=2). Zero times are omitted entirely.
func appendTimestamp(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	var body []byte
	body = appendInt64(body, 1, t.Unix())
	if ns := t.Nanosecond(); ns != 0 {
		body = appendInt64(body, 2, int64(ns))
	}
	return appendMessage(b, num, body)
}

func unmarshalTimestamp(b []byte) (time.Time, error) {
	var sec, nanos int64
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			sec = asInt64(v)
		case num == 2 && typ == protowire.VarintType:
			nanos = asInt64(v)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, nanos), nil
}

// eachField walks every field of a protobuf message body, handing the raw
// value bytes to fn. Varint values are passed as their original wire bytes;
// use asInt64/asUint64 to interpret them.
func eachField(b []byte, fn func(num protowire.Number, typ protowire.Type, val []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("malformed field tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		var val []byte
		switch typ {
		case protowire.VarintType:
			_, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("malformed varint for field %d: %w", num, protowire.ParseError(m))
			}
			val, b = b[:m], b[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("malformed bytes for field %d: %w", num, protowire.ParseError(m))
			}
			val, b = v, b[m:]
		case protowire.Fixed32Type:
			_, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return fmt.Errorf("malformed fixed32 for field %d: %w", num, protowire.ParseError(m))
			}
			val, b = b[:m], b[m:]
		case protowire.Fixed64Type:
			_, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return fmt.Errorf("malformed fixed64 for field %d: %w", num, protowire.ParseError(m))
			}
			val, b = b[:m], b[m:]
		default:
			return fmt.Errorf("unsupported wire type %d for field %d", typ, num)
		}
		if err := fn(num, typ, val); err != nil {
			return err
		}
	}
	return nil
}

func asUint64(v []byte) uint64 {
	u, n := protowire.ConsumeVarint(v)
	if n < 0 {
		return 0
	}
	return u
}

func asInt64(v []byte) int64 {
	return int64(asUint64(v))
}
