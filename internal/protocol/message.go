package protocol

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// ChunkedMessage is one raw message record. Meta identifies the message; the
// payload is a oneof of chat, state and signal. State payloads are routed but
// not interpreted, so they are carried as raw bytes.
type ChunkedMessage struct {
	Meta   *MessageMeta // field 1
	Chat   *Chat        // field 2 (oneof payload)
	State  *State       // field 3 (oneof payload)
	Signal *Signal      // field 4 (oneof payload, enum)
}

// MessageMeta carries the message identity. ID is the deduplication key:
// unique within a broadcast's full message space, but the same ID can appear
// again across overlapping live and backward fetches.
type MessageMeta struct {
	ID     string    // field 1
	At     time.Time // field 2
	Origin *Origin   // field 3
}

type Origin struct {
	LiveID int64 // field 1
}

// Chat is a comment payload.
type Chat struct {
	Content       string        // field 1
	RawUserID     int64         // field 2
	HashedUserID  string        // field 3
	AccountStatus AccountStatus // field 4
	No            int64         // field 5
	VPos          int64         // field 6: 1/100s offset from the program's vpos base time
	Modifier      *Modifier     // field 7
}

// Modifier carries comment rendering attributes.
type Modifier struct {
	Position   Position   // field 1
	Size       Size       // field 2
	NamedColor ColorName  // field 3
	FullColor  *FullColor // field 4, preferred over NamedColor when present
	Font       Font       // field 5
	Opacity    Opacity    // field 6
}

type FullColor struct {
	R uint32 // field 1
	G uint32 // field 2
	B uint32 // field 3
}

// State is an uninterpreted broadcast-state payload.
type State struct {
	Raw []byte
}

// Signal is a control enumeration. Flushed is its only defined case.
type Signal int32

const SignalFlushed Signal = 0

func (s Signal) String() string {
	if s == SignalFlushed {
		return "Flushed"
	}
	return fmt.Sprintf("Signal(%d)", int32(s))
}

type AccountStatus int32

const (
	AccountStandard AccountStatus = 0
	AccountPremium  AccountStatus = 1
)

func (a AccountStatus) String() string {
	switch a {
	case AccountStandard:
		return "Standard"
	case AccountPremium:
		return "Premium"
	default:
		return fmt.Sprintf("AccountStatus(%d)", int32(a))
	}
}

type Position int32

const (
	PositionNaka  Position = 0
	PositionShita Position = 1
	PositionUe    Position = 2
)

func (p Position) String() string {
	switch p {
	case PositionNaka:
		return "naka"
	case PositionShita:
		return "shita"
	case PositionUe:
		return "ue"
	default:
		return fmt.Sprintf("position(%d)", int32(p))
	}
}

type Size int32

const (
	SizeMedium Size = 0
	SizeSmall  Size = 1
	SizeBig    Size = 2
)

func (s Size) String() string {
	switch s {
	case SizeMedium:
		return "medium"
	case SizeSmall:
		return "small"
	case SizeBig:
		return "big"
	default:
		return fmt.Sprintf("size(%d)", int32(s))
	}
}

type Font int32

const (
	FontDefont Font = 0
	FontMincho Font = 1
	FontGothic Font = 2
)

func (f Font) String() string {
	switch f {
	case FontDefont:
		return "defont"
	case FontMincho:
		return "mincho"
	case FontGothic:
		return "gothic"
	default:
		return fmt.Sprintf("font(%d)", int32(f))
	}
}

type Opacity int32

const (
	OpacityNormal      Opacity = 0
	OpacityTranslucent Opacity = 1
)

func (o Opacity) String() string {
	switch o {
	case OpacityNormal:
		return "Normal"
	case OpacityTranslucent:
		return "Translucent"
	default:
		return fmt.Sprintf("Opacity(%d)", int32(o))
	}
}

type ColorName int32

var colorNames = []string{
	"white", "red", "pink", "orange", "yellow", "green", "cyan", "blue", "purple", "black",
	"white2", "red2", "pink2", "orange2", "yellow2", "green2", "cyan2", "blue2", "purple2", "black2",
}

func (c ColorName) String() string {
	if int(c) >= 0 && int(c) < len(colorNames) {
		return colorNames[c]
	}
	return fmt.Sprintf("color(%d)", int32(c))
}

func MarshalMessage(m *ChunkedMessage) []byte {
	var b []byte
	if m.Meta != nil {
		b = appendMessage(b, 1, marshalMeta(m.Meta))
	}
	switch {
	case m.Chat != nil:
		b = appendMessage(b, 2, marshalChat(m.Chat))
	case m.State != nil:
		b = appendMessage(b, 3, m.State.Raw)
	case m.Signal != nil:
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*m.Signal))
	}
	return b
}

func UnmarshalMessage(b []byte) (*ChunkedMessage, error) {
	m := &ChunkedMessage{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			meta, err := unmarshalMeta(v)
			if err != nil {
				return err
			}
			m.Meta = meta
		case num == 2 && typ == protowire.BytesType:
			chat, err := unmarshalChat(v)
			if err != nil {
				return err
			}
			m.Chat = chat
		case num == 3 && typ == protowire.BytesType:
			raw := make([]byte, len(v))
			copy(raw, v)
			m.State = &State{Raw: raw}
		case num == 4 && typ == protowire.VarintType:
			sig := Signal(asInt64(v))
			m.Signal = &sig
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding message record: %w", err)
	}
	return m, nil
}

func marshalMeta(meta *MessageMeta) []byte {
	var b []byte
	b = appendString(b, 1, meta.ID)
	b = appendTimestamp(b, 2, meta.At)
	if meta.Origin != nil {
		b = appendMessage(b, 3, appendInt64(nil, 1, meta.Origin.LiveID))
	}
	return b
}

func unmarshalMeta(b []byte) (*MessageMeta, error) {
	meta := &MessageMeta{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			meta.ID = string(v)
		case num == 2 && typ == protowire.BytesType:
			t, err := unmarshalTimestamp(v)
			if err != nil {
				return err
			}
			meta.At = t
		case num == 3 && typ == protowire.BytesType:
			origin := &Origin{}
			if err := eachField(v, func(n protowire.Number, t protowire.Type, fv []byte) error {
				if n == 1 && t == protowire.VarintType {
					origin.LiveID = asInt64(fv)
				}
				return nil
			}); err != nil {
				return err
			}
			meta.Origin = origin
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func marshalChat(c *Chat) []byte {
	var b []byte
	b = appendString(b, 1, c.Content)
	b = appendInt64(b, 2, c.RawUserID)
	b = appendString(b, 3, c.HashedUserID)
	b = appendInt64(b, 4, int64(c.AccountStatus))
	b = appendInt64(b, 5, c.No)
	b = appendInt64(b, 6, c.VPos)
	if c.Modifier != nil {
		b = appendMessage(b, 7, marshalModifier(c.Modifier))
	}
	return b
}

func unmarshalChat(b []byte) (*Chat, error) {
	c := &Chat{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			c.Content = string(v)
		case num == 2 && typ == protowire.VarintType:
			c.RawUserID = asInt64(v)
		case num == 3 && typ == protowire.BytesType:
			c.HashedUserID = string(v)
		case num == 4 && typ == protowire.VarintType:
			c.AccountStatus = AccountStatus(asInt64(v))
		case num == 5 && typ == protowire.VarintType:
			c.No = asInt64(v)
		case num == 6 && typ == protowire.VarintType:
			c.VPos = asInt64(v)
		case num == 7 && typ == protowire.BytesType:
			mod, err := unmarshalModifier(v)
			if err != nil {
				return err
			}
			c.Modifier = mod
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func marshalModifier(m *Modifier) []byte {
	var b []byte
	b = appendInt64(b, 1, int64(m.Position))
	b = appendInt64(b, 2, int64(m.Size))
	b = appendInt64(b, 3, int64(m.NamedColor))
	if m.FullColor != nil {
		var fc []byte
		fc = appendInt64(fc, 1, int64(m.FullColor.R))
		fc = appendInt64(fc, 2, int64(m.FullColor.G))
		fc = appendInt64(fc, 3, int64(m.FullColor.B))
		b = appendMessage(b, 4, fc)
	}
	b = appendInt64(b, 5, int64(m.Font))
	b = appendInt64(b, 6, int64(m.Opacity))
	return b
}

func unmarshalModifier(b []byte) (*Modifier, error) {
	m := &Modifier{}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			m.Position = Position(asInt64(v))
		case num == 2 && typ == protowire.VarintType:
			m.Size = Size(asInt64(v))
		case num == 3 && typ == protowire.VarintType:
			m.NamedColor = ColorName(asInt64(v))
		case num == 4 && typ == protowire.BytesType:
			fc := &FullColor{}
			if err := eachField(v, func(n protowire.Number, t protowire.Type, fv []byte) error {
				switch {
				case n == 1 && t == protowire.VarintType:
					fc.R = uint32(asUint64(fv))
				case n == 2 && t == protowire.VarintType:
					fc.G = uint32(asUint64(fv))
				case n == 3 && t == protowire.VarintType:
					fc.B = uint32(asUint64(fv))
				}
				return nil
			}); err != nil {
				return err
			}
			m.FullColor = fc
		case num == 5 && typ == protowire.VarintType:
			m.Font = Font(asInt64(v))
		case num == 6 && typ == protowire.VarintType:
			m.Opacity = Opacity(asInt64(v))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
