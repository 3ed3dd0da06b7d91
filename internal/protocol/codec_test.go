package protocol

import (
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestEntryRoundTrip_Segment(t *testing.T) {
	from := time.Unix(1720000000, 0)
	until := time.Unix(1720000016, 500000000)
	entry := &Entry{Segment: &MessageSegment{From: from, Until: until, URI: "https://example.com/segment/1"}}

	got, err := UnmarshalEntry(MarshalEntry(entry))
	if err != nil {
		t.Fatal(err)
	}
	if got.Segment == nil {
		t.Fatal("expected segment variant")
	}
	if got.Previous != nil || got.Backward != nil || got.Next != nil {
		t.Error("expected exactly one variant set")
	}
	if !got.Segment.From.Equal(from) || !got.Segment.Until.Equal(until) {
		t.Errorf("window mismatch: %v..%v", got.Segment.From, got.Segment.Until)
	}
	if got.Segment.URI != entry.Segment.URI {
		t.Errorf("uri mismatch: %s", got.Segment.URI)
	}
}

func TestEntryRoundTrip_Previous(t *testing.T) {
	entry := &Entry{Previous: &MessageSegment{URI: "https://example.com/segment/0"}}
	got, err := UnmarshalEntry(MarshalEntry(entry))
	if err != nil {
		t.Fatal(err)
	}
	if got.Previous == nil || got.Previous.URI != entry.Previous.URI {
		t.Errorf("expected previous variant, got %+v", got)
	}
}

func TestEntryRoundTrip_Backward(t *testing.T) {
	entry := &Entry{Backward: &BackwardSegment{
		Until:       time.Unix(1720000000, 0),
		SegmentURI:  "https://example.com/backward/5",
		SnapshotURI: "https://example.com/snapshot/5",
	}}
	got, err := UnmarshalEntry(MarshalEntry(entry))
	if err != nil {
		t.Fatal(err)
	}
	if got.Backward == nil {
		t.Fatal("expected backward variant")
	}
	if got.Backward.SegmentURI != entry.Backward.SegmentURI {
		t.Errorf("segment uri mismatch: %s", got.Backward.SegmentURI)
	}
	if got.Backward.SnapshotURI != entry.Backward.SnapshotURI {
		t.Errorf("snapshot uri mismatch: %s", got.Backward.SnapshotURI)
	}
}

func TestEntryRoundTrip_Next(t *testing.T) {
	entry := &Entry{Next: &ReadyForNext{At: 1720000123}}
	got, err := UnmarshalEntry(MarshalEntry(entry))
	if err != nil {
		t.Fatal(err)
	}
	if got.Next == nil || got.Next.At != 1720000123 {
		t.Errorf("expected ReadyForNext at 1720000123, got %+v", got.Next)
	}
}

func TestEntryUnknownVariant(t *testing.T) {
	// A future variant on field 9: decodes without error, Known() is false.
	var b []byte
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{0x08, 0x01})

	got, err := UnmarshalEntry(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Known() {
		t.Error("expected unknown variant")
	}
}

func TestMessageRoundTrip_Chat(t *testing.T) {
	at := time.Unix(1720000500, 250000000)
	msg := &ChunkedMessage{
		Meta: &MessageMeta{ID: "EhgKEgmBfWBX", At: at, Origin: &Origin{LiveID: 345479473}},
		Chat: &Chat{
			Content:       "hello world",
			HashedUserID:  "i:QKQvAEkmnovz",
			AccountStatus: AccountPremium,
			VPos:          18336492,
			Modifier: &Modifier{
				Position:   PositionShita,
				Size:       SizeBig,
				NamedColor: 3, // orange
				Font:       FontMincho,
				Opacity:    OpacityTranslucent,
			},
		},
	}

	got, err := UnmarshalMessage(MarshalMessage(msg))
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta.ID != msg.Meta.ID || !got.Meta.At.Equal(at) {
		t.Errorf("meta mismatch: %+v", got.Meta)
	}
	if got.Meta.Origin == nil || got.Meta.Origin.LiveID != 345479473 {
		t.Errorf("origin mismatch: %+v", got.Meta.Origin)
	}
	if got.Chat == nil {
		t.Fatal("expected chat payload")
	}
	if got.Chat.Content != "hello world" || got.Chat.VPos != 18336492 {
		t.Errorf("chat mismatch: %+v", got.Chat)
	}
	mod := got.Chat.Modifier
	if mod == nil || mod.Position != PositionShita || mod.Size != SizeBig || mod.Font != FontMincho {
		t.Errorf("modifier mismatch: %+v", mod)
	}
	if mod.NamedColor.String() != "orange" {
		t.Errorf("expected orange, got %s", mod.NamedColor)
	}
}

func TestMessageRoundTrip_FullColor(t *testing.T) {
	msg := &ChunkedMessage{
		Meta: &MessageMeta{ID: "m1", At: time.Unix(1, 0)},
		Chat: &Chat{Content: "c", Modifier: &Modifier{FullColor: &FullColor{R: 0x12, G: 0xAB, B: 0xFF}}},
	}
	got, err := UnmarshalMessage(MarshalMessage(msg))
	if err != nil {
		t.Fatal(err)
	}
	fc := got.Chat.Modifier.FullColor
	if fc == nil || fc.R != 0x12 || fc.G != 0xAB || fc.B != 0xFF {
		t.Errorf("full color mismatch: %+v", fc)
	}
}

func TestMessageRoundTrip_Signal(t *testing.T) {
	sig := SignalFlushed
	msg := &ChunkedMessage{Meta: &MessageMeta{ID: "s1", At: time.Unix(2, 0)}, Signal: &sig}

	got, err := UnmarshalMessage(MarshalMessage(msg))
	if err != nil {
		t.Fatal(err)
	}
	if got.Signal == nil || *got.Signal != SignalFlushed {
		t.Errorf("expected flushed signal, got %+v", got.Signal)
	}
	if got.Chat != nil || got.State != nil {
		t.Error("expected signal to be the only payload")
	}
}

func TestPackedSegmentRoundTrip(t *testing.T) {
	seg := &PackedSegment{
		Messages: []ChunkedMessage{
			{Meta: &MessageMeta{ID: "a", At: time.Unix(10, 0)}, Chat: &Chat{Content: "one"}},
			{Meta: &MessageMeta{ID: "b", At: time.Unix(11, 0)}, Chat: &Chat{Content: "two"}},
		},
		Next:     &Pointer{URI: "https://example.com/backward/4"},
		Snapshot: &Pointer{URI: "https://example.com/snapshot/4"},
	}

	got, err := UnmarshalPackedSegment(MarshalPackedSegment(seg))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Chat.Content != "one" || got.Messages[1].Chat.Content != "two" {
		t.Errorf("message order lost: %+v", got.Messages)
	}
	if got.Next == nil || got.Next.URI != seg.Next.URI {
		t.Errorf("next pointer mismatch: %+v", got.Next)
	}
	if got.Snapshot == nil || got.Snapshot.URI != seg.Snapshot.URI {
		t.Errorf("snapshot pointer mismatch: %+v", got.Snapshot)
	}
}

func TestPackedSegmentNoPointers(t *testing.T) {
	seg := &PackedSegment{Messages: []ChunkedMessage{{Meta: &MessageMeta{ID: "z", At: time.Unix(1, 0)}}}}
	got, err := UnmarshalPackedSegment(MarshalPackedSegment(seg))
	if err != nil {
		t.Fatal(err)
	}
	if got.Next != nil || got.Snapshot != nil {
		t.Error("expected absent pointers to stay absent")
	}
}
