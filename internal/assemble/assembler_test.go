package assemble

import (
	"testing"
	"time"

	"github.com/nicolive-tools/ndgr-downloader/internal/protocol"
)

func chatMessage(id string, at int64, content string) protocol.ChunkedMessage {
	return protocol.ChunkedMessage{
		Meta: &protocol.MessageMeta{ID: id, At: time.Unix(at, 0)},
		Chat: &protocol.Chat{Content: content},
	}
}

func TestDedupIdempotence(t *testing.T) {
	asm := New()

	first, ok := asm.Push(chatMessage("1", 10, "hello"))
	if !ok {
		t.Fatal("first delivery should emit")
	}
	if first.Content != "hello" {
		t.Errorf("unexpected content: %s", first.Content)
	}

	if _, ok := asm.Push(chatMessage("1", 10, "hello")); ok {
		t.Error("duplicate id must be discarded silently")
	}
	if asm.SeenCount() != 1 {
		t.Errorf("expected 1 seen id, got %d", asm.SeenCount())
	}
}

func TestLiveModePreservesArrivalOrder(t *testing.T) {
	asm := New()

	var order []int64
	for i, at := range []int64{5, 1, 3} {
		c, ok := asm.Push(chatMessage(string(rune('a'+i)), at, "x"))
		if !ok {
			t.Fatalf("message %d should emit", i)
		}
		order = append(order, c.At.Unix())
	}

	want := []int64{5, 1, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], order[i])
		}
	}
}

func TestBatchModeSortsByTimestamp(t *testing.T) {
	asm := NewBatch()

	for i, at := range []int64{5, 1, 3} {
		if _, ok := asm.Push(chatMessage(string(rune('a'+i)), at, "x")); ok {
			t.Error("batch mode must buffer, not emit")
		}
	}

	out := asm.Flush()
	if len(out) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(out))
	}
	want := []int64{1, 3, 5}
	for i := range want {
		if out[i].At.Unix() != want[i] {
			t.Errorf("position %d: expected t=%d, got t=%d", i, want[i], out[i].At.Unix())
		}
	}
}

func TestBatchModeTiesKeepArrivalOrder(t *testing.T) {
	asm := NewBatch()
	asm.Push(chatMessage("a", 7, "first"))
	asm.Push(chatMessage("b", 7, "second"))

	out := asm.Flush()
	if len(out) != 2 || out[0].Content != "first" || out[1].Content != "second" {
		t.Errorf("ties must keep arrival order, got %+v", out)
	}
}

func TestSeedMergesWithNewArrivals(t *testing.T) {
	asm := NewBatch()
	asm.Seed([]Comment{
		{ID: "b", At: time.Unix(20, 0), Content: "archived"},
		{ID: "b", At: time.Unix(20, 0), Content: "archived dup"},
	})

	// A replayed link re-delivers the seeded id alongside a new one.
	asm.Push(chatMessage("b", 20, "replayed"))
	asm.Push(chatMessage("a", 10, "new"))

	out := asm.Flush()
	if len(out) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(out))
	}
	if out[0].ID != "a" || out[1].ID != "b" {
		t.Errorf("expected chronological [a b], got %+v", out)
	}
	if out[1].Content != "archived" {
		t.Errorf("seeded comment must win over its replay, got %q", out[1].Content)
	}
}

func TestSeedLiveModeMarksSeenOnly(t *testing.T) {
	asm := New()
	asm.Seed([]Comment{{ID: "x", At: time.Unix(1, 0)}})

	if _, ok := asm.Push(chatMessage("x", 1, "replay")); ok {
		t.Error("seeded id must not re-emit")
	}
	if _, ok := asm.Push(chatMessage("y", 2, "fresh")); !ok {
		t.Error("fresh id must emit")
	}
}

func TestStateAndSignalRoutedToObserver(t *testing.T) {
	asm := New()

	var events []StateEvent
	asm.SetObserver(func(ev StateEvent) {
		events = append(events, ev)
	})

	sig := protocol.SignalFlushed
	asm.Push(protocol.ChunkedMessage{
		Meta:   &protocol.MessageMeta{ID: "s1", At: time.Unix(1, 0)},
		Signal: &sig,
	})
	asm.Push(protocol.ChunkedMessage{
		Meta:  &protocol.MessageMeta{ID: "s2", At: time.Unix(2, 0)},
		State: &protocol.State{Raw: []byte{1, 2, 3}},
	})

	if len(events) != 2 {
		t.Fatalf("expected 2 observer events, got %d", len(events))
	}
	if events[0].Signal == nil || *events[0].Signal != protocol.SignalFlushed {
		t.Errorf("expected flushed signal, got %+v", events[0])
	}
	if events[1].State == nil {
		t.Errorf("expected state event, got %+v", events[1])
	}

	// Control records must not consume comment dedup state.
	if _, ok := asm.Push(chatMessage("s1", 3, "reused id space")); !ok {
		t.Error("state routing must not affect comment dedup")
	}
}

func TestEmptyMetaDropped(t *testing.T) {
	asm := New()
	if _, ok := asm.Push(protocol.ChunkedMessage{Chat: &protocol.Chat{Content: "no meta"}}); ok {
		t.Error("message without meta must be dropped")
	}
}

func TestCommentConversion(t *testing.T) {
	asm := New()
	msg := protocol.ChunkedMessage{
		Meta: &protocol.MessageMeta{
			ID:     "c1",
			At:     time.Unix(100, 0),
			Origin: &protocol.Origin{LiveID: 345479473},
		},
		Chat: &protocol.Chat{
			Content:       "konnichiwa",
			HashedUserID:  "i:QKQvAEkmnovz",
			AccountStatus: protocol.AccountPremium,
			VPos:          1234,
			Modifier: &protocol.Modifier{
				Position:  protocol.PositionUe,
				Size:      protocol.SizeSmall,
				FullColor: &protocol.FullColor{R: 0xFF, G: 0x80, B: 0x00},
				Font:      protocol.FontGothic,
			},
		},
	}

	c, ok := asm.Push(msg)
	if !ok {
		t.Fatal("expected comment")
	}
	if c.LiveID != 345479473 || c.AccountStatus != "Premium" || c.VPos != 1234 {
		t.Errorf("conversion mismatch: %+v", c)
	}
	if c.Attributes.Position != "ue" || c.Attributes.Size != "small" || c.Attributes.Font != "gothic" {
		t.Errorf("attribute mismatch: %+v", c.Attributes)
	}
	if c.Attributes.Color != "#FF8000" {
		t.Errorf("full color must win: %s", c.Attributes.Color)
	}
}

func TestNamedColorFallback(t *testing.T) {
	asm := New()
	msg := chatMessage("n1", 1, "x")
	msg.Chat.Modifier = &protocol.Modifier{NamedColor: 0}

	c, _ := asm.Push(msg)
	if c.Attributes.Color != "white" {
		t.Errorf("expected white, got %s", c.Attributes.Color)
	}
}
