package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nicolive-tools/ndgr-downloader/internal/frame"
	"github.com/nicolive-tools/ndgr-downloader/internal/protocol"
)

func newTestClient(t *testing.T) *HTTPClient {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewClient(100, 5*time.Second, 5*time.Millisecond, 2, 0, logger)
}

func entryStream(entries ...*protocol.Entry) []byte {
	var buf []byte
	for _, e := range entries {
		buf = frame.AppendRecord(buf, protocol.MarshalEntry(e))
	}
	return buf
}

func segmentStream(segments ...*protocol.PackedSegment) []byte {
	var buf []byte
	for _, s := range segments {
		buf = frame.AppendRecord(buf, protocol.MarshalPackedSegment(s))
	}
	return buf
}

func chatMessage(id string, at int64, content string) protocol.ChunkedMessage {
	return protocol.ChunkedMessage{
		Meta: &protocol.MessageMeta{ID: id, At: time.Unix(at, 0)},
		Chat: &protocol.Chat{Content: content},
	}
}

func TestOpenEntries(t *testing.T) {
	body := entryStream(
		&protocol.Entry{Segment: &protocol.MessageSegment{URI: "https://example.com/seg/1"}},
		&protocol.Entry{Previous: &protocol.MessageSegment{URI: "https://example.com/seg/0"}},
		&protocol.Entry{Next: &protocol.ReadyForNext{At: 42}},
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("at") != "now" {
			t.Errorf("expected at=now, got %s", r.URL.RawQuery)
		}
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client := newTestClient(t)

	var got []protocol.Entry
	err := client.OpenEntries(context.Background(), WithAt(server.URL, "now"), func(e protocol.Entry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Segment == nil || got[1].Previous == nil || got[2].Next == nil {
		t.Errorf("entries out of order or misclassified: %+v", got)
	}
	if got[2].Next.At != 42 {
		t.Errorf("expected ReadyForNext at 42, got %d", got[2].Next.At)
	}
}

func TestOpenEntries_SkipsUnknownVariant(t *testing.T) {
	var unknown []byte
	unknown = protowire.AppendTag(unknown, 9, protowire.BytesType)
	unknown = protowire.AppendBytes(unknown, []byte{0x08, 0x01})

	var body []byte
	body = frame.AppendRecord(body, protocol.MarshalEntry(&protocol.Entry{Next: &protocol.ReadyForNext{At: 1}}))
	body = frame.AppendRecord(body, unknown)
	body = frame.AppendRecord(body, protocol.MarshalEntry(&protocol.Entry{Next: &protocol.ReadyForNext{At: 2}}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client := newTestClient(t)

	var seen int
	err := client.OpenEntries(context.Background(), server.URL, func(e protocol.Entry) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != 2 {
		t.Errorf("expected unknown record skipped, got %d callbacks", seen)
	}
}

func TestFetchSegment_LastPointerWins(t *testing.T) {
	body := segmentStream(
		&protocol.PackedSegment{
			Messages: []protocol.ChunkedMessage{chatMessage("1", 10, "a")},
			Next:     &protocol.Pointer{URI: "https://example.com/chunk/old"},
		},
		&protocol.PackedSegment{
			Messages: []protocol.ChunkedMessage{chatMessage("2", 11, "b")},
			Next:     &protocol.Pointer{URI: "https://example.com/chunk/new"},
			Snapshot: &protocol.Pointer{URI: "https://example.com/snapshot"},
		},
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client := newTestClient(t)

	var ids []string
	tail, err := client.FetchSegment(context.Background(), server.URL, func(m protocol.ChunkedMessage) error {
		ids = append(ids, m.Meta.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
		t.Errorf("expected messages [1 2] in arrival order, got %v", ids)
	}
	if tail.NextURI != "https://example.com/chunk/new" {
		t.Errorf("expected last next pointer to win, got %s", tail.NextURI)
	}
	if tail.SnapshotURI != "https://example.com/snapshot" {
		t.Errorf("expected snapshot pointer, got %s", tail.SnapshotURI)
	}
}

func TestFetchSegment_RetryThenSuccess(t *testing.T) {
	attempts := 0
	body := segmentStream(&protocol.PackedSegment{
		Messages: []protocol.ChunkedMessage{chatMessage("1", 10, "a")},
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client := newTestClient(t)

	var count int
	tail, err := client.FetchSegment(context.Background(), server.URL, func(m protocol.ChunkedMessage) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if count != 1 || tail.NextURI != "" {
		t.Errorf("expected 1 message and no next, got %d / %q", count, tail.NextURI)
	}
}

func TestFetchSegment_RetriesExhausted(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t)

	_, err := client.FetchSegment(context.Background(), server.URL, func(m protocol.ChunkedMessage) error {
		return nil
	})
	if !errors.Is(err, ErrStreamUnavailable) {
		t.Errorf("expected ErrStreamUnavailable, got %v", err)
	}
	// Initial attempt + 2 retries.
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestOpenEntries_CallbackErrorNotRetried(t *testing.T) {
	attempts := 0
	body := entryStream(&protocol.Entry{Next: &protocol.ReadyForNext{At: 1}})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client := newTestClient(t)

	sinkErr := errors.New("sink failed")
	err := client.OpenEntries(context.Background(), server.URL, func(e protocol.Entry) error {
		return sinkErr
	})
	if !errors.Is(err, sinkErr) {
		t.Errorf("expected sink error surfaced unchanged, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("callback errors must not be retried; got %d attempts", attempts)
	}
}

func TestWithAt(t *testing.T) {
	got := WithAt("https://example.com/view?foo=bar", "1720000123")
	want := "https://example.com/view?at=1720000123&foo=bar"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
