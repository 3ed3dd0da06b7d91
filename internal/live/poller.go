// Package live drives the real-time polling loop: consume the current live
// segment, emit its comments, wait until the server-specified resume time,
// then re-query the entry point.
package live

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nicolive-tools/ndgr-downloader/internal/api"
	"github.com/nicolive-tools/ndgr-downloader/internal/assemble"
	"github.com/nicolive-tools/ndgr-downloader/internal/protocol"
)

// DefaultMinPollInterval is the lower clamp on the wait between entry polls.
// Servers occasionally return a past or near-immediate resume time.
const DefaultMinPollInterval = time.Second

// Poller walks the entry stream and drains live segments until cancelled or
// the stream becomes unavailable.
type Poller struct {
	client     api.Client
	minPoll    time.Duration
	logger     *zap.Logger
	startAt    string
	checkpoint func(at int64)
}

func NewPoller(client api.Client, minPoll time.Duration, logger *zap.Logger) *Poller {
	if minPoll <= 0 {
		minPoll = DefaultMinPollInterval
	}
	return &Poller{client: client, minPoll: minPoll, logger: logger, startAt: "now"}
}

// ResumeFrom makes the first entry query use at=<epoch seconds> instead of
// at=now, picking up where a previous session checkpointed.
func (p *Poller) ResumeFrom(at int64) {
	p.startAt = strconv.FormatInt(at, 10)
}

// OnCheckpoint registers fn to be called with each ReadyForNext time, so the
// owner can persist the resume point.
func (p *Poller) OnCheckpoint(fn func(at int64)) {
	p.checkpoint = fn
}

// Run loops indefinitely: open the entry stream, drain any announced
// segments through asm, then wait for the server's resume time. emit
// receives each freshly assembled comment. Run returns ctx.Err() on
// cancellation or a wrapped api.ErrStreamUnavailable when retries exhaust.
func (p *Poller) Run(ctx context.Context, entryURI string, asm *assemble.Assembler, emit func(assemble.Comment) error) error {
	at := p.startAt
	known := make(map[string]struct{})

	for {
		var next *protocol.ReadyForNext
		err := p.client.OpenEntries(ctx, api.WithAt(entryURI, at), func(e protocol.Entry) error {
			switch {
			case e.Next != nil:
				next = e.Next
			case e.Segment != nil:
				return p.drainSegment(ctx, e.Segment.URI, known, asm, emit)
			case e.Previous != nil:
				return p.drainSegment(ctx, e.Previous.URI, known, asm, emit)
			case e.Backward != nil:
				// Historical cross-reference, not relevant to the live tail.
			}
			return nil
		})
		if err != nil {
			return err
		}

		wait := p.minPoll
		if next != nil {
			at = strconv.FormatInt(next.At, 10)
			if p.checkpoint != nil {
				p.checkpoint(next.At)
			}
			if until := time.Until(time.Unix(next.At, 0)); until > wait {
				wait = until
			}
		}

		p.logger.Debug("waiting before next entry poll",
			zap.String("at", at),
			zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// drainSegment fetches a segment and every continuation it points at,
// feeding messages to the assembler as they arrive. Segments already seen in
// this session are skipped: the entry stream re-announces the current window
// on every poll.
func (p *Poller) drainSegment(ctx context.Context, uri string, known map[string]struct{}, asm *assemble.Assembler, emit func(assemble.Comment) error) error {
	if _, ok := known[uri]; ok {
		return nil
	}
	known[uri] = struct{}{}

	for uri != "" {
		tail, err := p.client.FetchSegment(ctx, uri, func(m protocol.ChunkedMessage) error {
			if c, ok := asm.Push(m); ok {
				return emit(c)
			}
			return nil
		})
		if err != nil {
			return err
		}
		uri = tail.NextURI
		if uri != "" {
			known[uri] = struct{}{}
		}
	}
	return nil
}
