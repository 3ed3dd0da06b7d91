// Package backward walks the historical segment chain: locate the backward
// pointer on the entry stream, then follow next pointers link by link until
// the oldest available history is reached.
package backward

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/nicolive-tools/ndgr-downloader/internal/api"
	"github.com/nicolive-tools/ndgr-downloader/internal/protocol"
)

// maxEntryPolls bounds the entry re-queries performed while looking for a
// backward pointer, so a stream that never yields one cannot spin forever.
const maxEntryPolls = 16

// Collector exhausts a broadcast's backward chain, emitting every message as
// it streams in. Chain length is unbounded, so traversal is iterative with an
// explicit current pointer.
type Collector struct {
	client     api.Client
	logger     *zap.Logger
	checkpoint func(uri string)
	resumeURI  string
}

func NewCollector(client api.Client, logger *zap.Logger) *Collector {
	return &Collector{client: client, logger: logger}
}

// OnCheckpoint registers fn to be called with each fully consumed chain
// link's URI, so the owner can persist the resume point.
func (c *Collector) OnCheckpoint(fn func(uri string)) {
	c.checkpoint = fn
}

// ResumeFrom makes Collect skip the entry stream and start the chain walk at
// uri, the last link a previous session checkpointed. That link is fetched
// again (its messages were already consumed; id-level dedup absorbs the
// replay) and traversal continues from its next pointer.
func (c *Collector) ResumeFrom(uri string) {
	c.resumeURI = uri
}

// Collect walks the chain reachable from entryURI and hands every raw
// message to emit in traversal order. Final chronological ordering is the
// caller's concern (a batch assembler sorts by timestamp); fetch order
// carries no guarantee. An exhausted chain is a normal return, not an error.
func (c *Collector) Collect(ctx context.Context, entryURI string, emit func(protocol.ChunkedMessage) error) error {
	uri := c.resumeURI
	if uri == "" {
		backward, err := c.findBackwardPointer(ctx, entryURI)
		if err != nil {
			return err
		}
		if backward == nil || backward.SegmentURI == "" {
			c.logger.Info("no backward history published", zap.String("entry", entryURI))
			return nil
		}
		uri = backward.SegmentURI
	}

	visited := make(map[string]struct{})
	for uri != "" {
		if _, seen := visited[uri]; seen {
			c.logger.Warn("backward chain revisited a segment; stopping", zap.String("uri", uri))
			return nil
		}
		visited[uri] = struct{}{}

		c.logger.Debug("fetching backward segment", zap.String("uri", uri))
		tail, err := c.client.FetchSegment(ctx, uri, emit)
		if err != nil {
			return err
		}
		if c.checkpoint != nil {
			c.checkpoint(uri)
		}
		uri = tail.NextURI
	}
	return nil
}

// findBackwardPointer polls the entry stream, following ReadyForNext
// records, until a backward pointer appears.
func (c *Collector) findBackwardPointer(ctx context.Context, entryURI string) (*protocol.BackwardSegment, error) {
	at := "now"
	for i := 0; i < maxEntryPolls; i++ {
		var backward *protocol.BackwardSegment
		var next *protocol.ReadyForNext

		err := c.client.OpenEntries(ctx, api.WithAt(entryURI, at), func(e protocol.Entry) error {
			switch {
			case e.Backward != nil:
				backward = e.Backward
			case e.Next != nil:
				next = e.Next
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if backward != nil {
			return backward, nil
		}
		if next == nil {
			return nil, nil
		}
		at = strconv.FormatInt(next.At, 10)
	}
	return nil, fmt.Errorf("no backward pointer after %d entry polls of %s", maxEntryPolls, entryURI)
}
