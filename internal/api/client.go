// Package api implements the streaming HTTP primitives of the NDGR comment
// protocol: the entry walker over the view API and the segment fetcher over
// the segment/backward APIs. Both pipe chunked bodies through the frame
// decoder and retry transient failures with exponential backoff.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nicolive-tools/ndgr-downloader/internal/frame"
	"github.com/nicolive-tools/ndgr-downloader/internal/protocol"
)

// The server sits behind a browser-facing CDN, so requests carry Chrome-like
// identification headers the way the watch page's own client does.
const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	secChUA   = `"Chromium";v="126", "Google Chrome";v="126", "Not-A.Brand";v="99"`
)

// Client interface for testability
type Client interface {
	// OpenEntries streams entry records from uri, handing each known variant
	// to fn in arrival order. It returns when the stream ends.
	OpenEntries(ctx context.Context, uri string, fn func(protocol.Entry) error) error
	// FetchSegment streams a segment body from uri, handing every message to
	// fn in arrival order, and reports the trailing continuation pointers.
	FetchSegment(ctx context.Context, uri string, fn func(protocol.ChunkedMessage) error) (Tail, error)
}

// Tail carries the last-seen pointers of a fetched segment. An empty NextURI
// is the only reliable end-of-segment signal.
type Tail struct {
	NextURI     string
	SnapshotURI string
}

type HTTPClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	maxRecord  int
	logger     *zap.Logger
}

// NewClient builds an HTTPClient. connectTimeout bounds dialing and response
// headers only; entry streams stay open long past any overall deadline, so
// no whole-request timeout is set.
func NewClient(ratePerSec int, connectTimeout, retryDelay time.Duration, retryCount, maxRecordBytes int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: connectTimeout,
		MaxIdleConns:          100,
		MaxConnsPerHost:       10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &HTTPClient{
		httpClient: &http.Client{Transport: transport},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		maxRecord:  maxRecordBytes,
		logger:     logger,
	}
}

// WithAt returns uri with its at query parameter set. The entry point takes
// at=now on first contact and at=<epoch seconds> on resumption.
func WithAt(uri, at string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	q.Set("at", at)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *HTTPClient) OpenEntries(ctx context.Context, uri string, fn func(protocol.Entry) error) error {
	return c.withRetry(ctx, uri, func() error {
		return c.streamRecords(ctx, uri, func(rec []byte) error {
			entry, err := protocol.UnmarshalEntry(rec)
			if err != nil {
				// Corrupt record: fatal for this fetch, retried like a
				// transport fault.
				return &FetchError{URI: uri, Err: err}
			}
			if !entry.Known() {
				c.logger.Warn("skipping entry record", zap.String("uri", uri), zap.Error(ErrUnknownEntry))
				return nil
			}
			return fn(*entry)
		})
	})
}

func (c *HTTPClient) FetchSegment(ctx context.Context, uri string, fn func(protocol.ChunkedMessage) error) (Tail, error) {
	var tail Tail
	err := c.withRetry(ctx, uri, func() error {
		tail = Tail{}
		return c.streamRecords(ctx, uri, func(rec []byte) error {
			seg, err := protocol.UnmarshalPackedSegment(rec)
			if err != nil {
				return &FetchError{URI: uri, Err: err}
			}
			for i := range seg.Messages {
				if err := fn(seg.Messages[i]); err != nil {
					return err
				}
			}
			if seg.Next != nil {
				tail.NextURI = seg.Next.URI
			}
			if seg.Snapshot != nil {
				tail.SnapshotURI = seg.Snapshot.URI
			}
			return nil
		})
	})
	if err != nil {
		return Tail{}, err
	}
	return tail, nil
}

// sinkError wraps an error returned by a caller's record callback so the
// retry loop can tell it apart from fetch faults and surface it unchanged.
type sinkError struct {
	err error
}

func (e *sinkError) Error() string { return e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

func (c *HTTPClient) streamRecords(ctx context.Context, uri string, fn func([]byte) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Sec-CH-UA", secChUA)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{URI: uri, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &FetchError{URI: uri, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	dec := frame.NewDecoder(resp.Body, c.maxRecord)
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &FetchError{URI: uri, Err: err}
		}
		if err := fn(rec); err != nil {
			var fe *FetchError
			if errors.As(err, &fe) {
				return err
			}
			return &sinkError{err: err}
		}
	}
}

func (c *HTTPClient) withRetry(ctx context.Context, uri string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying fetch",
				zap.String("uri", uri),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := op()
		if err == nil {
			return nil
		}

		var se *sinkError
		if errors.As(err, &se) {
			return se.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %s: %v", ErrStreamUnavailable, uri, lastErr)
}
