// Package discovery resolves a channel to its entry-point stream URI: fetch
// the broadcast watch page, read the embedded program data, then exchange the
// program's comment view URI for the streaming entry point.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	secChUA   = `"Chromium";v="126", "Google Chrome";v="126", "Not-A.Brand";v="99"`
)

// ProgramInfo is the embedded watch-page data the client cares about.
type ProgramInfo struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	ReleaseTime      int64  `json:"releaseTime"`
	OpenTime         int64  `json:"openTime"`
	BeginTime        int64  `json:"beginTime"`
	VposBaseTime     int64  `json:"vposBaseTime"`
	EndTime          int64  `json:"endTime"`
	ScheduledEndTime int64  `json:"scheduledEndTime"`
	StreamContentURI string `json:"streamContentUri"`
	CommentViewURI   string `json:"ndgrProgramCommentViewUri"`
	CommentPostURI   string `json:"ndgrProgramCommentPostUri"`
}

// Client fetches and parses watch pages.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Resolver exposes the one-call discovery used by downstream consumers.
type Resolver interface {
	EntryURI(ctx context.Context, channelID string) (string, error)
}

// EntryURI resolves a channel id (jk alias or native id) all the way to the
// entry-point stream URI.
func (c *Client) EntryURI(ctx context.Context, channelID string) (string, error) {
	native, err := ResolveChannel(channelID)
	if err != nil {
		return "", err
	}
	info, err := c.WatchPage(ctx, native)
	if err != nil {
		return "", err
	}
	return c.ResolveEntry(ctx, info.CommentViewURI)
}

// WatchPage fetches the channel's watch page and extracts the embedded
// program data. Loading the page does not initialize any viewing session on
// the server side.
func (c *Client) WatchPage(ctx context.Context, nativeID string) (*ProgramInfo, error) {
	pageURL := fmt.Sprintf("%s/rekari/%s", c.baseURL, nativeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Sec-CH-UA", secChUA)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching watch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing watch page: %w", err)
	}

	props, ok := embeddedProps(doc)
	if !ok {
		return nil, fmt.Errorf("watch page %s: no embedded-data element", pageURL)
	}

	var embedded struct {
		Program          ProgramInfo `json:"program"`
		TemporaryMeasure ProgramInfo `json:"temporaryMeasure"`
	}
	if err := json.Unmarshal([]byte(props), &embedded); err != nil {
		return nil, fmt.Errorf("decoding embedded data: %w", err)
	}

	info := embedded.Program
	info.StreamContentURI = embedded.TemporaryMeasure.StreamContentURI
	info.CommentViewURI = embedded.TemporaryMeasure.CommentViewURI
	info.CommentPostURI = embedded.TemporaryMeasure.CommentPostURI
	if info.CommentViewURI == "" {
		return nil, fmt.Errorf("watch page %s: no comment view uri", pageURL)
	}

	c.logger.Debug("parsed watch page",
		zap.String("channel", nativeID),
		zap.String("title", info.Title),
		zap.String("status", info.Status))

	return &info, nil
}

// ResolveEntry exchanges the program's comment view URI for the entry-point
// stream URI via its {"view": "..."} JSON response.
func (c *Client) ResolveEntry(ctx context.Context, viewURI string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, viewURI, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolving view uri: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("view uri %s: unexpected status %d", viewURI, resp.StatusCode)
	}

	var body struct {
		View string `json:"view"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding view response: %w", err)
	}
	if body.View == "" {
		return "", fmt.Errorf("view uri %s: empty view field", viewURI)
	}
	return body.View, nil
}

// embeddedProps finds the element with id="embedded-data" and returns its
// data-props attribute.
func embeddedProps(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode {
		var isTarget bool
		var props string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "id":
				isTarget = attr.Val == "embedded-data"
			case "data-props":
				props = attr.Val
			}
		}
		if isTarget && props != "" {
			return props, true
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if props, ok := embeddedProps(child); ok {
			return props, true
		}
	}
	return "", false
}
