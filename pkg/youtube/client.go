// Package youtube talks to the upstream video catalog API: paginated playlist
// listings plus batched video and channel lookups. All calls are best-effort,
// a failed page ends pagination with whatever was accumulated and a failed
// batch is reported to the caller to skip. Quota exhaustion is a normal
// condition here, not an exceptional one.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/time/rate"

	"github.com/clipfeed/clipfeed/pkg/domain"
)

// ErrNoCredential is returned when the client has no API key configured.
var ErrNoCredential = errors.New("youtube: no api key configured")

const (
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// PageSize is the number of playlist items requested per page.
	PageSize = 50
	// MaxPerPlaylist caps accumulated items for one playlist, a quota measure.
	MaxPerPlaylist = 500
)

// Client is the upstream catalog API client. Safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// Config holds client settings.
type Config struct {
	APIKey  string
	BaseURL string        // defaults to the public API endpoint
	Timeout time.Duration // per-request timeout, defaults to 15s
	RPS     float64       // client-side request pacing, defaults to 10 req/s
}

// NewClient creates a catalog API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RPS == 0 {
		cfg.RPS = 10
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), 1),
	}
}

// CheckCredential reports whether the client can reach the upstream at all.
func (c *Client) CheckCredential() error {
	if c.apiKey == "" {
		return ErrNoCredential
	}
	return nil
}

// PlaylistItems retrieves entries of one playlist published inside the given
// window, paging until the continuation token runs out or MaxPerPlaylist is
// reached. Any page-level failure (transport, HTTP status, structured API
// error) stops pagination and returns what was accumulated so far; a partial
// result is a success from the caller's point of view.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string, after, before time.Time) ([]domain.PlaylistEntry, error) {
	if err := c.CheckCredential(); err != nil {
		return nil, err
	}

	entries := []domain.PlaylistEntry{}
	pageToken := ""

	for {
		q := url.Values{}
		q.Set("part", "snippet")
		q.Set("playlistId", playlistID)
		q.Set("publishedAfter", after.UTC().Format(time.RFC3339))
		q.Set("publishedBefore", before.UTC().Format(time.RFC3339))
		q.Set("maxResults", fmt.Sprintf("%d", PageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page playlistItemsResponse
		if err := c.get(ctx, "/playlistItems", q, &page); err != nil {
			lgr.Printf("[WARN] playlist %s page fetch failed, returning %d accumulated items: %v", playlistID, len(entries), err)
			return entries, nil
		}

		if page.Items == nil {
			// malformed page, an empty items list still carries a usable token
			lgr.Printf("[WARN] playlist %s returned page without items", playlistID)
		}
		for _, item := range page.Items {
			entries = append(entries, toEntry(item))
		}

		pageToken = page.NextPageToken
		if pageToken == "" || len(entries) >= MaxPerPlaylist {
			break
		}
	}

	lgr.Printf("[DEBUG] playlist %s yielded %d entries", playlistID, len(entries))
	return entries, nil
}

// VideosByIDs resolves one batch of video ids to their detail records. The
// caller is responsible for keeping the batch inside the upstream's id limit.
func (c *Client) VideosByIDs(ctx context.Context, ids []string) ([]VideoDetail, error) {
	if err := c.CheckCredential(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("part", "snippet,statistics,contentDetails")
	q.Set("id", strings.Join(ids, ","))

	var resp videosResponse
	if err := c.get(ctx, "/videos", q, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return nil, fmt.Errorf("videos response has no items")
	}

	details := make([]VideoDetail, 0, len(resp.Items))
	for _, item := range resp.Items {
		details = append(details, VideoDetail{
			VideoID:      item.ID,
			Title:        item.Snippet.Title,
			PublishedAt:  item.Snippet.PublishedAt,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			Thumbnail:    item.Snippet.Thumbnails.bestURL(),
			ViewCount:    item.Statistics.ViewCount,
			Duration:     item.ContentDetails.Duration,
		})
	}
	return details, nil
}

// ChannelsByIDs resolves one batch of channel ids to their icon references.
func (c *Client) ChannelsByIDs(ctx context.Context, ids []string) ([]ChannelDetail, error) {
	if err := c.CheckCredential(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", strings.Join(ids, ","))

	var resp channelsResponse
	if err := c.get(ctx, "/channels", q, &resp); err != nil {
		return nil, err
	}

	details := make([]ChannelDetail, 0, len(resp.Items))
	for _, item := range resp.Items {
		d := ChannelDetail{ChannelID: item.ID}
		if def := item.Snippet.Thumbnails.Default; def != nil && def.URL != "" {
			u := def.URL
			d.Icon = &u
		}
		details = append(details, d)
	}
	return details, nil
}

// get performs one paced API call and decodes the JSON body into out. A
// non-success status or structured error payload is returned as an error.
func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	q.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		// the error payload, when parsable, names the quota or key problem
		var errResp struct {
			Error *apiError `json:"error"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error != nil {
			return fmt.Errorf("%s status %d: %s", path, resp.StatusCode, errResp.Error.Message)
		}
		return fmt.Errorf("%s status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	// structured errors can arrive with a 200 as well
	if e := extractError(out); e != nil {
		return fmt.Errorf("%s api error %d: %s", path, e.Code, e.Message)
	}
	return nil
}

// extractError pulls the structured error out of a decoded response.
func extractError(out interface{}) *apiError {
	switch r := out.(type) {
	case *playlistItemsResponse:
		return r.Error
	case *videosResponse:
		return r.Error
	case *channelsResponse:
		return r.Error
	}
	return nil
}

// toEntry maps a wire playlist item to the domain record.
func toEntry(item playlistItem) domain.PlaylistEntry {
	published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	return domain.PlaylistEntry{
		VideoID:      item.Snippet.ResourceID.VideoID,
		Title:        item.Snippet.Title,
		Published:    published,
		Thumbnail:    item.Snippet.Thumbnails.bestURL(),
		ChannelID:    item.Snippet.ChannelID,
		ChannelTitle: item.Snippet.ChannelTitle,
	}
}
