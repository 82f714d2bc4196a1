// Package feed implements the REST client for the social mention feed.
//
// Three calls: Mentions (poll for new mentions since a cursor), Root (fetch
// the root post of a thread), and Reply (post a response). Failures are
// classified so the ingestor can tell a rate limit (back off hard) from an
// auth problem (log, keep the loop alive) from a transient error (retry on
// the next poll).
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"wagerbot/internal/config"
	"wagerbot/pkg/types"
)

// Classified upstream failures.
var (
	ErrRateLimited = errors.New("feed: rate limited")
	ErrPermission  = errors.New("feed: permission denied")
	ErrNotFound    = errors.New("feed: not found")
)

// Client talks to the feed API. Replies are paced client-side so a burst of
// processed mentions cannot trip the write-side rate limit.
type Client struct {
	http    *resty.Client
	replies *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a feed client with retry on transient server errors.
// 429s are not retried here; the backoff governor owns that.
func NewClient(cfg config.FeedConfig, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.Token).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	rpm := cfg.RepliesPerMin
	if rpm <= 0 {
		rpm = 30
	}
	perReply := time.Minute / time.Duration(rpm)

	return &Client{
		http:    httpClient,
		replies: rate.NewLimiter(rate.Every(perReply), 1),
		logger:  logger.With("component", "feed"),
	}
}

// mentionDTO is the JSON shape the feed API returns for one mention.
type mentionDTO struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	ThreadRootID string    `json:"thread_root_id"`
}

type mentionsPage struct {
	Mentions []mentionDTO `json:"mentions"`
}

type postDTO struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Mentions fetches mentions newer than sinceID. An empty sinceID fetches the
// most recent page.
func (c *Client) Mentions(ctx context.Context, sinceID string) ([]types.MentionEvent, error) {
	req := c.http.R().SetContext(ctx)
	if sinceID != "" {
		req.SetQueryParam("since_id", sinceID)
	}

	var page mentionsPage
	resp, err := req.SetResult(&page).Get("/mentions")
	if err != nil {
		return nil, fmt.Errorf("fetch mentions: %w", err)
	}
	if err := classify(resp); err != nil {
		return nil, fmt.Errorf("fetch mentions: %w", err)
	}

	events := make([]types.MentionEvent, 0, len(page.Mentions))
	for _, m := range page.Mentions {
		events = append(events, types.MentionEvent{
			ID:           m.ID,
			AuthorID:     m.AuthorID,
			Text:         m.Text,
			CreatedAt:    m.CreatedAt,
			ThreadRootID: m.ThreadRootID,
		})
	}
	return events, nil
}

// Root fetches the text of a thread's root post.
func (c *Client) Root(ctx context.Context, threadRootID string) (string, error) {
	var post postDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&post).
		Get("/posts/" + threadRootID)
	if err != nil {
		return "", fmt.Errorf("fetch root %s: %w", threadRootID, err)
	}
	if err := classify(resp); err != nil {
		return "", fmt.Errorf("fetch root %s: %w", threadRootID, err)
	}
	return post.Text, nil
}

// Reply posts text in response to the given event. Blocks on the local
// reply pacer first.
func (c *Client) Reply(ctx context.Context, eventID, text string) error {
	if err := c.replies.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"in_reply_to": eventID,
			"text":        text,
		}).
		Post("/replies")
	if err != nil {
		return fmt.Errorf("post reply to %s: %w", eventID, err)
	}
	if err := classify(resp); err != nil {
		return fmt.Errorf("post reply to %s: %w", eventID, err)
	}
	return nil
}

// classify maps an HTTP response to the error taxonomy. 2xx is success.
func classify(resp *resty.Response) error {
	switch {
	case resp.StatusCode() < 300:
		return nil
	case resp.StatusCode() == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return ErrPermission
	case resp.StatusCode() == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
}
