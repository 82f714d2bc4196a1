package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"wagerbot/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewClient(config.FeedConfig{
		BaseURL:       srv.URL,
		Token:         "test-token",
		BotUserID:     "bot",
		RepliesPerMin: 600,
	}, logger)
}

func TestMentionsSinceID(t *testing.T) {
	t.Parallel()
	var gotSince string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mentions" {
			t.Errorf("path = %s, want /mentions", r.URL.Path)
		}
		gotSince = r.URL.Query().Get("since_id")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"mentions": []map[string]any{
				{
					"id":             "m2",
					"author_id":      "alice",
					"text":           "bet 0.1 eth yes",
					"created_at":     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
					"thread_root_id": "root1",
				},
			},
		})
	})

	events, err := c.Mentions(context.Background(), "m1")
	if err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if gotSince != "m1" {
		t.Errorf("since_id = %q, want m1", gotSince)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ID != "m2" || events[0].AuthorID != "alice" {
		t.Errorf("unexpected event: %+v", events[0])
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}
}

func TestMentionsRateLimited(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Mentions(context.Background(), "")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestMentionsPermissionDenied(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.Mentions(context.Background(), "")
	if !errors.Is(err, ErrPermission) {
		t.Errorf("err = %v, want ErrPermission", err)
	}
}

func TestRootNotFound(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Root(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRootReturnsText(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts/root1" {
			t.Errorf("path = %s, want /posts/root1", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "root1", "text": "BTC $120k by EOY"})
	})

	text, err := c.Root(context.Background(), "root1")
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if text != "BTC $120k by EOY" {
		t.Errorf("text = %q", text)
	}
}

func TestReplyPostsBody(t *testing.T) {
	t.Parallel()
	var got map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/replies" {
			t.Errorf("%s %s, want POST /replies", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	})

	if err := c.Reply(context.Background(), "m2", "Bet recorded"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got["in_reply_to"] != "m2" || got["text"] != "Bet recorded" {
		t.Errorf("body = %+v", got)
	}
}
