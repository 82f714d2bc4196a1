package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"wagerbot/internal/config"
	"wagerbot/internal/feed"
	"wagerbot/pkg/types"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ev(id, author string, at time.Time) types.MentionEvent {
	return types.MentionEvent{ID: id, AuthorID: author, Text: "bet 0.1 eth yes", CreatedAt: at, ThreadRootID: "root"}
}

// scriptedFeed returns one batch per Mentions call.
type scriptedFeed struct {
	batches  [][]types.MentionEvent
	errs     []error
	calls    int
	sinceIDs []string
	replies  []string
	replyErr map[string]error
}

func (f *scriptedFeed) Mentions(ctx context.Context, sinceID string) ([]types.MentionEvent, error) {
	f.sinceIDs = append(f.sinceIDs, sinceID)
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.batches) {
		return f.batches[idx], nil
	}
	return nil, nil
}

func (f *scriptedFeed) Reply(ctx context.Context, eventID, text string) error {
	if err := f.replyErr[eventID]; err != nil {
		return err
	}
	f.replies = append(f.replies, eventID)
	return nil
}

// scriptedRouter records dispatch order and fails on demand.
type scriptedRouter struct {
	handled []string
	errs    map[string]error
}

func (r *scriptedRouter) Handle(ctx context.Context, ev types.MentionEvent) (string, error) {
	if err := r.errs[ev.ID]; err != nil {
		return "", err
	}
	r.handled = append(r.handled, ev.ID)
	return "ok", nil
}

// waitRecorder drives Run for a fixed number of polls, recording each
// requested interval, then cancels the context.
type waitRecorder struct {
	intervals []time.Duration
	polls     int
	cancel    context.CancelFunc
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.intervals = append(w.intervals, d)
	if w.polls == 0 {
		w.cancel()
		return ctx.Err()
	}
	w.polls--
	return nil
}

func newTestIngestor(t *testing.T, f Feed, r Dispatcher, polls int) (*Ingestor, *waitRecorder, context.Context) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ing, err := New(config.IngestConfig{
		BaseInterval:          15 * time.Second,
		FirstTimeIdleInterval: 60 * time.Second,
		MaxInterval:           5 * time.Minute,
		EmptyThreshold:        3,
		CooldownInterval:      15 * time.Minute,
		CursorPath:            t.TempDir(),
	}, f, r, "bot", logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &waitRecorder{polls: polls, cancel: cancel}
	ing.wait = w.wait
	ing.startedAt = t0
	ing.now = func() time.Time { return t0 }
	return ing, w, ctx
}

func TestDispatchInAscendingOrder(t *testing.T) {
	t.Parallel()
	f := &scriptedFeed{batches: [][]types.MentionEvent{{
		ev("m2", "alice", t0.Add(2*time.Minute)),
		ev("m1", "bob", t0.Add(1*time.Minute)),
		ev("m3", "carol", t0.Add(3*time.Minute)),
	}}}
	r := &scriptedRouter{}
	ing, _, ctx := newTestIngestor(t, f, r, 1)

	if err := ing.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"m1", "m2", "m3"}
	if len(r.handled) != len(want) {
		t.Fatalf("handled %v, want %v", r.handled, want)
	}
	for i := range want {
		if r.handled[i] != want[i] {
			t.Errorf("handled[%d] = %s, want %s", i, r.handled[i], want[i])
		}
	}
	if ing.lastSeen != "m3" {
		t.Errorf("lastSeen = %q, want m3", ing.lastSeen)
	}

	// cursor survives on disk
	cur, err := ing.cursors.Load()
	if err != nil || cur == nil {
		t.Fatalf("Load cursor: %v, %v", cur, err)
	}
	if cur.LastSeenID != "m3" {
		t.Errorf("persisted cursor = %q, want m3", cur.LastSeenID)
	}
}

func TestFiltersSelfAndPreStartEvents(t *testing.T) {
	t.Parallel()
	f := &scriptedFeed{batches: [][]types.MentionEvent{{
		ev("old", "alice", t0.Add(-time.Hour)), // before process start: never dispatched
		ev("own", "bot", t0.Add(time.Minute)),  // bot's own reply
		ev("new", "alice", t0.Add(2*time.Minute)),
	}}}
	r := &scriptedRouter{}
	ing, _, ctx := newTestIngestor(t, f, r, 1)

	if err := ing.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(r.handled) != 1 || r.handled[0] != "new" {
		t.Errorf("handled = %v, want [new]", r.handled)
	}
	// skipped events still move the cursor; discarding is deterministic
	if ing.lastSeen != "new" {
		t.Errorf("lastSeen = %q, want new", ing.lastSeen)
	}
}

func TestFetchRateLimitTriggersCooldown(t *testing.T) {
	t.Parallel()
	f := &scriptedFeed{errs: []error{feed.ErrRateLimited}}
	r := &scriptedRouter{}
	ing, w, ctx := newTestIngestor(t, f, r, 2)

	if err := ing.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// wait #1 = base (before first poll), wait #2 = cooldown
	if len(w.intervals) < 2 {
		t.Fatalf("intervals = %v", w.intervals)
	}
	if w.intervals[0] != 15*time.Second {
		t.Errorf("first interval = %v, want base", w.intervals[0])
	}
	if w.intervals[1] != 15*time.Minute {
		t.Errorf("post-rate-limit interval = %v, want cooldown", w.intervals[1])
	}
}

func TestEmptyPollsBeforeFirstMatchUseIdleInterval(t *testing.T) {
	t.Parallel()
	f := &scriptedFeed{} // always empty
	r := &scriptedRouter{}
	ing, w, ctx := newTestIngestor(t, f, r, 2)

	if err := ing.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if w.intervals[1] != 60*time.Second || w.intervals[2] != 60*time.Second {
		t.Errorf("intervals = %v, want first-time idle after each empty poll", w.intervals)
	}
}

func TestDispatchFailurePinsCursor(t *testing.T) {
	t.Parallel()
	f := &scriptedFeed{batches: [][]types.MentionEvent{{
		ev("m1", "alice", t0.Add(1*time.Minute)),
		ev("m2", "bob", t0.Add(2*time.Minute)),
		ev("m3", "carol", t0.Add(3*time.Minute)),
	}}}
	r := &scriptedRouter{errs: map[string]error{"m2": errors.New("boom")}}
	ing, _, ctx := newTestIngestor(t, f, r, 1)

	if err := ing.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// m3 is still processed this cycle, but the cursor stays at the last
	// success before the failure so m2 and m3 are re-delivered on restart.
	want := []string{"m1", "m3"}
	if len(r.handled) != 2 || r.handled[0] != want[0] || r.handled[1] != want[1] {
		t.Errorf("handled = %v, want %v", r.handled, want)
	}
	if ing.lastSeen != "m1" {
		t.Errorf("lastSeen = %q, want m1", ing.lastSeen)
	}
}

func TestDispatchRateLimitAbortsBatch(t *testing.T) {
	t.Parallel()
	f := &scriptedFeed{batches: [][]types.MentionEvent{{
		ev("m1", "alice", t0.Add(1*time.Minute)),
		ev("m2", "bob", t0.Add(2*time.Minute)),
	}}}
	r := &scriptedRouter{errs: map[string]error{"m1": feed.ErrRateLimited}}
	ing, w, ctx := newTestIngestor(t, f, r, 2)

	if err := ing.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(r.handled) != 0 {
		t.Errorf("handled = %v, want none", r.handled)
	}
	if w.intervals[1] != 15*time.Minute {
		t.Errorf("post-abort interval = %v, want cooldown", w.intervals[1])
	}
	if ing.lastSeen != "" {
		t.Errorf("cursor advanced past an undispatched event: %q", ing.lastSeen)
	}
}

func TestRepliesPosted(t *testing.T) {
	t.Parallel()
	f := &scriptedFeed{batches: [][]types.MentionEvent{{
		ev("m1", "alice", t0.Add(time.Minute)),
	}}}
	r := &scriptedRouter{}
	ing, _, ctx := newTestIngestor(t, f, r, 1)

	if err := ing.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.replies) != 1 || f.replies[0] != "m1" {
		t.Errorf("replies = %v, want [m1]", f.replies)
	}
}

func TestResumeFromPersistedCursor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := OpenCursorStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(Cursor{LastSeenID: "m7"}); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	f := &scriptedFeed{}
	ing, err := New(config.IngestConfig{
		BaseInterval:          time.Second,
		FirstTimeIdleInterval: time.Second,
		MaxInterval:           time.Second,
		EmptyThreshold:        1,
		CooldownInterval:      time.Second,
		CursorPath:            dir,
	}, f, &scriptedRouter{}, "bot", logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &waitRecorder{polls: 1, cancel: cancel}
	ing.wait = w.wait
	_ = ing.Run(ctx)

	if len(f.sinceIDs) == 0 || f.sinceIDs[0] != "m7" {
		t.Errorf("sinceIDs = %v, want first fetch from m7", f.sinceIDs)
	}
}
