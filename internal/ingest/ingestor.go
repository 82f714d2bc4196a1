// Package ingest runs the mention-processing pipeline.
//
// A single goroutine repeatedly: waits the interval the backoff governor
// chose, fetches mentions after the cursor, filters out the bot's own posts
// and anything from before this process started, sorts the rest by creation
// time, and dispatches them one at a time to the command router. The cursor
// is checkpointed only past events that were handled, so a crash mid-batch
// re-delivers the remainder on restart. Delivery is at-least-once; the
// ledger tracks applied mention ids, so a re-delivered event is a silent
// no-op, never a second bet.
//
// Concurrency is eliminated by construction: the cursor and the backoff
// state have exactly one writer, this loop.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"wagerbot/internal/config"
	"wagerbot/internal/feed"
	"wagerbot/pkg/types"
)

// Feed is the subset of the feed client the ingestor needs.
type Feed interface {
	Mentions(ctx context.Context, sinceID string) ([]types.MentionEvent, error)
	Reply(ctx context.Context, eventID, text string) error
}

// Dispatcher handles one mention and returns the reply to post (empty for
// no reply). An ErrRateLimited error aborts the rest of the batch; any other
// error skips just this event.
type Dispatcher interface {
	Handle(ctx context.Context, ev types.MentionEvent) (string, error)
}

// Ingestor is the polling scheduler.
type Ingestor struct {
	feed    Feed
	router  Dispatcher
	cursors *CursorStore
	policy  Policy
	self    string // bot's own author id, never dispatched
	logger  *slog.Logger

	startedAt time.Time // events created before this are never dispatched
	lastSeen  string

	// injectable for deterministic tests
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// New creates an ingestor, restoring the cursor checkpoint if one exists.
func New(cfg config.IngestConfig, f Feed, r Dispatcher, botUserID string, logger *slog.Logger) (*Ingestor, error) {
	store, err := OpenCursorStore(cfg.CursorPath)
	if err != nil {
		return nil, err
	}

	var lastSeen string
	if cur, err := store.Load(); err != nil {
		return nil, err
	} else if cur != nil {
		lastSeen = cur.LastSeenID
	}

	return &Ingestor{
		feed:    f,
		router:  r,
		cursors: store,
		policy: Policy{
			Base:           cfg.BaseInterval,
			FirstTimeIdle:  cfg.FirstTimeIdleInterval,
			Max:            cfg.MaxInterval,
			Cooldown:       cfg.CooldownInterval,
			EmptyThreshold: cfg.EmptyThreshold,
		},
		self:      botUserID,
		logger:    logger.With("component", "ingestor"),
		startedAt: time.Now(),
		lastSeen:  lastSeen,
		now:       time.Now,
		wait:      sleep,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run blocks until ctx is cancelled. The in-flight event finishes before
// the loop exits; nothing is ever left half-applied.
func (i *Ingestor) Run(ctx context.Context) error {
	state := i.policy.Initial()
	i.logger.Info("ingestor started", "cursor", i.lastSeen, "interval", state.Interval)

	for {
		if err := i.wait(ctx, state.Interval); err != nil {
			i.logger.Info("ingestor stopped")
			return nil
		}
		outcome := i.poll(ctx)
		if ctx.Err() != nil {
			i.logger.Info("ingestor stopped")
			return nil
		}
		state = i.policy.Next(state, outcome)
	}
}

// poll performs one fetch-and-dispatch cycle and reports its outcome to the
// backoff governor.
func (i *Ingestor) poll(ctx context.Context) Outcome {
	events, err := i.feed.Mentions(ctx, i.lastSeen)
	switch {
	case errors.Is(err, feed.ErrRateLimited):
		i.logger.Warn("feed rate limited, entering cooldown")
		return OutcomeRateLimited
	case errors.Is(err, feed.ErrPermission):
		// Structural auth failure: fatal for this cycle, never for the
		// process. The loop keeps running in case credentials recover.
		i.logger.Error("feed permission failure", "error", err)
		return OutcomeEmpty
	case err != nil:
		i.logger.Warn("feed fetch failed, retrying next poll", "error", err)
		return OutcomeEmpty
	}

	if len(events) == 0 {
		return OutcomeEmpty
	}

	sort.Slice(events, func(a, b int) bool {
		return events[a].CreatedAt.Before(events[b].CreatedAt)
	})

	// advance stays true while every event so far was handled; after the
	// first failure the cursor is pinned so the remainder is re-delivered
	// next poll, even though we keep processing it now. Events handled
	// after the pin get fetched again, which the ledger's mention dedup
	// absorbs.
	advance := true

	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}

		if ev.AuthorID == i.self || ev.CreatedAt.Before(i.startedAt) {
			// Discarding is deterministic, so skipped events count as
			// handled for cursor purposes.
			if advance {
				i.checkpoint(ev.ID)
			}
			continue
		}

		reply, err := i.router.Handle(ctx, ev)
		if err != nil {
			if errors.Is(err, feed.ErrRateLimited) {
				i.logger.Warn("rate limited mid-batch, aborting remainder", "event", ev.ID)
				return OutcomeRateLimited
			}
			i.logger.Error("dispatch failed, skipping event", "event", ev.ID, "error", err)
			advance = false
			continue
		}

		if reply != "" {
			if err := i.feed.Reply(ctx, ev.ID, reply); err != nil {
				if errors.Is(err, feed.ErrRateLimited) {
					// The ledger effects are committed, so the cursor may
					// move past this event before we back off.
					if advance {
						i.checkpoint(ev.ID)
					}
					return OutcomeRateLimited
				}
				// Reply lost, command effects stand. Re-delivery wouldn't
				// help: the ledger would refuse the duplicate and no reply
				// would be produced the second time either.
				i.logger.Warn("reply failed, command effects stand", "event", ev.ID, "error", err)
			}
		}

		if advance {
			i.checkpoint(ev.ID)
		}
	}

	return OutcomeFound
}

// checkpoint advances the in-memory cursor and persists it. A failed save
// is logged but not fatal: the worst case is re-delivery.
func (i *Ingestor) checkpoint(id string) {
	i.lastSeen = id
	if err := i.cursors.Save(Cursor{LastSeenID: id, UpdatedAt: i.now()}); err != nil {
		i.logger.Error("cursor save failed", "error", err)
	}
}
