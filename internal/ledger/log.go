// log.go implements the append-only ledger event log, backed by sqlite.
//
// Every committed mutation is one row in ledger_events; the in-memory view
// in ledger.go is a materialization rebuilt by replaying the log at startup.
// Markets and bets are never updated or deleted; history only grows, so a
// replay always reproduces the exact same view.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"wagerbot/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_events (
    seq        INTEGER  PRIMARY KEY AUTOINCREMENT,
    id         TEXT     NOT NULL UNIQUE,
    type       TEXT     NOT NULL,
    payload    TEXT     NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_events_type ON ledger_events(type);
`

// Event types stored in the log.
const (
	evMarketCreated  = "market_created"
	evBetPlaced      = "bet_placed"
	evMarketResolved = "market_resolved"
	evWithdrawal     = "withdrawal"
)

// Log payload shapes. These are the durable wire format of the ledger;
// renaming a JSON key is a breaking change for existing data files.
//
// MentionID is the feed event id of the mention that caused the mutation.
// It persists the dedup set across restarts: replay collects the ids, and a
// re-delivered mention is refused before it can append a second event.
// Empty for mutations with no feed origin (tests, operator tooling).

type marketCreatedEvent struct {
	MarketID   string    `json:"market_id"`
	Prediction string    `json:"prediction"`
	Creator    string    `json:"creator"`
	Deadline   time.Time `json:"deadline"`
	CreatedAt  time.Time `json:"created_at"`
	MentionID  string    `json:"mention_id,omitempty"`
}

type betPlacedEvent struct {
	MarketID  string          `json:"market_id"`
	Bettor    string          `json:"bettor"`
	Amount    decimal.Decimal `json:"amount"`
	Position  types.Position  `json:"position"`
	PlacedAt  time.Time       `json:"placed_at"`
	MentionID string          `json:"mention_id,omitempty"`
}

// marketResolvedEvent records the outcome and the fee rate in force at
// resolution time. Settlement credits are recomputed on replay; the payout
// math is deterministic, so storing its inputs is enough.
type marketResolvedEvent struct {
	MarketID   string         `json:"market_id"`
	Outcome    types.Position `json:"outcome"`
	FeeBps     int64          `json:"fee_bps"`
	ResolvedAt time.Time      `json:"resolved_at"`
	MentionID  string         `json:"mention_id,omitempty"`
}

type withdrawalEvent struct {
	Account   string          `json:"account"`
	Amount    decimal.Decimal `json:"amount"`
	At        time.Time       `json:"at"`
	MentionID string          `json:"mention_id,omitempty"`
}

// eventLog wraps the sqlite handle. sqlite is single-writer; the ledger
// serializes all access behind its own mutex, so the pool is capped at one
// connection.
type eventLog struct {
	db *sql.DB
}

func openLog(path string) (*eventLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger log %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &eventLog{db: db}, nil
}

func (l *eventLog) close() error {
	return l.db.Close()
}

// append durably records one event and returns its id. The caller must only
// apply the event to the in-memory view after append succeeds: the log is
// the authority.
func (l *eventLog) append(typ string, payload any, at time.Time) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", typ, err)
	}

	id := uuid.NewString()
	_, err = l.db.Exec(
		`INSERT INTO ledger_events (id, type, payload, created_at) VALUES (?, ?, ?, ?)`,
		id, typ, string(data), at.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("append %s event: %w", typ, err)
	}
	return id, nil
}

func unmarshalEvent(typ string, payload []byte, into any) error {
	if err := json.Unmarshal(payload, into); err != nil {
		return fmt.Errorf("replay: decode %s event: %w", typ, err)
	}
	return nil
}

// replay streams every event in commit order to fn.
func (l *eventLog) replay(fn func(typ string, payload []byte) error) error {
	rows, err := l.db.Query(`SELECT type, payload FROM ledger_events ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("read ledger log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ, payload string
		if err := rows.Scan(&typ, &payload); err != nil {
			return fmt.Errorf("scan ledger event: %w", err)
		}
		if err := fn(typ, []byte(payload)); err != nil {
			return err
		}
	}
	return rows.Err()
}
