// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — positions, bets,
// mention events, market snapshots, and ledger facts. It has no dependencies
// on internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Position is the side of a wager relative to the prediction text.
type Position string

const (
	Agree    Position = "AGREE"
	Disagree Position = "DISAGREE"
)

// Opposite returns the other side.
func (p Position) Opposite() Position {
	if p == Agree {
		return Disagree
	}
	return Agree
}

// Bet is one stake placed by one account on one side of a market.
// Bets are immutable once recorded.
type Bet struct {
	Bettor   string          `json:"bettor"`
	Amount   decimal.Decimal `json:"amount"`
	Position Position        `json:"position"`
	PlacedAt time.Time       `json:"placed_at"`
}

// MarketInfo is a read-only snapshot of one market's state.
type MarketInfo struct {
	ID            string          `json:"id"`
	Prediction    string          `json:"prediction"`
	Creator       string          `json:"creator"`
	Deadline      time.Time       `json:"deadline"`
	Active        bool            `json:"active"`
	Resolved      bool            `json:"resolved"`
	Outcome       Position        `json:"outcome,omitempty"` // empty until resolved
	TotalAgree    decimal.Decimal `json:"total_agree"`
	TotalDisagree decimal.Decimal `json:"total_disagree"`
	BetCount      int             `json:"bet_count"`
}

// MentionEvent is one inbound event from the social feed.
type MentionEvent struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	ThreadRootID string    `json:"thread_root_id"`
}

// FactType enumerates the facts the ledger emits after each committed mutation.
type FactType string

const (
	FactMarketCreated    FactType = "MARKET_CREATED"
	FactBetPlaced        FactType = "BET_PLACED"
	FactMarketResolved   FactType = "MARKET_RESOLVED"
	FactWithdrawal       FactType = "WITHDRAWAL"
	FactWithdrawalFailed FactType = "WITHDRAWAL_FAILED"
)

// Fact is an observable record of one committed ledger mutation. Facts feed
// the operator dashboard stream and tests; they carry no authority of their
// own (the event log does).
type Fact struct {
	ID        string          `json:"id"`
	Type      FactType        `json:"type"`
	MarketID  string          `json:"market_id,omitempty"`
	Account   string          `json:"account,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Outcome   Position        `json:"outcome,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// MarketID derives the stable market key for a conversation: the keccak-256
// hash of the thread root id. Every reply in the same thread maps to the
// same market regardless of which post carried the command.
func MarketID(threadRootID string) string {
	return common.BytesToHash(crypto.Keccak256([]byte(threadRootID))).Hex()
}

// NormalizeAccount canonicalizes an account identifier. Feed author ids that
// are EVM addresses get EIP-55 checksum casing so the same wallet never maps
// to two ledger accounts; anything else passes through verbatim.
func NormalizeAccount(id string) string {
	if common.IsHexAddress(id) {
		return common.HexToAddress(id).Hex()
	}
	return id
}
