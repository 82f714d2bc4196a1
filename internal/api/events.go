package api

import (
	"time"

	"wagerbot/pkg/types"
)

// Event is the wrapper for everything sent over the WebSocket stream
type Event struct {
	Type      string      `json:"type"`      // "snapshot" or a ledger fact type
	Timestamp time.Time   `json:"timestamp"` // Event time
	MarketID  string      `json:"market_id,omitempty"`
	Data      interface{} `json:"data"` // Event-specific payload
}

// FactPayload is the wire form of a ledger fact
type FactPayload struct {
	ID      string `json:"id"`
	Account string `json:"account,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// NewFactEvent wraps a ledger fact for broadcast
func NewFactEvent(f types.Fact) Event {
	p := FactPayload{
		ID:      f.ID,
		Account: f.Account,
		Outcome: string(f.Outcome),
	}
	if !f.Amount.IsZero() {
		p.Amount = f.Amount.String()
	}
	return Event{
		Type:      string(f.Type),
		Timestamp: f.Timestamp,
		MarketID:  f.MarketID,
		Data:      p,
	}
}
