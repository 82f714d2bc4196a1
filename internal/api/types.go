package api

import (
	"time"

	"wagerbot/pkg/types"
)

// Snapshot represents the complete dashboard state
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Markets     []MarketStatus `json:"markets"`
	OpenMarkets int            `json:"open_markets"`

	// Sum of all unclaimed credits, as a decimal string
	TotalPending string            `json:"total_pending"`
	Balances     map[string]string `json:"balances"`
}

// MarketStatus represents per-market state. Amounts are decimal strings so
// clients never lose precision to float parsing.
type MarketStatus struct {
	ID         string    `json:"id"`
	Prediction string    `json:"prediction"`
	Creator    string    `json:"creator"`
	Deadline   time.Time `json:"deadline"`
	Active     bool      `json:"active"`
	Resolved   bool      `json:"resolved"`
	Outcome    string    `json:"outcome,omitempty"`

	TotalAgree    string `json:"total_agree"`
	TotalDisagree string `json:"total_disagree"`
	BetCount      int    `json:"bet_count"`
}

func newMarketStatus(m types.MarketInfo) MarketStatus {
	return MarketStatus{
		ID:            m.ID,
		Prediction:    m.Prediction,
		Creator:       m.Creator,
		Deadline:      m.Deadline,
		Active:        m.Active,
		Resolved:      m.Resolved,
		Outcome:       string(m.Outcome),
		TotalAgree:    m.TotalAgree.String(),
		TotalDisagree: m.TotalDisagree.String(),
		BetCount:      m.BetCount,
	}
}
