package api

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"wagerbot/pkg/types"
)

// LedgerView is the read-only slice of the ledger the dashboard needs.
type LedgerView interface {
	Markets() []types.MarketInfo
	PendingBalances() map[string]decimal.Decimal
}

// BuildSnapshot aggregates ledger state into a dashboard snapshot
func BuildSnapshot(view LedgerView) Snapshot {
	infos := view.Markets()

	markets := make([]MarketStatus, 0, len(infos))
	open := 0
	for _, m := range infos {
		if m.Active && !m.Resolved {
			open++
		}
		markets = append(markets, newMarketStatus(m))
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })

	pending := view.PendingBalances()
	balances := make(map[string]string, len(pending))
	total := decimal.Zero
	for account, amount := range pending {
		balances[account] = amount.String()
		total = total.Add(amount)
	}

	return Snapshot{
		Timestamp:    time.Now(),
		Markets:      markets,
		OpenMarkets:  open,
		TotalPending: total.String(),
		Balances:     balances,
	}
}
