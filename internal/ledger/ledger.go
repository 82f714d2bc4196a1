// Package ledger is the authoritative store for markets, bets, and pending
// withdrawals.
//
// State lives in two layers: an append-only sqlite event log (log.go) and an
// in-memory materialized view rebuilt from it at startup. Every mutating
// operation validates against the view, appends exactly one event, applies
// it, and emits an observable Fact. All operations are atomic at the
// granularity of one call; a single mutex serializes the view for the
// read-only dashboard server.
//
// Lifecycle invariants enforced here:
//
//   - market ids are unique; creating an existing id fails
//   - totalAgree + totalDisagree always equals the sum of recorded bets
//   - no bet is accepted on a resolved, inactive, or expired market
//   - resolution happens exactly once, only after the deadline
//   - pending balances never go negative; withdrawing zero fails untouched
//   - a mention event id mutates the ledger at most once, across restarts
package ledger

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wagerbot/internal/config"
	"wagerbot/internal/payout"
	"wagerbot/pkg/types"
)

// Market duration bounds in days.
const (
	minDurationDays = 1
	maxDurationDays = 365
)

// market is the materialized state of one market. Only resolved/outcome
// ever change after creation; bets are append-only.
type market struct {
	id            string
	prediction    string
	creator       string
	createdAt     time.Time
	deadline      time.Time
	active        bool
	resolved      bool
	outcome       types.Position
	totalAgree    decimal.Decimal
	totalDisagree decimal.Decimal
	bets          []types.Bet
}

// Ledger owns all market, bet, and withdrawal state.
type Ledger struct {
	mu      sync.Mutex
	log     *eventLog
	markets map[string]*market
	order   []string // market ids in creation order
	pending map[string]decimal.Decimal
	seen    map[string]struct{} // mention event ids already applied

	cfg    config.LedgerConfig
	logger *slog.Logger
	facts  chan types.Fact

	now func() time.Time // injectable clock for tests
}

// Open opens (or creates) the ledger at cfg.DataPath and rebuilds the
// materialized view by replaying the event log.
func Open(cfg config.LedgerConfig, logger *slog.Logger) (*Ledger, error) {
	log, err := openLog(cfg.DataPath)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		log:     log,
		markets: make(map[string]*market),
		pending: make(map[string]decimal.Decimal),
		seen:    make(map[string]struct{}),
		cfg:     cfg,
		logger:  logger.With("component", "ledger"),
		facts:   make(chan types.Fact, 128),
		now:     time.Now,
	}

	if err := l.rebuild(); err != nil {
		log.close()
		return nil, err
	}

	l.logger.Info("ledger opened", "markets", len(l.markets), "path", cfg.DataPath)
	return l, nil
}

// Close closes the underlying event log.
func (l *Ledger) Close() error {
	return l.log.close()
}

// Facts returns the stream of committed-mutation facts. The channel is
// buffered; if nothing drains it, facts are dropped, never blocked on.
func (l *Ledger) Facts() <-chan types.Fact {
	return l.facts
}

// CreateMarket opens a new market accepting bets until now + durationDays.
// mentionID is the feed event behind the command; a re-delivered mention is
// rejected with ErrDuplicateEvent before any other validation, so dedup wins
// even against state that has moved on since the first delivery.
func (l *Ledger) CreateMarket(id, prediction, creator string, durationDays int, mentionID string) (types.MarketInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isApplied(mentionID) {
		return types.MarketInfo{}, fmt.Errorf("create market %s: mention %s: %w", id, mentionID, ErrDuplicateEvent)
	}
	if _, ok := l.markets[id]; ok {
		return types.MarketInfo{}, fmt.Errorf("create market %s: %w", id, ErrAlreadyExists)
	}
	if strings.TrimSpace(prediction) == "" {
		return types.MarketInfo{}, fmt.Errorf("create market %s: %w", id, ErrInvalidPrediction)
	}
	if durationDays < minDurationDays || durationDays > maxDurationDays {
		return types.MarketInfo{}, fmt.Errorf("create market %s: duration %dd: %w", id, durationDays, ErrInvalidDuration)
	}

	now := l.now()
	ev := marketCreatedEvent{
		MarketID:   id,
		Prediction: prediction,
		Creator:    creator,
		Deadline:   now.Add(time.Duration(durationDays) * 24 * time.Hour),
		CreatedAt:  now,
		MentionID:  mentionID,
	}

	factID, err := l.log.append(evMarketCreated, ev, now)
	if err != nil {
		return types.MarketInfo{}, err
	}
	l.applyMarketCreated(ev)

	l.emit(types.Fact{
		ID:        factID,
		Type:      types.FactMarketCreated,
		MarketID:  id,
		Account:   creator,
		Timestamp: now,
	})
	l.logger.Info("market created", "market", id, "creator", creator, "deadline", ev.Deadline)

	return l.markets[id].info(), nil
}

// PlaceBet appends a bet to an open market and updates the matching total.
func (l *Ledger) PlaceBet(id, bettor string, position types.Position, amount decimal.Decimal, mentionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isApplied(mentionID) {
		return fmt.Errorf("bet on %s: mention %s: %w", id, mentionID, ErrDuplicateEvent)
	}
	m, ok := l.markets[id]
	if !ok {
		return fmt.Errorf("bet on %s: %w", id, ErrNotFound)
	}
	if !m.active {
		return fmt.Errorf("bet on %s: %w", id, ErrInactive)
	}
	if m.resolved {
		return fmt.Errorf("bet on %s: %w", id, ErrResolved)
	}
	now := l.now()
	if !now.Before(m.deadline) {
		return fmt.Errorf("bet on %s: %w", id, ErrExpired)
	}
	if amount.LessThan(l.cfg.MinBetAmount) || amount.GreaterThan(l.cfg.MaxBetAmount) {
		return fmt.Errorf("bet on %s: amount %s: %w", id, amount, ErrAmountOutOfRange)
	}

	ev := betPlacedEvent{
		MarketID:  id,
		Bettor:    bettor,
		Amount:    amount,
		Position:  position,
		PlacedAt:  now,
		MentionID: mentionID,
	}

	factID, err := l.log.append(evBetPlaced, ev, now)
	if err != nil {
		return err
	}
	l.applyBetPlaced(ev)

	l.emit(types.Fact{
		ID:        factID,
		Type:      types.FactBetPlaced,
		MarketID:  id,
		Account:   bettor,
		Amount:    amount,
		Outcome:   position,
		Timestamp: now,
	})
	l.logger.Info("bet recorded", "market", id, "bettor", bettor, "amount", amount, "position", position)

	return nil
}

// Resolve fixes the market outcome and credits settlement balances. Only an
// account listed in the resolver set may resolve, and only once the deadline
// has passed. The outcome is immutable afterwards.
func (l *Ledger) Resolve(id, resolver string, outcome types.Position, mentionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isApplied(mentionID) {
		return fmt.Errorf("resolve %s: mention %s: %w", id, mentionID, ErrDuplicateEvent)
	}
	if !l.isResolver(resolver) {
		return fmt.Errorf("resolve %s by %s: %w", id, resolver, ErrNotAuthorized)
	}
	m, ok := l.markets[id]
	if !ok {
		return fmt.Errorf("resolve %s: %w", id, ErrNotFound)
	}
	if m.resolved {
		return fmt.Errorf("resolve %s: %w", id, ErrAlreadyResolved)
	}
	now := l.now()
	if now.Before(m.deadline) {
		return fmt.Errorf("resolve %s: deadline %s: %w", id, m.deadline, ErrNotYetExpired)
	}

	ev := marketResolvedEvent{
		MarketID:   id,
		Outcome:    outcome,
		FeeBps:     l.cfg.FeeBps,
		ResolvedAt: now,
		MentionID:  mentionID,
	}

	factID, err := l.log.append(evMarketResolved, ev, now)
	if err != nil {
		return err
	}
	s := l.applyMarketResolved(ev)

	l.emit(types.Fact{
		ID:        factID,
		Type:      types.FactMarketResolved,
		MarketID:  id,
		Account:   resolver,
		Amount:    s.Fee,
		Outcome:   outcome,
		Timestamp: now,
	})
	l.logger.Info("market resolved",
		"market", id,
		"outcome", outcome,
		"winners", len(s.Credits),
		"fee", s.Fee,
		"dust", s.Dust,
		"refund", s.Refund,
	)

	return nil
}

// Withdraw zeroes the account's claimable balance and returns the amount to
// transfer. The value transfer itself is the caller's responsibility; the
// ledger does not re-credit if that transfer later fails (see
// ReportTransferFailure).
func (l *Ledger) Withdraw(account, mentionID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Checked before the balance: a re-delivered withdraw must come back as
	// a duplicate, not as ErrNoFunds, or the caller would reply as if the
	// user had asked twice.
	if l.isApplied(mentionID) {
		return decimal.Zero, fmt.Errorf("withdraw %s: mention %s: %w", account, mentionID, ErrDuplicateEvent)
	}
	balance := l.pending[account]
	if balance.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("withdraw %s: %w", account, ErrNoFunds)
	}

	now := l.now()
	ev := withdrawalEvent{Account: account, Amount: balance, At: now, MentionID: mentionID}

	factID, err := l.log.append(evWithdrawal, ev, now)
	if err != nil {
		return decimal.Zero, err
	}
	l.applyWithdrawal(ev)

	l.emit(types.Fact{
		ID:        factID,
		Type:      types.FactWithdrawal,
		Account:   account,
		Amount:    balance,
		Timestamp: now,
	})
	l.logger.Info("withdrawal", "account", account, "amount", balance)

	return balance, nil
}

// ReportTransferFailure flags funds stranded by a value transfer that failed
// after its ledger debit. Known risk of debit-then-transfer: the ledger does
// not re-credit, because the transfer may have partially succeeded. The
// operator has to reconcile by hand.
func (l *Ledger) ReportTransferFailure(account string, amount decimal.Decimal, cause error) {
	l.logger.Error("stranded_funds: transfer failed after ledger debit",
		"account", account,
		"amount", amount,
		"error", cause,
	)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emit(types.Fact{
		Type:      types.FactWithdrawalFailed,
		Account:   account,
		Amount:    amount,
		Timestamp: l.now(),
	})
}

// MarketInfo returns a snapshot of one market.
func (l *Ledger) MarketInfo(id string) (types.MarketInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markets[id]
	if !ok {
		return types.MarketInfo{}, fmt.Errorf("market %s: %w", id, ErrNotFound)
	}
	return m.info(), nil
}

// Markets returns snapshots of all markets in creation order.
func (l *Ledger) Markets() []types.MarketInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.MarketInfo, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.markets[id].info())
	}
	return out
}

// UserBets returns the account's bets on one market, in arrival order.
func (l *Ledger) UserBets(id, account string) ([]types.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", id, ErrNotFound)
	}
	var out []types.Bet
	for _, b := range m.bets {
		if b.Bettor == account {
			out = append(out, b)
		}
	}
	return out, nil
}

// PendingBalance returns the account's claimable balance (zero if none).
func (l *Ledger) PendingBalance(account string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending[account]
}

// PendingBalances returns every non-zero claimable balance, sorted by account.
func (l *Ledger) PendingBalances() map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]decimal.Decimal, len(l.pending))
	for acct, amt := range l.pending {
		if amt.Sign() > 0 {
			out[acct] = amt
		}
	}
	return out
}

// Event application. These are the only functions that mutate the view;
// they run both on live commits and on startup replay, so they never
// consult the clock. Fee basis points travel inside the resolution event
// so a config change cannot rewrite history on replay.

func (l *Ledger) applyMarketCreated(ev marketCreatedEvent) {
	l.markApplied(ev.MentionID)
	l.markets[ev.MarketID] = &market{
		id:         ev.MarketID,
		prediction: ev.Prediction,
		creator:    ev.Creator,
		createdAt:  ev.CreatedAt,
		deadline:   ev.Deadline,
		active:     true,
	}
	l.order = append(l.order, ev.MarketID)
}

func (l *Ledger) applyBetPlaced(ev betPlacedEvent) {
	l.markApplied(ev.MentionID)
	m := l.markets[ev.MarketID]
	m.bets = append(m.bets, types.Bet{
		Bettor:   ev.Bettor,
		Amount:   ev.Amount,
		Position: ev.Position,
		PlacedAt: ev.PlacedAt,
	})
	if ev.Position == types.Agree {
		m.totalAgree = m.totalAgree.Add(ev.Amount)
	} else {
		m.totalDisagree = m.totalDisagree.Add(ev.Amount)
	}
}

func (l *Ledger) applyMarketResolved(ev marketResolvedEvent) payout.Settlement {
	l.markApplied(ev.MentionID)
	m := l.markets[ev.MarketID]
	m.resolved = true
	m.outcome = ev.Outcome

	s := payout.Settle(m.bets, ev.Outcome, ev.FeeBps)
	for acct, credit := range s.Credits {
		l.pending[acct] = l.pending[acct].Add(credit)
	}
	if s.Fee.Sign() > 0 {
		l.pending[l.cfg.PlatformAccount] = l.pending[l.cfg.PlatformAccount].Add(s.Fee)
	}
	return s
}

func (l *Ledger) applyWithdrawal(ev withdrawalEvent) {
	l.markApplied(ev.MentionID)
	delete(l.pending, ev.Account)
}

// Mention dedup. The feed delivers at least once: a transient reply or
// dispatch failure makes the ingestor re-fetch a batch it partly handled, so
// the same mention id can arrive again with full confidence behind it. The
// set lives in the event payloads and is rebuilt on replay; an empty id
// (no feed origin) is never tracked.

func (l *Ledger) isApplied(mentionID string) bool {
	if mentionID == "" {
		return false
	}
	_, ok := l.seen[mentionID]
	return ok
}

func (l *Ledger) markApplied(mentionID string) {
	if mentionID != "" {
		l.seen[mentionID] = struct{}{}
	}
}

// rebuild replays the event log into a fresh view.
func (l *Ledger) rebuild() error {
	return l.log.replay(func(typ string, payload []byte) error {
		switch typ {
		case evMarketCreated:
			var ev marketCreatedEvent
			if err := unmarshalEvent(typ, payload, &ev); err != nil {
				return err
			}
			l.applyMarketCreated(ev)
		case evBetPlaced:
			var ev betPlacedEvent
			if err := unmarshalEvent(typ, payload, &ev); err != nil {
				return err
			}
			l.applyBetPlaced(ev)
		case evMarketResolved:
			var ev marketResolvedEvent
			if err := unmarshalEvent(typ, payload, &ev); err != nil {
				return err
			}
			l.applyMarketResolved(ev)
		case evWithdrawal:
			var ev withdrawalEvent
			if err := unmarshalEvent(typ, payload, &ev); err != nil {
				return err
			}
			l.applyWithdrawal(ev)
		default:
			return fmt.Errorf("replay: unknown event type %q", typ)
		}
		return nil
	})
}

func (l *Ledger) isResolver(account string) bool {
	for _, r := range l.cfg.Resolvers {
		if r == account {
			return true
		}
	}
	return false
}

// emit delivers a fact without ever blocking a ledger operation.
func (l *Ledger) emit(f types.Fact) {
	select {
	case l.facts <- f:
	default:
		l.logger.Warn("fact channel full, dropping fact", "type", f.Type)
	}
}

func (m *market) info() types.MarketInfo {
	return types.MarketInfo{
		ID:            m.id,
		Prediction:    m.prediction,
		Creator:       m.creator,
		Deadline:      m.deadline,
		Active:        m.active,
		Resolved:      m.resolved,
		Outcome:       m.resolvedOutcome(),
		TotalAgree:    m.totalAgree,
		TotalDisagree: m.totalDisagree,
		BetCount:      len(m.bets),
	}
}

func (m *market) resolvedOutcome() types.Position {
	if !m.resolved {
		return ""
	}
	return m.outcome
}
