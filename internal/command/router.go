// router.go classifies inbound mentions into intents and drives the ledger.
//
// Classification is an ordered list of predicate → intent rules evaluated
// strictly top to bottom; the order is part of the contract. A post that
// says "bet 1 eth yes, what's the status?" is a bet, never a status query.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wagerbot/internal/ledger"
	"wagerbot/pkg/types"
)

// Intent is the classified meaning of one mention.
type Intent string

const (
	IntentBet      Intent = "bet"
	IntentCreate   Intent = "create"
	IntentResolve  Intent = "resolve"
	IntentWithdraw Intent = "withdraw"
	IntentStatus   Intent = "status"
	IntentHelp     Intent = "help"
	IntentUnknown  Intent = "unknown"
)

// Ledger is the subset of settlement operations the router drives. Mutating
// operations take the mention event id so the ledger can refuse re-delivered
// mentions; an empty id opts out of dedup.
type Ledger interface {
	CreateMarket(id, prediction, creator string, durationDays int, mentionID string) (types.MarketInfo, error)
	PlaceBet(id, bettor string, position types.Position, amount decimal.Decimal, mentionID string) error
	Resolve(id, resolver string, outcome types.Position, mentionID string) error
	Withdraw(account, mentionID string) (decimal.Decimal, error)
	ReportTransferFailure(account string, amount decimal.Decimal, cause error)
	MarketInfo(id string) (types.MarketInfo, error)
	UserBets(id, account string) ([]types.Bet, error)
	PendingBalance(account string) decimal.Decimal
}

// Payer moves real value to an account after the ledger has debited it.
type Payer interface {
	Transfer(ctx context.Context, account string, amount decimal.Decimal) error
}

// RootFetcher resolves the text of a thread's root post, used to derive the
// prediction when a bet arrives before its market exists.
type RootFetcher interface {
	Root(ctx context.Context, threadRootID string) (string, error)
}

// transferTimeout bounds the value transfer on a withdrawal; the reply must
// go out even when the RPC endpoint hangs.
const transferTimeout = 30 * time.Second

// Router turns classified mentions into ledger calls and reply text.
type Router struct {
	parser       *Parser
	ledger       Ledger
	roots        RootFetcher
	payer        Payer
	durationDays int // default market duration for auto-created markets
	logger       *slog.Logger
}

func NewRouter(parser *Parser, l Ledger, roots RootFetcher, payer Payer, durationDays int, logger *slog.Logger) *Router {
	return &Router{
		parser:       parser,
		ledger:       l,
		roots:        roots,
		payer:        payer,
		durationDays: durationDays,
		logger:       logger.With("component", "router"),
	}
}

// Intent keyword predicates. Evaluated in Classify's fixed order.
var (
	betPattern      = regexp.MustCompile(`(?i)\b(?:bet|betting|wager|stake)\b`)
	createPattern   = regexp.MustCompile(`(?i)\b(?:create|open|start|make)\b.{0,20}\bmarket\b`)
	resolvePattern  = regexp.MustCompile(`(?i)\bresolve\b`)
	withdrawPattern = regexp.MustCompile(`(?i)\b(?:withdraw|claim|cash\s*out)\b`)
	statusPattern   = regexp.MustCompile(`(?i)\b(?:status|odds|pool|pools|info)\b`)
	helpPattern     = regexp.MustCompile(`(?i)\b(?:help|commands|how)\b`)
)

// Classify maps mention text to an intent. First match wins.
func Classify(text string) Intent {
	switch {
	case betPattern.MatchString(text):
		return IntentBet
	case createPattern.MatchString(text):
		return IntentCreate
	case resolvePattern.MatchString(text):
		return IntentResolve
	case withdrawPattern.MatchString(text):
		return IntentWithdraw
	case statusPattern.MatchString(text):
		return IntentStatus
	case helpPattern.MatchString(text):
		return IntentHelp
	default:
		return IntentUnknown
	}
}

// Handle processes one mention and returns the reply to post. Ledger
// validation and state failures become human-readable replies; only
// infrastructure failures (rate limit, feed errors, ledger write failures)
// come back as errors for the ingestor to handle.
func (r *Router) Handle(ctx context.Context, ev types.MentionEvent) (string, error) {
	account := types.NormalizeAccount(ev.AuthorID)
	marketID := types.MarketID(ev.ThreadRootID)
	intent := Classify(ev.Text)

	r.logger.Debug("handling mention", "event", ev.ID, "intent", intent, "market", marketID)

	switch intent {
	case IntentBet:
		return r.handleBet(ctx, ev, account, marketID)
	case IntentCreate:
		return r.handleCreate(ctx, ev, account, marketID)
	case IntentResolve:
		return r.handleResolve(ev, account, marketID)
	case IntentWithdraw:
		return r.handleWithdraw(ctx, ev, account)
	case IntentStatus:
		return r.handleStatus(account, marketID)
	case IntentHelp:
		return replyHelp(), nil
	default:
		return replyUnknown(), nil
	}
}

func (r *Router) handleBet(ctx context.Context, ev types.MentionEvent, account, marketID string) (string, error) {
	intent, err := r.parser.ParseBet(ev.Text)
	if err != nil {
		return replyParseFailure(err), nil
	}

	// Auto-create the market if this is the first command in the thread.
	// AlreadyExists is success here: a duplicate delivery (or a race with
	// another bettor's bet) must not fail the bet.
	if _, err := r.ledger.MarketInfo(marketID); errors.Is(err, ledger.ErrNotFound) {
		reply, err := r.ensureMarket(ctx, ev, account, marketID)
		if err != nil {
			return "", err
		}
		if reply != "" {
			return reply, nil
		}
	}

	if err := r.ledger.PlaceBet(marketID, account, intent.Position, intent.Amount, ev.ID); err != nil {
		return r.replyForLedgerError("bet", err)
	}

	info, err := r.ledger.MarketInfo(marketID)
	if err != nil {
		// Bet committed; a snapshot miss only degrades the reply.
		r.logger.Warn("snapshot after bet failed", "market", marketID, "error", err)
		return replyBetPlaced(intent, types.MarketInfo{}), nil
	}
	return replyBetPlaced(intent, info), nil
}

// ensureMarket creates the thread's market from its root post. Returns a
// non-empty reply when creation failed in a user-facing way, or an error for
// infrastructure failures the caller must propagate.
func (r *Router) ensureMarket(ctx context.Context, ev types.MentionEvent, account, marketID string) (string, error) {
	rootText, err := r.roots.Root(ctx, ev.ThreadRootID)
	if err != nil {
		return "", fmt.Errorf("fetch thread root %s: %w", ev.ThreadRootID, err)
	}

	// The bet carries the mention id; the auto-create does not, so a
	// redelivery of the same mention trips dedup on PlaceBet rather than
	// stumbling over its own market here.
	_, err = r.ledger.CreateMarket(marketID, rootText, account, r.durationDays, "")
	if err != nil && !errors.Is(err, ledger.ErrAlreadyExists) {
		return r.replyForLedgerError("create", err)
	}
	return "", nil
}

func (r *Router) handleCreate(ctx context.Context, ev types.MentionEvent, account, marketID string) (string, error) {
	rootText, err := r.roots.Root(ctx, ev.ThreadRootID)
	if err != nil {
		return "", fmt.Errorf("fetch thread root %s: %w", ev.ThreadRootID, err)
	}

	info, err := r.ledger.CreateMarket(marketID, rootText, account, r.durationDays, ev.ID)
	if errors.Is(err, ledger.ErrAlreadyExists) {
		// Idempotent: duplicate delivery of a create is a success.
		info, err = r.ledger.MarketInfo(marketID)
		if err != nil {
			return r.replyForLedgerError("create", err)
		}
		return replyMarketExists(info), nil
	}
	if err != nil {
		return r.replyForLedgerError("create", err)
	}
	return replyMarketCreated(info), nil
}

func (r *Router) handleResolve(ev types.MentionEvent, account, marketID string) (string, error) {
	outcome, ok := parseOutcome(ev.Text)
	if !ok {
		return replyResolveUsage(), nil
	}
	if err := r.ledger.Resolve(marketID, account, outcome, ev.ID); err != nil {
		return r.replyForLedgerError("resolve", err)
	}
	info, err := r.ledger.MarketInfo(marketID)
	if err != nil {
		r.logger.Warn("snapshot after resolve failed", "market", marketID, "error", err)
		return replyResolved(outcome, types.MarketInfo{}), nil
	}
	return replyResolved(outcome, info), nil
}

// handleWithdraw debits the claimable balance and immediately executes the
// value transfer, in that order, on this call path. Running the transfer here
// rather than off an async stream means a debited balance always gets its
// transfer attempted; if the transfer fails the stranded funds are flagged
// and the user is told, never silently swallowed.
func (r *Router) handleWithdraw(ctx context.Context, ev types.MentionEvent, account string) (string, error) {
	amount, err := r.ledger.Withdraw(account, ev.ID)
	if err != nil {
		return r.replyForLedgerError("withdraw", err)
	}

	tctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()
	if err := r.payer.Transfer(tctx, account, amount); err != nil {
		r.ledger.ReportTransferFailure(account, amount, err)
		return replyWithdrawalFailed(), nil
	}
	return replyWithdrawal(amount), nil
}

func (r *Router) handleStatus(account, marketID string) (string, error) {
	info, err := r.ledger.MarketInfo(marketID)
	if err != nil {
		return r.replyForLedgerError("status", err)
	}
	bets, err := r.ledger.UserBets(marketID, account)
	if err != nil {
		bets = nil
	}
	pending := r.ledger.PendingBalance(account)
	return replyStatus(info, bets, pending), nil
}

// replyForLedgerError maps a ledger failure to a reply. Validation and state
// errors are echoed in friendly form; anything else is a backend failure and
// logged with its cause, reported generically, never leaked verbatim.
func (r *Router) replyForLedgerError(op string, err error) (string, error) {
	if errors.Is(err, ledger.ErrDuplicateEvent) {
		// Re-delivered mention: the effects already stand and the reply
		// already went out once. Answering again would double-post.
		r.logger.Debug("duplicate mention ignored", "op", op)
		return "", nil
	}
	if ledger.IsUserFacing(err) {
		return replyUserError(err), nil
	}
	r.logger.Error("ledger call failed", "op", op, "error", err)
	return replyBackendFailure(), nil
}

// parseOutcome extracts the resolution side from a resolve command.
func parseOutcome(text string) (types.Position, bool) {
	switch {
	case agreePattern.MatchString(text):
		return types.Agree, true
	case disagreePattern.MatchString(text):
		return types.Disagree, true
	default:
		return "", false
	}
}

// short lowercase alias used by replies
func positionWord(p types.Position) string {
	return strings.ToLower(string(p))
}
