// responses.go formats every reply the bot posts. All replies are plain
// text; nothing here may include internal error detail beyond the mapped
// user-facing messages.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"wagerbot/internal/ledger"
	"wagerbot/pkg/types"
)

const deadlineFormat = "2006-01-02 15:04 UTC"

func replyBetPlaced(intent BetIntent, info types.MarketInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bet recorded: %s ETH on %s.", intent.Amount, positionWord(intent.Position))
	if info.ID != "" {
		fmt.Fprintf(&b, " Pool is now %s ETH agree vs %s ETH disagree (%d bets). Betting closes %s.",
			info.TotalAgree, info.TotalDisagree, info.BetCount, info.Deadline.UTC().Format(deadlineFormat))
	}
	return b.String()
}

func replyMarketCreated(info types.MarketInfo) string {
	return fmt.Sprintf("Market open: %q. Bet with e.g. \"bet 0.1 eth yes\". Betting closes %s.",
		trimPrediction(info.Prediction), info.Deadline.UTC().Format(deadlineFormat))
}

func replyMarketExists(info types.MarketInfo) string {
	return fmt.Sprintf("This thread already has a market: %q. Betting closes %s.",
		trimPrediction(info.Prediction), info.Deadline.UTC().Format(deadlineFormat))
}

func replyResolved(outcome types.Position, info types.MarketInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market resolved: %s.", positionWord(outcome))
	if info.ID != "" {
		fmt.Fprintf(&b, " Final pool: %s ETH agree vs %s ETH disagree. Winners can reply \"withdraw\" to claim.",
			info.TotalAgree, info.TotalDisagree)
	}
	return b.String()
}

func replyWithdrawal(amount decimal.Decimal) string {
	return fmt.Sprintf("Withdrawal of %s ETH is on its way.", amount)
}

func replyWithdrawalFailed() string {
	return "Your withdrawal was recorded but the transfer didn't go through. We've flagged it and will sort it out — no need to retry."
}

func replyStatus(info types.MarketInfo, bets []types.Bet, pending decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q — %s ETH agree vs %s ETH disagree (%d bets).",
		trimPrediction(info.Prediction), info.TotalAgree, info.TotalDisagree, info.BetCount)
	if info.Resolved {
		fmt.Fprintf(&b, " Resolved: %s.", positionWord(info.Outcome))
	} else {
		fmt.Fprintf(&b, " Betting closes %s.", info.Deadline.UTC().Format(deadlineFormat))
	}
	if len(bets) > 0 {
		total := decimal.Zero
		for _, bet := range bets {
			total = total.Add(bet.Amount)
		}
		fmt.Fprintf(&b, " You have %d bet(s) totalling %s ETH.", len(bets), total)
	}
	if pending.Sign() > 0 {
		fmt.Fprintf(&b, " Claimable balance: %s ETH.", pending)
	}
	return b.String()
}

func replyHelp() string {
	return strings.Join([]string{
		"I turn this thread into a prediction market. Commands:",
		"\"bet 0.1 eth yes\" / \"bet 0.1 eth no\" — wager on the root post,",
		"\"status\" — pools and your bets,",
		"\"withdraw\" — claim winnings,",
		"\"create market\" — open a market without betting.",
	}, " ")
}

func replyUnknown() string {
	return "Not sure what you mean — reply \"help\" for the list of commands."
}

func replyResolveUsage() string {
	return "To settle, say \"resolve yes\" or \"resolve no\"."
}

func replyParseFailure(err error) string {
	switch {
	case errors.Is(err, ErrAmountMissing):
		return "I couldn't find a bet amount. Try \"bet 0.1 eth yes\"."
	case errors.Is(err, ErrAmountOutOfRange):
		return "That amount is outside the allowed bet range."
	case errors.Is(err, ErrPositionUnclear):
		return "I couldn't tell which side you're on — include \"yes\" or \"no\"."
	default:
		return "I couldn't read that bet. Try \"bet 0.1 eth yes\"."
	}
}

func replyUserError(err error) string {
	switch {
	case errors.Is(err, ledger.ErrAlreadyExists):
		return "This thread already has a market."
	case errors.Is(err, ledger.ErrInvalidPrediction):
		return "The root post is empty, so there's nothing to predict."
	case errors.Is(err, ledger.ErrInvalidDuration):
		return "Market duration must be between 1 and 365 days."
	case errors.Is(err, ledger.ErrNotFound):
		return "No market exists in this thread yet — place a bet or say \"create market\"."
	case errors.Is(err, ledger.ErrInactive):
		return "This market is closed."
	case errors.Is(err, ledger.ErrResolved), errors.Is(err, ledger.ErrAlreadyResolved):
		return "This market has already been resolved."
	case errors.Is(err, ledger.ErrExpired):
		return "Betting has closed for this market."
	case errors.Is(err, ledger.ErrAmountOutOfRange):
		return "That amount is outside the allowed bet range."
	case errors.Is(err, ledger.ErrNotYetExpired):
		return "This market can't be resolved before its deadline."
	case errors.Is(err, ledger.ErrNotAuthorized):
		return "Only an authorized resolver can settle a market."
	case errors.Is(err, ledger.ErrNoFunds):
		return "You have no claimable balance."
	default:
		return replyBackendFailure()
	}
}

func replyBackendFailure() string {
	return "Something went wrong on our side and your command was not applied. Please try again shortly."
}

func trimPrediction(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 120 {
		return text[:117] + "..."
	}
	return text
}
