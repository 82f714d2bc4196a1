// Package payout implements the settlement math for resolved markets.
//
// Settle is a pure function of (bets, outcome, fee rate): it computes each
// winner's proportional, fee-adjusted share of the losing pool, or a full
// refund when nobody backed the winning side. All division happens on
// integers at 18-decimal base units, so the truncation semantics match an
// on-chain integer ledger exactly: the remainder ("dust") is reported, never
// silently reassigned.
package payout

import (
	"math/big"

	"github.com/shopspring/decimal"

	"wagerbot/pkg/types"
)

// baseScale is the number of decimal places amounts are shifted by before
// integer division. 18 matches the wei precision of the settlement asset.
const baseScale = 18

// Settlement is the result of settling one resolved market.
//
// Credits maps account → total claimable amount. Winners appear with
// stake + winnings; in a no-winner wash every bettor appears with exactly
// their stake back. Losing bettors (when winners exist) do not appear.
type Settlement struct {
	Credits map[string]decimal.Decimal
	Fee     decimal.Decimal // platform's cut of the losing pool
	Dust    decimal.Decimal // truncation remainder, assigned to no account
	Refund  bool            // true when winningPool was empty (stakes returned, no fee)
}

// Settle computes payouts for a market resolved to outcome with the given
// fee rate in basis points.
//
// With winners:
//
//	fee          = trunc(losingPool × feeBps / 10000)
//	distributable = losingPool − fee
//	winnings(b)  = trunc(b.stake × distributable / winningPool)
//
// Conservation: Σ credits + fee + dust == total pool. Dust is at most one
// base unit per winning bet.
func Settle(bets []types.Bet, outcome types.Position, feeBps int64) Settlement {
	winningPool := new(big.Int)
	losingPool := new(big.Int)
	for _, b := range bets {
		if b.Position == outcome {
			winningPool.Add(winningPool, toUnits(b.Amount))
		} else {
			losingPool.Add(losingPool, toUnits(b.Amount))
		}
	}

	credits := make(map[string]decimal.Decimal)

	// No-winner market is a wash: every stake comes back, no fee taken.
	if winningPool.Sign() == 0 {
		for _, b := range bets {
			credits[b.Bettor] = credits[b.Bettor].Add(b.Amount)
		}
		return Settlement{
			Credits: credits,
			Fee:     decimal.Zero,
			Dust:    decimal.Zero,
			Refund:  true,
		}
	}

	fee := new(big.Int).Mul(losingPool, big.NewInt(feeBps))
	fee.Quo(fee, big.NewInt(10000))
	distributable := new(big.Int).Sub(losingPool, fee)

	distributed := new(big.Int)
	for _, b := range bets {
		if b.Position != outcome {
			continue
		}
		stake := toUnits(b.Amount)
		winnings := new(big.Int).Mul(stake, distributable)
		winnings.Quo(winnings, winningPool)
		distributed.Add(distributed, winnings)

		credit := fromUnits(new(big.Int).Add(stake, winnings))
		credits[b.Bettor] = credits[b.Bettor].Add(credit)
	}

	dust := new(big.Int).Sub(distributable, distributed)

	return Settlement{
		Credits: credits,
		Fee:     fromUnits(fee),
		Dust:    fromUnits(dust),
	}
}

// toUnits shifts a decimal amount to integer base units, truncating any
// precision beyond baseScale.
func toUnits(d decimal.Decimal) *big.Int {
	return d.Shift(baseScale).Truncate(0).BigInt()
}

func fromUnits(u *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(u, -baseScale)
}
