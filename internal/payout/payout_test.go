package payout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wagerbot/pkg/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func bet(bettor, amount string, pos types.Position) types.Bet {
	return types.Bet{Bettor: bettor, Amount: dec(amount), Position: pos}
}

func TestSettleProportionalWithFee(t *testing.T) {
	t.Parallel()
	bets := []types.Bet{
		bet("alice", "0.1", types.Agree),
		bet("bob", "0.05", types.Disagree),
	}

	s := Settle(bets, types.Agree, 200)

	require.False(t, s.Refund)
	// losingPool=0.05, fee=0.001, distributable=0.049
	// alice: 0.1 + 0.1*0.049/0.1 = 0.149
	assert.Equal(t, "0.149", s.Credits["alice"].String())
	assert.Equal(t, "0.001", s.Fee.String())
	assert.True(t, s.Dust.IsZero(), "dust = %s", s.Dust)
	_, lost := s.Credits["bob"]
	assert.False(t, lost, "losing bettor must not be credited")
}

func TestSettleNoWinnerRefundsStakes(t *testing.T) {
	t.Parallel()
	bets := []types.Bet{bet("alice", "0.1", types.Agree)}

	s := Settle(bets, types.Disagree, 200)

	require.True(t, s.Refund)
	assert.Equal(t, "0.1", s.Credits["alice"].String())
	assert.True(t, s.Fee.IsZero(), "no fee on a wash")
}

func TestSettleNoBets(t *testing.T) {
	t.Parallel()
	s := Settle(nil, types.Agree, 200)
	require.True(t, s.Refund)
	assert.Empty(t, s.Credits)
}

func TestSettleAccumulatesPerAccount(t *testing.T) {
	t.Parallel()
	bets := []types.Bet{
		bet("alice", "0.1", types.Agree),
		bet("alice", "0.1", types.Agree),
		bet("bob", "0.1", types.Disagree),
	}

	s := Settle(bets, types.Agree, 0)

	// distributable=0.1 split evenly over alice's two equal stakes
	assert.Equal(t, "0.3", s.Credits["alice"].String())
	assert.True(t, s.Dust.IsZero())
}

func TestSettleDustFromTruncation(t *testing.T) {
	t.Parallel()
	bets := []types.Bet{
		bet("alice", "0.1", types.Agree),
		bet("bob", "0.2", types.Agree),
		bet("carol", "0.1", types.Disagree),
	}

	s := Settle(bets, types.Agree, 0)

	// 0.1 distributed over a 0.3 winning pool does not divide evenly at
	// 18 decimals; exactly one base unit is left over.
	assert.Equal(t, "0.000000000000000001", s.Dust.String())

	total := s.Fee.Add(s.Dust)
	for _, c := range s.Credits {
		total = total.Add(c)
	}
	assert.Equal(t, "0.4", total.String(), "credits + fee + dust must equal the pool")
}

func TestSettleConservation(t *testing.T) {
	t.Parallel()
	bets := []types.Bet{
		bet("alice", "0.123", types.Agree),
		bet("bob", "0.077", types.Agree),
		bet("carol", "0.31", types.Disagree),
		bet("dave", "0.09", types.Disagree),
	}

	s := Settle(bets, types.Disagree, 250)

	pool := dec("0.6")
	total := s.Fee.Add(s.Dust)
	for _, c := range s.Credits {
		total = total.Add(c)
	}
	assert.Equal(t, pool.String(), total.String())
	// fee = trunc(0.2 * 250 / 10000) = 0.005
	assert.Equal(t, "0.005", s.Fee.String())
}

func TestSettleIsPure(t *testing.T) {
	t.Parallel()
	bets := []types.Bet{
		bet("alice", "0.1", types.Agree),
		bet("bob", "0.05", types.Disagree),
	}

	first := Settle(bets, types.Agree, 200)
	second := Settle(bets, types.Agree, 200)

	assert.Equal(t, first.Fee.String(), second.Fee.String())
	assert.Equal(t, first.Credits["alice"].String(), second.Credits["alice"].String())
	// input slice untouched
	assert.Equal(t, "0.1", bets[0].Amount.String())
}
