package command

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wagerbot/pkg/types"
)

func newTestParser() *Parser {
	return NewParser(decimal.RequireFromString("0.001"), decimal.RequireFromString("10"))
}

func TestParseBet(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	tests := []struct {
		name     string
		text     string
		amount   string
		position types.Position
		wantErr  error
	}{
		{
			name:     "amount then unit",
			text:     "I bet 0.1 ETH that this is true",
			amount:   "0.1",
			position: types.Agree,
		},
		{
			name:     "unit then amount",
			text:     "betting eth 0.5, no way this happens",
			amount:   "0.5",
			position: types.Disagree,
		},
		{
			name:     "ether spelling, no space",
			text:     "0.25ether says you're wrong",
			amount:   "0.25",
			position: types.Disagree,
		},
		{
			name:     "first amount wins",
			text:     "1 ETH yes, or maybe 2 ETH",
			amount:   "1",
			position: types.Agree,
		},
		{
			name:    "no amount",
			text:    "I bet this is true",
			wantErr: ErrAmountMissing,
		},
		{
			name:    "number without unit",
			text:    "I bet 100 that this is true",
			wantErr: ErrAmountMissing,
		},
		{
			name:    "below minimum",
			text:    "0.0001 eth yes",
			wantErr: ErrAmountOutOfRange,
		},
		{
			name:    "above maximum",
			text:    "100 eth yes",
			wantErr: ErrAmountOutOfRange,
		},
		{
			name:    "no position",
			text:    "0.1 eth on this",
			wantErr: ErrPositionUnclear,
		},
		{
			name:     "agree wins when both present",
			text:     "0.1 eth yes, this is not wrong",
			amount:   "0.1",
			position: types.Agree,
		},
		{
			name:    "amount missing reported before unclear position",
			text:    "I bet on this",
			wantErr: ErrAmountMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.ParseBet(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, got.Amount.String())
			assert.Equal(t, tt.position, got.Position)
		})
	}
}

func TestParseBetCaseInsensitive(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	lower, err := p.ParseBet("i bet 0.1 eth that this is true")
	require.NoError(t, err)
	upper, err := p.ParseBet("I BET 0.1 ETH THAT THIS IS TRUE")
	require.NoError(t, err)

	assert.Equal(t, lower, upper)
}

func TestParseBetDeterministic(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	const text = "0.3 ether, I doubt it"
	first, err := p.ParseBet(text)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := p.ParseBet(text)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestParseBetWordBoundaries(t *testing.T) {
	t.Parallel()
	p := newTestParser()

	// "know" must not register as "no", "right-o" inside other words etc.
	_, err := p.ParseBet("0.1 eth, I know nothing")
	assert.ErrorIs(t, err, ErrPositionUnclear)
}
