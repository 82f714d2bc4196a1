// Package command turns free-form mention text into ledger operations.
//
// parser.go extracts a structured bet intent (amount + position) from raw
// post text. Parsing is deterministic and side-effect-free: the same text
// always yields the same result, independent of letter case or surrounding
// words.
package command

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"wagerbot/pkg/types"
)

// Parse failures. All of these are user-facing validation errors.
var (
	ErrAmountMissing    = errors.New("no bet amount found")
	ErrAmountOutOfRange = errors.New("bet amount out of range")
	ErrPositionUnclear  = errors.New("could not tell agree from disagree")
)

// amountPattern matches a decimal number adjacent to the currency unit in
// either order: "0.1 ETH", "0.1ether", "eth 0.5". The first match in the
// text wins.
var amountPattern = regexp.MustCompile(`(?i)(?:\b(\d+(?:\.\d+)?)\s*(?:eth|ether)\b|\beth(?:er)?\s*(\d+(?:\.\d+)?)\b)`)

// Position vocabularies. The agree set is scanned first: when a post
// contains words from both sets ("yes, this is not wrong"), agree wins.
// That tie-break is a contract, not an accident: callers and tests rely
// on it.
var (
	agreePattern    = regexp.MustCompile(`(?i)\b(?:agree|yes|true|correct|right)\b`)
	disagreePattern = regexp.MustCompile(`(?i)\b(?:disagree|no|false|wrong|won'?t|doubt)\b`)
)

// BetIntent is a successfully parsed wager.
type BetIntent struct {
	Amount   decimal.Decimal
	Position types.Position
}

// Parser extracts bet intents within configured stake bounds.
type Parser struct {
	minBet decimal.Decimal
	maxBet decimal.Decimal
}

func NewParser(minBet, maxBet decimal.Decimal) *Parser {
	return &Parser{minBet: minBet, maxBet: maxBet}
}

// ParseBet extracts amount and position from text.
//
// Order matters: amount extraction, then bounds, then position. A post with
// no amount reports ErrAmountMissing even if its position is also unclear.
func (p *Parser) ParseBet(text string) (BetIntent, error) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return BetIntent{}, ErrAmountMissing
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		// Unreachable while the pattern only admits digits and one dot,
		// but a regex edit must not turn into a panic downstream.
		return BetIntent{}, ErrAmountMissing
	}

	if amount.LessThan(p.minBet) || amount.GreaterThan(p.maxBet) {
		return BetIntent{}, fmt.Errorf("amount %s not in [%s, %s]: %w", amount, p.minBet, p.maxBet, ErrAmountOutOfRange)
	}

	var position types.Position
	switch {
	case agreePattern.MatchString(text):
		position = types.Agree
	case disagreePattern.MatchString(text):
		position = types.Disagree
	default:
		return BetIntent{}, ErrPositionUnclear
	}

	return BetIntent{Amount: amount, Position: position}, nil
}
