// Package flow holds the pure arithmetic of the flow economy: the
// balance-ratio multiplier and the fee skim. Everything here is
// integer-exact; multipliers are expressed in hundredths (150 == 1.50x)
// and fees in basis points (200 == 2%).
package flow

import "sort"

// Bracket maps a minimum sender/recipient balance ratio to a bonus
// multiplier in hundredths. A bracket with MinRatio 0 is the catch-all
// for any transfer where the sender is richer than the recipient.
type Bracket struct {
	MinRatio   int64 `toml:"min_ratio"`
	Multiplier int64 `toml:"multiplier"`
}

// DefaultBrackets is the step function shipped with the engine:
//
//	ratio >= 10        -> 1.50
//	5 <= ratio < 10    -> 1.30
//	2 <= ratio < 5     -> 1.15
//	ratio < 2          -> 1.05
//
// Ties break toward the higher bracket (>=, not >).
func DefaultBrackets() []Bracket {
	return []Bracket{
		{MinRatio: 10, Multiplier: 150},
		{MinRatio: 5, Multiplier: 130},
		{MinRatio: 2, Multiplier: 115},
		{MinRatio: 0, Multiplier: 105},
	}
}

// Calculator evaluates the flow multiplier for a transfer. It is pure
// and safe for concurrent use.
type Calculator struct {
	brackets []Bracket
}

func NewCalculator(brackets []Bracket) *Calculator {
	bs := make([]Bracket, len(brackets))
	copy(bs, brackets)
	sort.Slice(bs, func(i, j int) bool { return bs[i].MinRatio > bs[j].MinRatio })
	return &Calculator{brackets: bs}
}

// Multiplier returns the bonus multiplier in hundredths for a transfer
// from senderBalance to recipientBalance. A recipient at least as rich
// as the sender gets no bonus (100). The ratio divisor is clamped to 1
// so a zero-balance recipient lands in the top bracket.
func (c *Calculator) Multiplier(senderBalance, recipientBalance int64) int64 {
	if recipientBalance >= senderBalance {
		return 100
	}
	divisor := recipientBalance
	if divisor < 1 {
		divisor = 1
	}
	for _, b := range c.brackets {
		// senderBalance/divisor >= MinRatio, without integer-division loss.
		if senderBalance >= b.MinRatio*divisor {
			return b.Multiplier
		}
	}
	return 100
}

// Credited is the amount the recipient actually receives:
// floor(base * multiplier). The sender is still debited exactly base;
// the difference is minted.
func Credited(base, multiplier int64) int64 {
	return base * multiplier / 100
}

// Skim is the pool contribution taken from the base amount:
// floor(base * feeBps / 10000).
func Skim(base, feeBps int64) int64 {
	return base * feeBps / 10000
}
