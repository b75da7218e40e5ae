package staking

import "math/big"

// PerbillDenom is the fixed parts-per-billion denominator used for every
// ratio multiplication on consensus paths. Floating point is forbidden here.
const PerbillDenom = 1_000_000_000

var perbillDenomBig = big.NewInt(PerbillDenom)

// Perbill is an integer fraction in [0, 1] expressed in parts per billion.
type Perbill uint32

// PerbillFromParts clamps parts to the denominator and returns the fraction.
func PerbillFromParts(parts uint32) Perbill {
	if parts > PerbillDenom {
		parts = PerbillDenom
	}
	return Perbill(parts)
}

// PerbillFromPercent converts a percentage, saturating at 100%.
func PerbillFromPercent(percent uint32) Perbill {
	if percent > 100 {
		percent = 100
	}
	return Perbill(percent * (PerbillDenom / 100))
}

// PerbillFromRational approximates num/den in parts per billion, rounding
// down. A zero or negative denominator yields zero.
func PerbillFromRational(num, den *big.Int) Perbill {
	if num == nil || den == nil || num.Sign() <= 0 || den.Sign() <= 0 {
		return 0
	}
	if num.Cmp(den) >= 0 {
		return PerbillDenom
	}
	parts := new(big.Int).Mul(num, perbillDenomBig)
	parts.Quo(parts, den)
	return Perbill(parts.Uint64())
}

// Mul applies the fraction to value, rounding down. The result is a fresh
// big.Int; value is never mutated.
func (p Perbill) Mul(value *big.Int) *big.Int {
	if value == nil || value.Sign() == 0 || p == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(value, big.NewInt(int64(p)))
	return out.Quo(out, perbillDenomBig)
}

// Parts exposes the raw parts-per-billion value.
func (p Perbill) Parts() uint32 { return uint32(p) }

// IsZero reports whether the fraction is exactly zero.
func (p Perbill) IsZero() bool { return p == 0 }
