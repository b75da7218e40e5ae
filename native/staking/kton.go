package staking

import "math/big"

var (
	ktonNumBase = big.NewInt(67)
	ktonDenBase = big.NewInt(66)
	ktonScale   = big.NewInt(1000)
	ktonDivisor = big.NewInt(1970)
)

// KtonReturn computes the kton minted for locking value ring over the given
// number of months:
//
//	value * ((67/66)^months - 1) * 1000 / 1970
//
// evaluated entirely in integer arithmetic so every node derives the same
// result. Zero months (no promise) yields zero; the function is monotonic in
// both arguments. The same formula prices the early-unlock penalty.
func KtonReturn(value *big.Int, months uint64) *big.Int {
	if value == nil || value.Sign() <= 0 || months == 0 {
		return big.NewInt(0)
	}

	exp := new(big.Int).SetUint64(months)
	num := new(big.Int).Exp(ktonNumBase, exp, nil)
	den := new(big.Int).Exp(ktonDenBase, exp, nil)

	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))

	// 1000 * (num/den - 1), with the fractional part kept at the same scale.
	scaled := new(big.Int).Sub(quo, big.NewInt(1))
	scaled.Mul(scaled, ktonScale)
	frac := new(big.Int).Mul(rem, ktonScale)
	frac.Quo(frac, den)
	scaled.Add(scaled, frac)

	out := new(big.Int).Mul(value, scaled)
	return out.Quo(out, ktonDivisor)
}
