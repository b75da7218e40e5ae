package staking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHalfPower(t *testing.T) {
	require.Equal(t, int64(halfPowerCount), halfPower(big.NewInt(100), big.NewInt(100)).Int64())
	require.Equal(t, int64(halfPowerCount/2), halfPower(big.NewInt(50), big.NewInt(100)).Int64())
	require.Equal(t, int64(0), halfPower(big.NewInt(0), big.NewInt(100)).Int64())
	require.Equal(t, int64(0), halfPower(nil, big.NewInt(100)).Int64())

	// An empty pool divides by one, not zero.
	scaled := new(big.Int).Mul(big.NewInt(7), halfPowerCountBig)
	require.Equal(t, scaled.String(), halfPower(big.NewInt(7), big.NewInt(0)).String())
}

func TestPowerOfSplitsAcrossPools(t *testing.T) {
	env := newTestEnv(t, testParams(), 0)
	stashA, controllerA := addr(1), addr(2)
	stashB, controllerB := addr(3), addr(4)

	env.bondRing(stashA, controllerA, 100, 0)
	env.bondRing(stashB, controllerB, 300, 0)

	// A holds a quarter of the ring pool and no kton.
	powerA := env.module.PowerOf(stashA)
	require.Equal(t, int64(halfPowerCount/4), powerA.Int64())
	powerB := env.module.PowerOf(stashB)
	require.Equal(t, int64(halfPowerCount*3/4), powerB.Int64())
}

func TestPowerOfIncludesKton(t *testing.T) {
	env := newTestEnv(t, testParams(), 0)
	stash, controller := addr(1), addr(2)

	env.bondRing(stash, controller, 100, 0)
	env.kton.fund(stash, 40)
	require.NoError(t, env.module.BondExtra(stash, KtonBalance(big.NewInt(40)), 0))

	// Sole staker in both pools: the full billion.
	require.Equal(t, int64(2*halfPowerCount), env.module.PowerOf(stash).Int64())
}

func TestPowerOfUnknownStashIsZero(t *testing.T) {
	env := newTestEnv(t, testParams(), 0)
	require.Equal(t, int64(0), env.module.PowerOf(addr(9)).Int64())
}
