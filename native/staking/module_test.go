package staking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emergenetwork/darwinia/core/state"
	"github.com/emergenetwork/darwinia/storage"
)

func TestNewRequiresCollaborators(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr, err := state.NewManager(db)
	require.NoError(t, err)

	_, err = New(ModuleConfig{})
	require.Error(t, err)

	_, err = New(ModuleConfig{State: mgr, Ring: newTestCurrency(), Kton: newTestCurrency()})
	require.Error(t, err)

	bad := testParams()
	bad.SessionsPerEra = 0
	_, err = New(ModuleConfig{
		State:   mgr,
		Ring:    newTestCurrency(),
		Kton:    newTestCurrency(),
		Time:    &manualClock{},
		Session: &testSession{},
		Params:  bad,
	})
	require.Error(t, err)
}

func TestNewSeedsStateOnce(t *testing.T) {
	env := newTestEnv(t, testParams(), 500)

	count, err := env.module.validatorCount()
	require.NoError(t, err)
	require.Equal(t, uint32(2), count)

	reward, err := env.module.currentEraTotalReward()
	require.NoError(t, err)
	require.Equal(t, int64(500), reward.Int64())

	fraction, err := env.module.slashRewardFraction()
	require.NoError(t, err)
	require.Equal(t, PerbillFromPercent(10), fraction)

	// Root adjustments survive a later seed pass.
	require.NoError(t, env.module.SetValidatorCount(9))
	require.NoError(t, env.module.seedState())
	count, err = env.module.validatorCount()
	require.NoError(t, err)
	require.Equal(t, uint32(9), count)
}

func TestApplyGenesisBondsAndRegisters(t *testing.T) {
	env := newTestEnv(t, testParams(), 0)
	v1, c1 := addr(1), addr(2)
	v2, c2 := addr(3), addr(4)
	n, cn := addr(5), addr(6)
	env.ring.fund(v1, 1000)
	env.ring.fund(v2, 1000)
	env.ring.fund(n, 500)

	err := env.module.ApplyGenesis([]GenesisStaker{
		{Stash: v1, Controller: c1, Value: big.NewInt(1000), Role: GenesisRoleValidator},
		{Stash: v2, Controller: c2, Value: big.NewInt(1000), Role: GenesisRoleValidator},
		{Stash: n, Controller: cn, Value: big.NewInt(500), Role: GenesisRoleNominator, Targets: [][20]byte{v1, v2}},
	})
	require.NoError(t, err)

	// Genesis bonds carry the 12-month promise: deposits plus kton bonus.
	ledger := env.mustLedger(c1)
	require.Equal(t, int64(1000), ledger.ActiveDepositRing.Int64())
	require.Equal(t, KtonReturn(big.NewInt(1000), 12).String(), env.kton.balanceOf(v1).String())

	validators, err := env.module.validatorStashes()
	require.NoError(t, err)
	require.Len(t, validators, 2)

	winners, err := env.module.SelectInitialValidators()
	require.NoError(t, err)
	require.Len(t, winners, 2)

	stash, ok, err := env.module.StashOf(cn)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, n, stash)
}

func TestApplyGenesisUnderfundedStash(t *testing.T) {
	env := newTestEnv(t, testParams(), 0)
	err := env.module.ApplyGenesis([]GenesisStaker{
		{Stash: addr(1), Controller: addr(2), Value: big.NewInt(10), Role: GenesisRoleValidator},
	})
	require.Error(t, err)
}

func TestCapScheduleReleasesRemainingSupply(t *testing.T) {
	ring := newTestCurrency()
	ring.fund(addr(1), 4_000)

	schedule := capSchedule{ring: ring, cap: big.NewInt(1_004_000), erasPerEpoch: 10}
	// 1% of the 1,000,000 remaining, split across ten eras.
	require.Equal(t, int64(1_000), schedule.EraTotalReward(0).Int64())

	exhausted := capSchedule{ring: ring, cap: big.NewInt(1_000), erasPerEpoch: 10}
	require.Equal(t, int64(0), exhausted.EraTotalReward(0).Int64())
}

func TestPerbillArithmetic(t *testing.T) {
	require.Equal(t, Perbill(PerbillDenom), PerbillFromPercent(100))
	require.Equal(t, Perbill(PerbillDenom), PerbillFromPercent(250), "saturates")
	require.Equal(t, Perbill(500_000_000), PerbillFromPercent(50))

	half := PerbillFromRational(big.NewInt(1), big.NewInt(2))
	require.Equal(t, Perbill(500_000_000), half)
	require.Equal(t, int64(50), half.Mul(big.NewInt(100)).Int64())

	require.Equal(t, Perbill(PerbillDenom), PerbillFromRational(big.NewInt(7), big.NewInt(3)), "clamps above one")
	require.True(t, PerbillFromRational(big.NewInt(1), big.NewInt(0)).IsZero())
	require.Equal(t, int64(0), Perbill(0).Mul(big.NewInt(12345)).Int64())

	// Floor rounding, never up.
	third := PerbillFromRational(big.NewInt(1), big.NewInt(3))
	require.Equal(t, int64(33), third.Mul(big.NewInt(100)).Int64())
}
