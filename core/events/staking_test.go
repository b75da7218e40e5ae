package events

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStakingEventTypes(t *testing.T) {
	require.Equal(t, TypeStakingReward, StakingReward{}.EventType())
	require.Equal(t, TypeStakingOfflineWarning, StakingOfflineWarning{}.EventType())
	require.Equal(t, TypeStakingOfflineSlash, StakingOfflineSlash{}.EventType())
	require.Equal(t, TypeStakingNodeNameUpdated, StakingNodeNameUpdated{}.EventType())
	require.Equal(t, TypeStakingOldReportDiscarded, StakingOldReportDiscarded{}.EventType())
}

func TestStakingRewardAttributes(t *testing.T) {
	attrs := StakingReward{Amount: big.NewInt(1234)}.Attributes()
	require.Equal(t, "1234", attrs["amount"])

	attrs = StakingReward{}.Attributes()
	require.Equal(t, "0", attrs["amount"], "nil amounts render as zero")
}

func TestStakingOldReportDiscardedAttributes(t *testing.T) {
	attrs := StakingOldReportDiscarded{SessionIndex: 7}.Attributes()
	require.Equal(t, "7", attrs["sessionIndex"])
}

func TestNoopEmitter(t *testing.T) {
	var emitter Emitter = NoopEmitter{}
	emitter.Emit(StakingReward{Amount: big.NewInt(1)})
}
