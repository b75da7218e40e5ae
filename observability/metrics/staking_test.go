package metrics

import "testing"

func TestStakingMetricsSingleton(t *testing.T) {
	first := Staking()
	second := Staking()
	if first != second {
		t.Fatal("Staking() must return the shared registry")
	}
}

func TestStakingMetricsSetters(t *testing.T) {
	m := Staking()
	m.SetCurrentEra(3)
	m.SetEpochIndex(1)
	m.SetElectedCount(7)
	m.SetSlotStake(1234)
	m.SetPools(100, 200)
	m.IncEraTransition("natural")
	m.SetRewardsPaid(3, 600)
	m.IncSlashApplied("ring")
	m.IncReportDropped()
}

func TestStakingMetricsNilReceiver(t *testing.T) {
	var m *StakingMetrics
	m.SetCurrentEra(1)
	m.IncEraTransition("forced")
	m.IncSlashApplied("kton")
}
