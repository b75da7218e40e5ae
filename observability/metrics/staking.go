package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StakingMetrics aggregates the instruments exported by the staking runtime.
type StakingMetrics struct {
	currentEra     prometheus.Gauge
	epochIndex     prometheus.Gauge
	electedCount   prometheus.Gauge
	slotStake      prometheus.Gauge
	ringPool       prometheus.Gauge
	ktonPool       prometheus.Gauge
	eraTransitions *prometheus.CounterVec
	rewardsPaid    *prometheus.GaugeVec
	slashesApplied *prometheus.CounterVec
	reportsDropped prometheus.Counter
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

// Staking returns the process-wide staking metrics collection, registering the
// instruments on first use.
func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			currentEra: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_current_era",
				Help: "Index of the current era.",
			}),
			epochIndex: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_epoch_index",
				Help: "Index of the current reward epoch.",
			}),
			electedCount: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_elected_validators",
				Help: "Number of validators elected for the current era.",
			}),
			slotStake: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_slot_stake",
				Help: "Minimum exposure backing an elected validator.",
			}),
			ringPool: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_ring_pool",
				Help: "Sum of active ring across all ledgers.",
			}),
			ktonPool: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_kton_pool",
				Help: "Sum of active kton across all ledgers.",
			}),
			eraTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_era_transitions_total",
				Help: "Count of era transitions by trigger.",
			}, []string{"trigger"}),
			rewardsPaid: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "staking_rewards_paid",
				Help: "Total ring paid out per era.",
			}, []string{"era"}),
			slashesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_slashes_applied_total",
				Help: "Count of slash applications by currency.",
			}, []string{"currency"}),
			reportsDropped: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_old_reports_dropped_total",
				Help: "Count of offence reports discarded by the historical filter.",
			}),
		}
		prometheus.MustRegister(
			stakingRegistry.currentEra,
			stakingRegistry.epochIndex,
			stakingRegistry.electedCount,
			stakingRegistry.slotStake,
			stakingRegistry.ringPool,
			stakingRegistry.ktonPool,
			stakingRegistry.eraTransitions,
			stakingRegistry.rewardsPaid,
			stakingRegistry.slashesApplied,
			stakingRegistry.reportsDropped,
		)
	})
	return stakingRegistry
}

// SetCurrentEra records the active era index.
func (m *StakingMetrics) SetCurrentEra(era uint32) {
	if m == nil {
		return
	}
	m.currentEra.Set(float64(era))
}

// SetEpochIndex records the active epoch index.
func (m *StakingMetrics) SetEpochIndex(epoch uint32) {
	if m == nil {
		return
	}
	m.epochIndex.Set(float64(epoch))
}

// SetElectedCount records the size of the elected validator set.
func (m *StakingMetrics) SetElectedCount(count int) {
	if m == nil {
		return
	}
	m.electedCount.Set(float64(count))
}

// SetSlotStake records the minimum winner exposure.
func (m *StakingMetrics) SetSlotStake(value float64) {
	if m == nil {
		return
	}
	m.slotStake.Set(value)
}

// SetPools records the current ring and kton pool totals.
func (m *StakingMetrics) SetPools(ring, kton float64) {
	if m == nil {
		return
	}
	m.ringPool.Set(ring)
	m.ktonPool.Set(kton)
}

// IncEraTransition counts an era rotation by its trigger label.
func (m *StakingMetrics) IncEraTransition(trigger string) {
	if m == nil {
		return
	}
	m.eraTransitions.WithLabelValues(trigger).Inc()
}

// SetRewardsPaid records the ring distributed during an era payout.
func (m *StakingMetrics) SetRewardsPaid(era uint32, amount float64) {
	if m == nil {
		return
	}
	m.rewardsPaid.WithLabelValues(strconv.FormatUint(uint64(era), 10)).Set(amount)
}

// IncSlashApplied counts one slash application for the given currency.
func (m *StakingMetrics) IncSlashApplied(currency string) {
	if m == nil {
		return
	}
	m.slashesApplied.WithLabelValues(currency).Inc()
}

// IncReportDropped counts a historically stale offence report.
func (m *StakingMetrics) IncReportDropped() {
	if m == nil {
		return
	}
	m.reportsDropped.Inc()
}
