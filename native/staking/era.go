package staking

import (
	"log/slog"
	"math/big"

	"github.com/emergenetwork/darwinia/core/events"
)

// PointsAward pairs a validator stash with reward points earned.
type PointsAward struct {
	Validator [20]byte
	Points    uint32
}

// OnSessionEnding is invoked at every session boundary, before the session
// module rotates keys. It returns the new validator set when an era started,
// or nil when nothing changed.
func (m *Module) OnSessionEnding(startSession uint32) ([][20]byte, error) {
	forcing, err := m.forceEra()
	if err != nil {
		return nil, err
	}

	trigger := ""
	switch forcing {
	case ForceNew:
		if err := m.putForceEra(NotForcing); err != nil {
			return nil, err
		}
		trigger = "forced"
	case ForceAlways:
		trigger = "forced"
	case ForceNone:
		return nil, nil
	default:
		if (startSession-1)%m.params.SessionsPerEra != 0 {
			return nil, nil
		}
		trigger = "natural"
	}

	winners, err := m.newEra(startSession)
	if err != nil {
		return nil, err
	}
	if m.telemetry != nil {
		m.telemetry.IncEraTransition(trigger)
	}
	return winners, nil
}

// newEra distributes the accumulated era reward, advances the era counters,
// rolls the epoch when due and runs the election.
func (m *Module) newEra(startSession uint32) ([][20]byte, error) {
	totalReward, err := m.currentEraTotalReward()
	if err != nil {
		return nil, err
	}
	reward := m.params.SessionReward.Mul(totalReward)
	if reward.Sign() > 0 {
		elected, err := m.currentElected()
		if err != nil {
			return nil, err
		}
		count := int64(len(elected))
		if count < 1 {
			count = 1
		}
		perValidator := new(big.Int).Quo(reward, big.NewInt(count))
		for _, validator := range elected {
			if err := m.rewardValidator(validator, perValidator); err != nil {
				return nil, err
			}
		}
		m.emitter.Emit(events.StakingReward{Amount: perValidator})
	}

	era, err := m.currentEra()
	if err != nil {
		return nil, err
	}
	era++
	if err := m.putCurrentEra(era); err != nil {
		return nil, err
	}
	if err := m.putCurrentEraStart(m.clock.Now(), startSession); err != nil {
		return nil, err
	}
	if err := m.putEraPoints(&EraPoints{}); err != nil {
		return nil, err
	}
	if m.telemetry != nil {
		m.telemetry.SetCurrentEra(era)
		rewardValue, _ := new(big.Float).SetInt(reward).Float64()
		m.telemetry.SetRewardsPaid(era, rewardValue)
	}

	if era%m.params.ErasPerEpoch == 0 {
		if err := m.newEpoch(); err != nil {
			return nil, err
		}
	}

	m.session.PruneHistoricalUpTo(startSession)

	_, winners, err := m.selectValidators()
	if err != nil {
		return nil, err
	}
	return winners, nil
}

// newEpoch advances the epoch index and refreshes the per-era reward from the
// schedule.
func (m *Module) newEpoch() error {
	epoch, err := m.epochIndex()
	if err != nil {
		return err
	}
	epoch++
	if err := m.putEpochIndex(epoch); err != nil {
		return err
	}
	nextReward := m.schedule.EraTotalReward(epoch)
	if nextReward != nil && nextReward.Sign() > 0 {
		if err := m.putCurrentEraTotalReward(nextReward); err != nil {
			return err
		}
	}
	if m.telemetry != nil {
		m.telemetry.SetEpochIndex(epoch)
	}
	return nil
}

// rewardValidator splits reward between the validator and its nominators.
// The validator takes its payment ratio off the table; the rest is shared
// pro-rata by exposure.
func (m *Module) rewardValidator(stash [20]byte, reward *big.Int) error {
	prefs, _, err := m.validatorPrefsOf(stash)
	if err != nil {
		return err
	}
	offTheTable := prefs.PaymentRatio.Mul(reward)
	shared := new(big.Int).Sub(reward, offTheTable)

	validatorCut := big.NewInt(0)
	if shared.Sign() > 0 {
		exposure, _, err := m.exposureOf(stash)
		if err != nil {
			return err
		}
		total := exposure.Total
		if total.Sign() < 1 {
			total = big.NewInt(1)
		}
		for _, other := range exposure.Others {
			share := PerbillFromRational(other.Value, total).Mul(shared)
			m.makePayout(other.Who, share)
		}
		validatorCut = PerbillFromRational(exposure.Own, total).Mul(shared)
	}

	m.makePayout(stash, new(big.Int).Add(validatorCut, offTheTable))
	return nil
}

// makePayout pays amount to the staker's configured reward destination.
// Failed deposits are discarded; rewards are best-effort.
func (m *Module) makePayout(stash [20]byte, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	dest, err := m.payeeOf(stash)
	if err != nil {
		m.log.Error("staking: resolve payee failed", slog.String("stash", addrHex(stash)), slog.Any("error", err))
		return
	}
	target := stash
	if dest == PayToController {
		controller, ok, err := m.bondedOf(stash)
		if err != nil || !ok {
			return
		}
		target = controller
	}
	if minted, err := m.ring.DepositIntoExisting(target, amount); err == nil {
		m.ringReward.OnUnbalanced(minted)
	}
}

// RewardByIDs accumulates author points against the current elected set.
// References to non-elected validators are ignored.
func (m *Module) RewardByIDs(awards []PointsAward) error {
	elected, err := m.currentElected()
	if err != nil {
		return err
	}
	points, err := m.eraPoints()
	if err != nil {
		return err
	}
	changed := false
	for _, award := range awards {
		for index, validator := range elected {
			if validator == award.Validator {
				points.addPointsToIndex(uint32(index), award.Points)
				changed = true
				break
			}
		}
	}
	if !changed {
		return nil
	}
	return m.putEraPoints(points)
}

// EnsureNewEra guarantees that the current session is the era's last. The
// transition toward ForceNew is idempotent and never downgrades ForceAlways.
func (m *Module) EnsureNewEra() error {
	forcing, err := m.forceEra()
	if err != nil {
		return err
	}
	switch forcing {
	case ForceAlways, ForceNew:
		return nil
	default:
		return m.putForceEra(ForceNew)
	}
}
