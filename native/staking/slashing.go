package staking

import (
	"log/slog"
	"math/big"
	"sort"

	"github.com/emergenetwork/darwinia/core/events"
)

// OffenceDetail describes one offender as reported by the offence transport.
// The exposure is the full identification captured when the offence happened.
type OffenceDetail struct {
	Offender  [20]byte
	Exposure  Exposure
	Reporters [][20]byte
}

// OnOffence converts offence reports into ordered reductions of ledger state.
// Offenders and slashFractions are aligned pairwise. Reports older than the
// current era are discarded with an event instead of applied.
func (m *Module) OnOffence(offenders []OffenceDetail, slashFractions []Perbill, sessionIndex uint32) error {
	if len(offenders) != len(slashFractions) {
		return ErrOffenceShape
	}

	eraStartSession, err := m.currentEraStartSessionIndex()
	if err != nil {
		return err
	}
	if sessionIndex < eraStartSession {
		m.emitter.Emit(events.StakingOldReportDiscarded{SessionIndex: sessionIndex})
		if m.telemetry != nil {
			m.telemetry.IncReportDropped()
		}
		return nil
	}

	invulnerables, err := m.invulnerables()
	if err != nil {
		return err
	}
	slashRewardFraction, err := m.slashRewardFraction()
	if err != nil {
		return err
	}
	eraNow, err := m.currentEra()
	if err != nil {
		return err
	}
	journal, err := m.slashJournal(eraNow)
	if err != nil {
		return err
	}

	for i, detail := range offenders {
		fraction := slashFractions[i]
		stash := detail.Offender
		detail.Exposure.normalize()

		if containsAddress(invulnerables, stash) {
			continue
		}

		// Deselect the validator on any offence and make sure the era turns
		// over if it hasn't been arranged already.
		if has, err := m.isValidator(stash); err != nil {
			return err
		} else if has {
			if err := m.removeValidator(stash); err != nil {
				return err
			}
			if err := m.EnsureNewEra(); err != nil {
				return err
			}
		}

		amount := fraction.Mul(detail.Exposure.Total)
		if amount.Sign() == 0 {
			continue
		}

		if tooMany, err := m.session.DisableValidator(stash); err == nil && tooMany {
			if err := m.EnsureNewEra(); err != nil {
				return err
			}
		}

		ringSlashed, ktonSlashed, err := m.slashValidator(stash, fraction, &detail.Exposure)
		if err != nil {
			return err
		}

		// The reporter cut comes out of the ring imbalance; whatever is left
		// of either currency goes to the treasury sinks.
		slashReward := slashRewardFraction.Mul(ringSlashed)
		if slashReward.Sign() > 0 && len(detail.Reporters) > 0 {
			perReporter := new(big.Int).Quo(slashReward, big.NewInt(int64(len(detail.Reporters))))
			paid := big.NewInt(0)
			for _, reporter := range detail.Reporters {
				m.ring.DepositCreating(reporter, perReporter)
				paid.Add(paid, perReporter)
			}
			m.ringSlash.OnUnbalanced(new(big.Int).Sub(ringSlashed, paid))
		} else {
			m.ringSlash.OnUnbalanced(ringSlashed)
		}
		m.ktonSlash.OnUnbalanced(ktonSlashed)

		journal = append(journal, SlashJournalEntry{
			Who:      stash,
			Amount:   amount,
			OwnSlash: fraction.Mul(detail.Exposure.Own),
		})
		m.log.Info("staking: offence slashed",
			slog.String("stash", addrHex(stash)),
			slog.String("amount", amount.String()),
			slog.Uint64("fraction", uint64(fraction.Parts())),
		)
	}

	return m.putSlashJournal(eraNow, journal)
}

// slashValidator slashes the offender and every exposed nominator by the same
// fraction, returning the accumulated ring and kton negative imbalances.
func (m *Module) slashValidator(stash [20]byte, fraction Perbill, exposure *Exposure) (*big.Int, *big.Int, error) {
	ringTotal, ktonTotal, err := m.slashIndividual(stash, fraction)
	if err != nil {
		return nil, nil, err
	}
	for _, other := range exposure.Others {
		ring, kton, err := m.slashIndividual(other.Who, fraction)
		if err != nil {
			return nil, nil, err
		}
		ringTotal.Add(ringTotal, ring)
		ktonTotal.Add(ktonTotal, kton)
	}
	return ringTotal, ktonTotal, nil
}

// slashIndividual applies the fraction to one stash's ledger, currency by
// currency, and burns the removed value from the stash's balance.
func (m *Module) slashIndividual(stash [20]byte, fraction Perbill) (*big.Int, *big.Int, error) {
	ringSlashed := big.NewInt(0)
	ktonSlashed := big.NewInt(0)

	controller, ok, err := m.bondedOf(stash)
	if err != nil || !ok {
		return ringSlashed, ktonSlashed, err
	}
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil || !ok {
		return ringSlashed, ktonSlashed, err
	}

	if ledger.TotalRing.Sign() > 0 {
		target := fraction.Mul(ledger.TotalRing)
		removed, err := m.slashRingLedger(controller, ledger, target)
		if err != nil {
			return nil, nil, err
		}
		if removed.Sign() > 0 {
			slashed, _ := m.ring.Slash(stash, removed)
			ringSlashed.Add(ringSlashed, slashed)
			if m.telemetry != nil {
				m.telemetry.IncSlashApplied(RingKind.String())
			}
		}
	}
	if ledger.TotalKton.Sign() > 0 {
		target := fraction.Mul(ledger.TotalKton)
		removed, err := m.slashKtonLedger(controller, ledger, target)
		if err != nil {
			return nil, nil, err
		}
		if removed.Sign() > 0 {
			slashed, _ := m.kton.Slash(stash, removed)
			ktonSlashed.Add(ktonSlashed, slashed)
			if m.telemetry != nil {
				m.telemetry.IncSlashApplied(KtonKind.String())
			}
		}
	}
	return ringSlashed, ktonSlashed, nil
}

// slashRingLedger removes up to value ring from the ledger: the normal active
// portion first, then deposit items starting from the farthest expiry.
// Unlocking chunks are never touched. Returns the amount actually removed.
func (m *Module) slashRingLedger(controller [20]byte, ledger *StakingLedger, value *big.Int) (*big.Int, error) {
	total := minBig(value, ledger.ActiveRing)
	normal := minBig(total, ledger.activeNormalRing())

	if normal.Sign() > 0 {
		if err := m.mutatePool(RingKind, new(big.Int).Neg(normal)); err != nil {
			return nil, err
		}
		ledger.ActiveRing.Sub(ledger.ActiveRing, normal)
		ledger.TotalRing.Sub(ledger.TotalRing, normal)
	}

	left := new(big.Int).Sub(total, normal)
	if left.Sign() > 0 {
		sort.SliceStable(ledger.DepositItems, func(i, j int) bool {
			return ledger.DepositItems[i].ExpireTime > ledger.DepositItems[j].ExpireTime
		})
		kept := ledger.DepositItems[:0]
		for i := range ledger.DepositItems {
			item := ledger.DepositItems[i]
			if left.Sign() > 0 {
				removed := minBig(left, item.Value)
				ledger.TotalRing.Sub(ledger.TotalRing, removed)
				ledger.ActiveRing.Sub(ledger.ActiveRing, removed)
				ledger.ActiveDepositRing.Sub(ledger.ActiveDepositRing, removed)
				item.Value = new(big.Int).Sub(item.Value, removed)
				left.Sub(left, removed)
				if err := m.mutatePool(RingKind, new(big.Int).Neg(removed)); err != nil {
					return nil, err
				}
			}
			if item.Value.Sign() > 0 {
				kept = append(kept, item)
			}
		}
		ledger.DepositItems = kept
	}

	if err := m.updateLedger(controller, ledger, RingKind); err != nil {
		return nil, err
	}
	return total, nil
}

// slashKtonLedger removes up to value kton from the active portion only.
func (m *Module) slashKtonLedger(controller [20]byte, ledger *StakingLedger, value *big.Int) (*big.Int, error) {
	active := minBig(value, ledger.ActiveKton)
	if active.Sign() > 0 {
		ledger.ActiveKton.Sub(ledger.ActiveKton, active)
		ledger.TotalKton.Sub(ledger.TotalKton, active)
		if err := m.mutatePool(KtonKind, new(big.Int).Neg(active)); err != nil {
			return nil, err
		}
	}
	if err := m.updateLedger(controller, ledger, KtonKind); err != nil {
		return nil, err
	}
	return active, nil
}

func (m *Module) isValidator(stash [20]byte) (bool, error) {
	_, ok, err := m.validatorPrefsOf(stash)
	return ok, err
}

func containsAddress(list [][20]byte, addr [20]byte) bool {
	for _, item := range list {
		if item == addr {
			return true
		}
	}
	return false
}
