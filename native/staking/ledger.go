package staking

import (
	"log/slog"
	"math/big"

	"github.com/emergenetwork/darwinia/core/events"
)

// Bond registers the stash/controller pair and locks value on the stash. A
// ring bond with a promise of three months or more becomes a time deposit:
// the locked portion earns an up-front kton bonus and cannot be unbonded
// before expiry without punishment. The bonded amount is clamped to the
// stash's free balance.
func (m *Module) Bond(stash, controller [20]byte, value StakingBalance, payee RewardDestination, promiseMonths uint64) error {
	if promiseMonths > MaxPromiseMonths {
		return ErrPromiseTooLong
	}
	if payee != PayToStash && payee != PayToController {
		return ErrBadPayee
	}
	if _, ok, err := m.bondedOf(stash); err != nil {
		return err
	} else if ok {
		return ErrStashAlreadyBonded
	}
	if ok, err := m.hasLedger(controller); err != nil {
		return err
	} else if ok {
		return ErrControllerAlreadyPaired
	}

	if err := m.putBonded(stash, controller); err != nil {
		return err
	}
	if err := m.putPayee(stash, payee); err != nil {
		return err
	}

	ledger := newLedger(stash)
	switch value.Kind {
	case RingKind:
		bonded := minBig(value.Amount, m.ring.FreeBalance(stash))
		if err := m.mutatePool(RingKind, bonded); err != nil {
			return err
		}
		return m.bondRing(stash, controller, bonded, promiseMonths, ledger)
	case KtonKind:
		bonded := minBig(value.Amount, m.kton.FreeBalance(stash))
		if err := m.mutatePool(KtonKind, bonded); err != nil {
			return err
		}
		return m.bondKton(controller, bonded, ledger)
	default:
		return ErrBadCurrency
	}
}

// BondExtra adds more of the stash's free balance to an existing bond. The
// added amount is capped at free balance minus what is already accounted for.
func (m *Module) BondExtra(stash [20]byte, value StakingBalance, promiseMonths uint64) error {
	if promiseMonths > MaxPromiseMonths {
		return ErrPromiseTooLong
	}
	controller, ok, err := m.bondedOf(stash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotStash
	}
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}

	switch value.Kind {
	case RingKind:
		headroom := new(big.Int).Sub(m.ring.FreeBalance(stash), ledger.TotalRing)
		if headroom.Sign() <= 0 {
			return nil
		}
		extra := minBig(headroom, value.Amount)
		if err := m.mutatePool(RingKind, extra); err != nil {
			return err
		}
		return m.bondRing(stash, controller, extra, promiseMonths, ledger)
	case KtonKind:
		headroom := new(big.Int).Sub(m.kton.FreeBalance(stash), ledger.TotalKton)
		if headroom.Sign() <= 0 {
			return nil
		}
		extra := minBig(headroom, value.Amount)
		if err := m.mutatePool(KtonKind, extra); err != nil {
			return err
		}
		return m.bondKton(controller, extra, ledger)
	default:
		return ErrBadCurrency
	}
}

// DepositExtra converts already-bonded normal ring into time-deposited ring.
// Mature deposits are cleared first; the converted amount is limited to the
// normal active portion.
func (m *Module) DepositExtra(controller [20]byte, value *big.Int, promiseMonths uint64) error {
	if promiseMonths > MaxPromiseMonths {
		return ErrPromiseTooLong
	}
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}

	now := m.clock.Now()
	clearMatureDeposits(ledger, now)

	if promiseMonths >= MinPromiseMonths {
		deposited := minBig(copyBig(value), ledger.activeNormalRing())
		if deposited.Sign() > 0 {
			ledger.ActiveDepositRing.Add(ledger.ActiveDepositRing, deposited)
			m.mintKtonBonus(ledger.Stash, deposited, promiseMonths)
			ledger.DepositItems = append(ledger.DepositItems, TimeDepositItem{
				Value:      deposited,
				StartTime:  now,
				ExpireTime: now + promiseMonths*MonthInSeconds,
			})
		}
	}
	return m.putLedger(controller, ledger)
}

// Unbond schedules part of the active stake for withdrawal after the bonding
// duration. Only the normal (non-deposit) ring portion is unbondable; the
// deposited portion needs ClaimDepositsWithPunish first. Mature deposits are
// cleared before computing the unbondable amount.
func (m *Module) Unbond(controller [20]byte, value StakingBalance) error {
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}

	clearMatureDeposits(ledger, m.clock.Now())

	if len(ledger.Unlocking) >= MaxUnlockingChunks {
		return ErrNoMoreChunks
	}

	era, err := m.currentEra()
	if err != nil {
		return err
	}
	era += m.params.BondingDuration

	switch value.Kind {
	case RingKind:
		available := minBig(value.Amount, ledger.activeNormalRing())
		if available.Sign() > 0 {
			if err := m.mutatePool(RingKind, new(big.Int).Neg(available)); err != nil {
				return err
			}
			ledger.ActiveRing.Sub(ledger.ActiveRing, available)
			ledger.Unlocking = append(ledger.Unlocking, UnlockChunk{
				Value: StakingBalance{Kind: RingKind, Amount: available},
				Era:   era,
			})
		}
	case KtonKind:
		available := minBig(value.Amount, ledger.ActiveKton)
		if available.Sign() > 0 {
			if err := m.mutatePool(KtonKind, new(big.Int).Neg(available)); err != nil {
				return err
			}
			ledger.ActiveKton.Sub(ledger.ActiveKton, available)
			ledger.Unlocking = append(ledger.Unlocking, UnlockChunk{
				Value: StakingBalance{Kind: KtonKind, Amount: available},
				Era:   era,
			})
		}
	default:
		return ErrBadCurrency
	}
	return m.updateLedger(controller, ledger, value.Kind)
}

// ClaimMatureDeposits releases every expired time deposit back into the
// normal active portion. Calling it twice is a no-op the second time.
func (m *Module) ClaimMatureDeposits(controller [20]byte) error {
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}
	clearMatureDeposits(ledger, m.clock.Now())
	return m.putLedger(controller, ledger)
}

// ClaimDepositsWithPunish releases the deposit items maturing at expireTime
// before their expiry, burning three times the kton those months would still
// earn. An item whose penalty the stash cannot cover stays in place; that is
// not an error.
func (m *Module) ClaimDepositsWithPunish(controller [20]byte, expireTime uint64) error {
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}

	now := m.clock.Now()
	if expireTime <= now {
		return ErrDepositAlreadyMature
	}

	kept := ledger.DepositItems[:0]
	for _, item := range ledger.DepositItems {
		if item.ExpireTime != expireTime {
			kept = append(kept, item)
			continue
		}
		monthsLeft := (expireTime - now) / MonthInSeconds
		if monthsLeft == 0 {
			monthsLeft = 1
		}
		penalty := new(big.Int).Mul(KtonReturn(item.Value, monthsLeft), big.NewInt(3))

		newBalance := new(big.Int).Sub(m.kton.FreeBalance(ledger.Stash), penalty)
		if newBalance.Sign() < 0 || m.kton.EnsureCanWithdraw(ledger.Stash, penalty, newBalance) != nil {
			kept = append(kept, item)
			continue
		}

		ledger.ActiveDepositRing.Sub(ledger.ActiveDepositRing, item.Value)
		if ledger.ActiveDepositRing.Sign() < 0 {
			ledger.ActiveDepositRing.SetInt64(0)
		}
		slashed, _ := m.kton.Slash(ledger.Stash, penalty)
		m.ktonSlash.OnUnbalanced(slashed)
	}
	ledger.DepositItems = kept
	return m.putLedger(controller, ledger)
}

// WithdrawUnbonded removes every unlocking chunk whose era has passed,
// reducing the ledger totals and refreshing the balance locks of the touched
// currencies. A ledger left with nothing at stake kills the stash.
func (m *Module) WithdrawUnbonded(controller [20]byte) error {
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}
	currentEra, err := m.currentEra()
	if err != nil {
		return err
	}

	var ringTouched, ktonTouched bool
	kept := ledger.Unlocking[:0]
	for _, chunk := range ledger.Unlocking {
		if chunk.Era > currentEra {
			kept = append(kept, chunk)
			continue
		}
		switch chunk.Value.Kind {
		case RingKind:
			ringTouched = true
			ledger.TotalRing.Sub(ledger.TotalRing, chunk.Value.Amount)
			if ledger.TotalRing.Sign() < 0 {
				ledger.TotalRing.SetInt64(0)
			}
		case KtonKind:
			ktonTouched = true
			ledger.TotalKton.Sub(ledger.TotalKton, chunk.Value.Amount)
			if ledger.TotalKton.Sign() < 0 {
				ledger.TotalKton.SetInt64(0)
			}
		}
	}
	ledger.Unlocking = kept

	if ledger.isEmpty() && len(ledger.Unlocking) == 0 {
		return m.killStash(ledger.Stash, controller)
	}

	if ringTouched {
		if err := m.updateLedger(controller, ledger, RingKind); err != nil {
			return err
		}
	}
	if ktonTouched {
		if err := m.updateLedger(controller, ledger, KtonKind); err != nil {
			return err
		}
	}
	return nil
}

// Validate declares the intention to validate. The stash leaves the
// nominator set; the first call on a controller also records its node name.
func (m *Module) Validate(controller [20]byte, name []byte, ratioPercent uint32, unstakeThreshold uint32) error {
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}
	if unstakeThreshold > MaxUnstakeThreshold {
		return ErrUnstakeThresholdTooBig
	}

	prefs := ValidatorPrefs{
		UnstakeThreshold: unstakeThreshold,
		PaymentRatio:     PerbillFromPercent(ratioPercent),
	}
	if err := m.removeNominator(ledger.Stash); err != nil {
		return err
	}
	if err := m.putValidator(ledger.Stash, prefs); err != nil {
		return err
	}

	hasName, err := m.hasNodeName(controller)
	if err != nil {
		return err
	}
	if !hasName {
		if err := m.putNodeName(controller, name); err != nil {
			return err
		}
		m.emitter.Emit(events.StakingNodeNameUpdated{Controller: controller, Name: string(name)})
	}
	return nil
}

// Nominate declares the targets the stash backs. The list is truncated to
// MaxNominations and the stash leaves the validator set.
func (m *Module) Nominate(controller [20]byte, targets [][20]byte) error {
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}
	if len(targets) == 0 {
		return ErrEmptyTargets
	}
	if len(targets) > MaxNominations {
		targets = targets[:MaxNominations]
	}
	if err := m.removeValidator(ledger.Stash); err != nil {
		return err
	}
	return m.putNominator(ledger.Stash, targets)
}

// Chill removes the stash from both the validator and nominator sets.
func (m *Module) Chill(controller [20]byte) error {
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}
	if err := m.removeValidator(ledger.Stash); err != nil {
		return err
	}
	return m.removeNominator(ledger.Stash)
}

// SetPayee redirects future era payouts.
func (m *Module) SetPayee(controller [20]byte, dest RewardDestination) error {
	if dest != PayToStash && dest != PayToController {
		return ErrBadPayee
	}
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotController
	}
	return m.putPayee(ledger.Stash, dest)
}

// SetController re-pairs the stash with a new controller, moving the ledger.
func (m *Module) SetController(stash, newController [20]byte) error {
	oldController, ok, err := m.bondedOf(stash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotStash
	}
	if newController == oldController {
		return nil
	}
	if ok, err := m.hasLedger(newController); err != nil {
		return err
	} else if ok {
		return ErrControllerAlreadyPaired
	}
	if err := m.putBonded(stash, newController); err != nil {
		return err
	}
	ledger, ok, err := m.ledgerOf(oldController)
	if err != nil {
		return err
	}
	if ok {
		if err := m.state.KVDelete(ledgerKey(oldController)); err != nil {
			return err
		}
		if err := m.putLedger(newController, ledger); err != nil {
			return err
		}
	}
	return nil
}

// --- internal helpers ---

func (m *Module) bondRing(stash, controller [20]byte, value *big.Int, promiseMonths uint64, ledger *StakingLedger) error {
	if promiseMonths >= MinPromiseMonths && value.Sign() > 0 {
		ledger.ActiveDepositRing.Add(ledger.ActiveDepositRing, value)
		m.mintKtonBonus(stash, value, promiseMonths)
		now := m.clock.Now()
		ledger.DepositItems = append(ledger.DepositItems, TimeDepositItem{
			Value:      copyBig(value),
			StartTime:  now,
			ExpireTime: now + promiseMonths*MonthInSeconds,
		})
	}
	ledger.ActiveRing.Add(ledger.ActiveRing, value)
	ledger.TotalRing.Add(ledger.TotalRing, value)
	return m.updateLedger(controller, ledger, RingKind)
}

func (m *Module) bondKton(controller [20]byte, value *big.Int, ledger *StakingLedger) error {
	ledger.ActiveKton.Add(ledger.ActiveKton, value)
	ledger.TotalKton.Add(ledger.TotalKton, value)
	return m.updateLedger(controller, ledger, KtonKind)
}

func (m *Module) mintKtonBonus(stash [20]byte, value *big.Int, promiseMonths uint64) {
	bonus := KtonReturn(value, promiseMonths)
	if bonus.Sign() <= 0 {
		return
	}
	minted := m.kton.DepositCreating(stash, bonus)
	m.ktonReward.OnUnbalanced(minted)
}

// updateLedger persists the ledger and refreshes the stash's balance lock for
// the touched currency to the full total. Pool deltas are written by the
// callers in the same state transaction.
func (m *Module) updateLedger(controller [20]byte, ledger *StakingLedger, kind BalanceKind) error {
	switch kind {
	case RingKind:
		m.ring.SetLock(LockID, ledger.Stash, copyBig(ledger.TotalRing))
	case KtonKind:
		m.kton.SetLock(LockID, ledger.Stash, copyBig(ledger.TotalKton))
	}
	return m.putLedger(controller, ledger)
}

// clearMatureDeposits drops every deposit item at or past expiry, crediting
// the value back to the normal active portion.
func clearMatureDeposits(ledger *StakingLedger, now uint64) {
	kept := ledger.DepositItems[:0]
	for _, item := range ledger.DepositItems {
		if item.ExpireTime > now {
			kept = append(kept, item)
			continue
		}
		ledger.ActiveDepositRing.Sub(ledger.ActiveDepositRing, item.Value)
		if ledger.ActiveDepositRing.Sign() < 0 {
			ledger.ActiveDepositRing.SetInt64(0)
		}
	}
	ledger.DepositItems = kept
}

// killStash removes all staking state for the stash and releases its locks.
func (m *Module) killStash(stash, controller [20]byte) error {
	m.ring.RemoveLock(LockID, stash)
	m.kton.RemoveLock(LockID, stash)
	if err := m.state.KVDelete(bondedKey(stash)); err != nil {
		return err
	}
	if err := m.state.KVDelete(ledgerKey(controller)); err != nil {
		return err
	}
	if err := m.state.KVDelete(payeeKey(stash)); err != nil {
		return err
	}
	if err := m.removeValidator(stash); err != nil {
		return err
	}
	if err := m.removeNominator(stash); err != nil {
		return err
	}
	m.log.Info("staking: stash killed", slog.String("stash", addrHex(stash)))
	return nil
}

// OnFreeBalanceZero is the hook invoked by the currency when a stash's
// balance reaches zero. All staking state for the stash is removed.
func (m *Module) OnFreeBalanceZero(stash [20]byte) error {
	controller, ok, err := m.bondedOf(stash)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return m.killStash(stash, controller)
}
