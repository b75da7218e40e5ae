package staking

import "math/big"

// BalanceKind tags which of the two staking currencies an amount belongs to.
type BalanceKind uint8

const (
	// RingKind is the primary staking token.
	RingKind BalanceKind = iota
	// KtonKind is the bonus token earned by time-locking ring.
	KtonKind
)

func (k BalanceKind) String() string {
	if k == KtonKind {
		return "kton"
	}
	return "ring"
}

// StakingBalance is the tagged amount used for operation arguments and
// unlocking chunks.
type StakingBalance struct {
	Kind   BalanceKind
	Amount *big.Int
}

// RingBalance wraps a ring amount.
func RingBalance(amount *big.Int) StakingBalance {
	return StakingBalance{Kind: RingKind, Amount: copyBig(amount)}
}

// KtonBalance wraps a kton amount.
func KtonBalance(amount *big.Int) StakingBalance {
	return StakingBalance{Kind: KtonKind, Amount: copyBig(amount)}
}

// RewardDestination selects the account receiving era payouts.
type RewardDestination uint8

const (
	// PayToStash pays into the stash account, not increasing the amount at
	// stake.
	PayToStash RewardDestination = iota
	// PayToController pays into the controller account.
	PayToController
)

// Forcing is the mode of era-forcing.
type Forcing uint8

const (
	// NotForcing lets eras rotate on their natural session boundary.
	NotForcing Forcing = iota
	// ForceNew forces exactly the next session to start a new era.
	ForceNew
	// ForceNone suppresses era rotation indefinitely.
	ForceNone
	// ForceAlways starts a new era at the end of every session.
	ForceAlways
)

// ValidatorPrefs holds the preferences a validator declares with Validate.
type ValidatorPrefs struct {
	// UnstakeThreshold is how many more slashes than necessary the validator
	// tolerates before being unstaked.
	UnstakeThreshold uint32
	// PaymentRatio is the share of the reward the validator takes up-front;
	// only the rest is split with nominators.
	PaymentRatio Perbill
}

// DefaultValidatorPrefs mirrors the chain defaults.
func DefaultValidatorPrefs() ValidatorPrefs {
	return ValidatorPrefs{UnstakeThreshold: 3, PaymentRatio: 0}
}

// TimeDepositItem is a time-locked portion of active ring. Locking earns a
// kton bonus up front; the lock expires at ExpireTime.
type TimeDepositItem struct {
	Value      *big.Int
	StartTime  uint64
	ExpireTime uint64
}

// UnlockChunk is a scheduled withdrawal that matures once Era has passed.
type UnlockChunk struct {
	Value StakingBalance
	Era   uint32
}

// StakingLedger is the per-controller record of everything at stake.
//
// total_ring is active_ring plus all ring unlocking chunks, and active_ring
// is the normal portion plus active_deposit_ring. The kton side mirrors this
// without a deposit portion.
type StakingLedger struct {
	Stash [20]byte

	TotalRing         *big.Int
	ActiveRing        *big.Int
	ActiveDepositRing *big.Int

	TotalKton  *big.Int
	ActiveKton *big.Int

	DepositItems []TimeDepositItem
	Unlocking    []UnlockChunk
}

func newLedger(stash [20]byte) *StakingLedger {
	return &StakingLedger{
		Stash:             stash,
		TotalRing:         big.NewInt(0),
		ActiveRing:        big.NewInt(0),
		ActiveDepositRing: big.NewInt(0),
		TotalKton:         big.NewInt(0),
		ActiveKton:        big.NewInt(0),
	}
}

func (l *StakingLedger) normalize() {
	if l.TotalRing == nil {
		l.TotalRing = big.NewInt(0)
	}
	if l.ActiveRing == nil {
		l.ActiveRing = big.NewInt(0)
	}
	if l.ActiveDepositRing == nil {
		l.ActiveDepositRing = big.NewInt(0)
	}
	if l.TotalKton == nil {
		l.TotalKton = big.NewInt(0)
	}
	if l.ActiveKton == nil {
		l.ActiveKton = big.NewInt(0)
	}
	for i := range l.DepositItems {
		if l.DepositItems[i].Value == nil {
			l.DepositItems[i].Value = big.NewInt(0)
		}
	}
	for i := range l.Unlocking {
		if l.Unlocking[i].Value.Amount == nil {
			l.Unlocking[i].Value.Amount = big.NewInt(0)
		}
	}
}

// activeNormalRing is the unbondable portion of active ring.
func (l *StakingLedger) activeNormalRing() *big.Int {
	return new(big.Int).Sub(l.ActiveRing, l.ActiveDepositRing)
}

// isEmpty reports whether nothing bonded or pending remains.
func (l *StakingLedger) isEmpty() bool {
	return l.TotalRing.Sign() == 0 && l.TotalKton.Sign() == 0
}

// IndividualExposure is the amount of a nominator's power backing one
// validator.
type IndividualExposure struct {
	Who   [20]byte
	Value *big.Int
}

// Exposure is a snapshot of the power backing a single validator: the
// validator's own stake plus the portions assigned by nominators.
type Exposure struct {
	Total  *big.Int
	Own    *big.Int
	Others []IndividualExposure
}

func (e *Exposure) normalize() {
	if e.Total == nil {
		e.Total = big.NewInt(0)
	}
	if e.Own == nil {
		e.Own = big.NewInt(0)
	}
	for i := range e.Others {
		if e.Others[i].Value == nil {
			e.Others[i].Value = big.NewInt(0)
		}
	}
}

// SlashJournalEntry records one applied slash within an era.
type SlashJournalEntry struct {
	Who      [20]byte
	Amount   *big.Int
	OwnSlash *big.Int
}

// EraPoints tracks block-author reward points for the current era, indexed by
// position in the current elected set.
type EraPoints struct {
	Total      uint32
	Individual []uint32
}

func (p *EraPoints) addPointsToIndex(index uint32, points uint32) {
	for uint32(len(p.Individual)) <= index {
		p.Individual = append(p.Individual, 0)
	}
	p.Individual[index] += points
	p.Total += points
}

func copyBig(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
