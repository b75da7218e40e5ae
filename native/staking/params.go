package staking

import (
	"errors"
	"math/big"
)

const (
	// MaxNominations bounds the number of targets a nominator may declare.
	MaxNominations = 16
	// MaxUnstakeThreshold bounds the validator preference of the same name.
	MaxUnstakeThreshold = 10
	// MaxUnlockingChunks bounds the pending withdrawal queue per ledger.
	MaxUnlockingChunks = 32
	// MaxPromiseMonths is the longest time-deposit commitment.
	MaxPromiseMonths = 36
	// MinPromiseMonths is the shortest commitment that earns a kton bonus.
	MinPromiseMonths = 3
	// MonthInSeconds is the fixed month length used for deposit expiry.
	MonthInSeconds = 2_592_000

	// RecentOfflineCount is declared alongside the offline event types; no
	// code in this module reads it.
	RecentOfflineCount = 32

	// DefaultMinimumValidatorCount is the minimum validator count set by
	// DefaultParams. A configured minimum of zero is treated as one.
	DefaultMinimumValidatorCount = 4
)

// LockID is the balance lock identifier installed on bonded stashes.
var LockID = [8]byte{'s', 't', 'a', 'k', 'i', 'n', 'g', ' '}

// Block author reward points, credited through RewardByIDs by the authorship
// hook: 20 to the producer of a block, 2 per newly referenced uncle, 1 to each
// uncle author.
const (
	AuthorPoints   = 20
	UncleRefPoints = 2
	UnclePoints    = 1
)

// Params carries the staking runtime parameters fixed at construction.
// Validator count, slash reward fraction and the invulnerable set are seeded
// from here but live in state so that root calls can adjust them.
type Params struct {
	SessionsPerEra        uint32
	BondingDuration       uint32
	SessionLength         uint64
	ErasPerEpoch          uint32
	ValidatorCount        uint32
	MinimumValidatorCount uint32
	SessionReward         Perbill
	SlashRewardFraction   Perbill
	Cap                   *big.Int
	Equalize              bool
}

// DefaultParams mirrors the chain's genesis defaults.
func DefaultParams() Params {
	return Params{
		SessionsPerEra:        3,
		BondingDuration:       3,
		SessionLength:         300,
		ErasPerEpoch:          10,
		ValidatorCount:        7,
		MinimumValidatorCount: DefaultMinimumValidatorCount,
		SessionReward:         PerbillFromPercent(60),
		SlashRewardFraction:   PerbillFromPercent(10),
		Cap:                   new(big.Int).Mul(big.NewInt(10_000_000_000), big.NewInt(1_000_000_000)),
	}
}

// Validate ensures the parameters are self-consistent.
func (p Params) Validate() error {
	if p.SessionsPerEra == 0 {
		return errors.New("staking: sessions per era must be positive")
	}
	if p.ErasPerEpoch == 0 {
		return errors.New("staking: eras per epoch must be positive")
	}
	if p.Cap == nil || p.Cap.Sign() <= 0 {
		return errors.New("staking: cap must be positive")
	}
	return nil
}

func (p Params) minimumValidatorCount() uint32 {
	if p.MinimumValidatorCount == 0 {
		return 1
	}
	return p.MinimumValidatorCount
}
