package staking

import "math/big"

// State is the narrow view of the key/value state manager this module writes
// through. All values round-trip deterministically (RLP in the default
// manager).
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Currency is the capability the module consumes for each of the two staking
// tokens. Ring and kton differ only by keyed storage behind this interface.
type Currency interface {
	// FreeBalance returns the spendable balance of the account.
	FreeBalance(addr [20]byte) *big.Int
	// TotalIssuance returns the total amount of currency in existence.
	TotalIssuance() *big.Int
	// SetLock installs or replaces the named lock on the account for the
	// given amount, against all withdraw reasons.
	SetLock(id [8]byte, addr [20]byte, amount *big.Int)
	// RemoveLock drops the named lock from the account.
	RemoveLock(id [8]byte, addr [20]byte)
	// DepositCreating mints into the account, creating it when necessary, and
	// returns the positive imbalance.
	DepositCreating(addr [20]byte, amount *big.Int) *big.Int
	// DepositIntoExisting mints into an existing account only.
	DepositIntoExisting(addr [20]byte, amount *big.Int) (*big.Int, error)
	// Slash burns up to amount from the account, returning the negative
	// imbalance actually removed and any unfulfilled remainder.
	Slash(addr [20]byte, amount *big.Int) (*big.Int, *big.Int)
	// EnsureCanWithdraw checks that reducing the account to newBalance is
	// permitted by existing locks.
	EnsureCanWithdraw(addr [20]byte, amount, newBalance *big.Int) error
}

// TimeProvider yields the current moment in unix seconds, monotonic within a
// chain.
type TimeProvider interface {
	Now() uint64
}

// SessionInterface is how the module drives the external session manager.
type SessionInterface interface {
	// DisableValidator disables the given validator by stash. The boolean
	// reports that too many validators are now disabled and a new era should
	// be forced.
	DisableValidator(stash [20]byte) (bool, error)
	// Validators returns the session's current validator set.
	Validators() [][20]byte
	// PruneHistoricalUpTo prunes historical session data up to but not
	// including the given index.
	PruneHistoricalUpTo(index uint32)
}

// RewardSchedule computes the total era reward for an epoch. Recomputed once
// per epoch rollover.
type RewardSchedule interface {
	EraTotalReward(epoch uint32) *big.Int
}

// ImbalanceSink absorbs currency imbalances produced by slashing and minting,
// e.g. a treasury.
type ImbalanceSink interface {
	OnUnbalanced(amount *big.Int)
}

// discardSink drops imbalances on the floor.
type discardSink struct{}

func (discardSink) OnUnbalanced(*big.Int) {}

// capSchedule releases one percent of the uncapped supply per epoch, split
// evenly across the epoch's eras.
type capSchedule struct {
	ring         Currency
	cap          *big.Int
	erasPerEpoch uint32
}

func (s capSchedule) EraTotalReward(uint32) *big.Int {
	left := new(big.Int).Sub(s.cap, s.ring.TotalIssuance())
	if left.Sign() <= 0 {
		return big.NewInt(0)
	}
	left.Quo(left, big.NewInt(100))
	if s.erasPerEpoch > 1 {
		left.Quo(left, new(big.Int).SetUint64(uint64(s.erasPerEpoch)))
	}
	return left
}
