package staking

import "math/big"

// halfPowerCount is the share of total power granted to each currency pool.
// A stash owning an entire pool holds half of the one-billion power supply.
const halfPowerCount = 500_000_000

var halfPowerCountBig = big.NewInt(halfPowerCount)

func halfPower(active, pool *big.Int) *big.Int {
	if active == nil || active.Sign() <= 0 {
		return big.NewInt(0)
	}
	divisor := pool
	if divisor == nil || divisor.Sign() < 1 {
		divisor = big.NewInt(1)
	}
	out := new(big.Int).Mul(active, halfPowerCountBig)
	return out.Quo(out, divisor)
}

// PowerOf maps a stash's active ring and kton against the system-wide pools
// into the scalar election weight:
//
//	power = active_ring/ring_pool * 5e8 + active_kton/kton_pool * 5e8
//
// computed multiply-then-divide so no precision is lost to intermediate
// rounding. A stash with no ledger has power zero.
func (m *Module) PowerOf(stash [20]byte) *big.Int {
	controller, ok, err := m.bondedOf(stash)
	if err != nil || !ok {
		return big.NewInt(0)
	}
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil || !ok {
		return big.NewInt(0)
	}
	ringPool, ktonPool, err := m.pools()
	if err != nil {
		return big.NewInt(0)
	}
	power := halfPower(ledger.ActiveRing, ringPool)
	return power.Add(power, halfPower(ledger.ActiveKton, ktonPool))
}
