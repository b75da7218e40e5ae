package staking

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/emergenetwork/darwinia/core/events"
	"github.com/emergenetwork/darwinia/core/state"
	"github.com/emergenetwork/darwinia/storage"
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

type testCurrency struct {
	balances    map[[20]byte]*big.Int
	locks       map[[20]byte]*big.Int
	issuance    *big.Int
	failDeposit bool
}

func newTestCurrency() *testCurrency {
	return &testCurrency{
		balances: make(map[[20]byte]*big.Int),
		locks:    make(map[[20]byte]*big.Int),
		issuance: big.NewInt(0),
	}
}

func (c *testCurrency) fund(addr [20]byte, amount int64) {
	value := big.NewInt(amount)
	c.balances[addr] = new(big.Int).Add(c.balanceOf(addr), value)
	c.issuance.Add(c.issuance, value)
}

func (c *testCurrency) balanceOf(addr [20]byte) *big.Int {
	if balance, ok := c.balances[addr]; ok {
		return balance
	}
	return big.NewInt(0)
}

func (c *testCurrency) FreeBalance(addr [20]byte) *big.Int {
	return new(big.Int).Set(c.balanceOf(addr))
}

func (c *testCurrency) TotalIssuance() *big.Int {
	return new(big.Int).Set(c.issuance)
}

func (c *testCurrency) SetLock(id [8]byte, addr [20]byte, amount *big.Int) {
	if amount.Sign() == 0 {
		delete(c.locks, addr)
		return
	}
	c.locks[addr] = new(big.Int).Set(amount)
}

func (c *testCurrency) RemoveLock(id [8]byte, addr [20]byte) {
	delete(c.locks, addr)
}

func (c *testCurrency) lockOf(addr [20]byte) *big.Int {
	if lock, ok := c.locks[addr]; ok {
		return new(big.Int).Set(lock)
	}
	return big.NewInt(0)
}

func (c *testCurrency) DepositCreating(addr [20]byte, amount *big.Int) *big.Int {
	c.balances[addr] = new(big.Int).Add(c.balanceOf(addr), amount)
	c.issuance.Add(c.issuance, amount)
	return new(big.Int).Set(amount)
}

func (c *testCurrency) DepositIntoExisting(addr [20]byte, amount *big.Int) (*big.Int, error) {
	if c.failDeposit {
		return nil, errors.New("deposit rejected")
	}
	if _, ok := c.balances[addr]; !ok {
		return nil, errors.New("account does not exist")
	}
	return c.DepositCreating(addr, amount), nil
}

func (c *testCurrency) Slash(addr [20]byte, amount *big.Int) (*big.Int, *big.Int) {
	balance := c.balanceOf(addr)
	taken := new(big.Int).Set(amount)
	if taken.Cmp(balance) > 0 {
		taken = new(big.Int).Set(balance)
	}
	c.balances[addr] = new(big.Int).Sub(balance, taken)
	c.issuance.Sub(c.issuance, taken)
	return taken, new(big.Int).Sub(amount, taken)
}

func (c *testCurrency) EnsureCanWithdraw(addr [20]byte, amount, newBalance *big.Int) error {
	if lock, ok := c.locks[addr]; ok && newBalance.Cmp(lock) < 0 {
		return errors.New("liquidity restrictions")
	}
	return nil
}

type manualClock struct {
	now uint64
}

func (c *manualClock) Now() uint64 { return c.now }

type testSession struct {
	disabled [][20]byte
	tooMany  bool
	pruned   []uint32
}

func (s *testSession) DisableValidator(stash [20]byte) (bool, error) {
	s.disabled = append(s.disabled, stash)
	return s.tooMany, nil
}

func (s *testSession) Validators() [][20]byte { return nil }

func (s *testSession) PruneHistoricalUpTo(index uint32) {
	s.pruned = append(s.pruned, index)
}

type recordingSink struct {
	total *big.Int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{total: big.NewInt(0)}
}

func (s *recordingSink) OnUnbalanced(amount *big.Int) {
	if amount != nil {
		s.total.Add(s.total, amount)
	}
}

type recordingEmitter struct {
	events []events.Event
}

func (e *recordingEmitter) Emit(event events.Event) {
	e.events = append(e.events, event)
}

func (e *recordingEmitter) byType(eventType string) []events.Event {
	var out []events.Event
	for _, event := range e.events {
		if event.EventType() == eventType {
			out = append(out, event)
		}
	}
	return out
}

type fixedSchedule struct {
	amount *big.Int
}

func (s fixedSchedule) EraTotalReward(uint32) *big.Int {
	return new(big.Int).Set(s.amount)
}

type testEnv struct {
	t       *testing.T
	module  *Module
	ring    *testCurrency
	kton    *testCurrency
	clock   *manualClock
	session *testSession
	emitted *recordingEmitter

	ringSlash  *recordingSink
	ringReward *recordingSink
	ktonSlash  *recordingSink
	ktonReward *recordingSink
}

func testParams() Params {
	params := DefaultParams()
	params.ValidatorCount = 2
	params.MinimumValidatorCount = 1
	return params
}

func newTestEnv(t *testing.T, params Params, eraReward int64) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr, err := state.NewManager(db)
	if err != nil {
		t.Fatalf("new state manager: %v", err)
	}

	env := &testEnv{
		t:          t,
		ring:       newTestCurrency(),
		kton:       newTestCurrency(),
		clock:      &manualClock{now: 1_000_000},
		session:    &testSession{},
		emitted:    &recordingEmitter{},
		ringSlash:  newRecordingSink(),
		ringReward: newRecordingSink(),
		ktonSlash:  newRecordingSink(),
		ktonReward: newRecordingSink(),
	}

	module, err := New(ModuleConfig{
		State:      mgr,
		Ring:       env.ring,
		Kton:       env.kton,
		Time:       env.clock,
		Session:    env.session,
		Schedule:   fixedSchedule{amount: big.NewInt(eraReward)},
		RingSlash:  env.ringSlash,
		RingReward: env.ringReward,
		KtonSlash:  env.ktonSlash,
		KtonReward: env.ktonReward,
		Emitter:    env.emitted,
		Params:     params,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new staking module: %v", err)
	}
	env.module = module
	return env
}

// bondRing funds the stash and bonds value ring with the given promise.
func (env *testEnv) bondRing(stash, controller [20]byte, value int64, months uint64) {
	env.t.Helper()
	env.ring.fund(stash, value)
	if err := env.module.Bond(stash, controller, RingBalance(big.NewInt(value)), PayToStash, months); err != nil {
		env.t.Fatalf("bond ring: %v", err)
	}
}

func (env *testEnv) mustLedger(controller [20]byte) *StakingLedger {
	env.t.Helper()
	ledger, ok, err := env.module.Ledger(controller)
	if err != nil {
		env.t.Fatalf("ledger: %v", err)
	}
	if !ok {
		env.t.Fatalf("ledger missing for %x", controller)
	}
	return ledger
}

// checkLedgerInvariants asserts the structural invariants that must hold at
// every observation point outside an ongoing mutation.
func (env *testEnv) checkLedgerInvariants(controller [20]byte) {
	env.t.Helper()
	ledger := env.mustLedger(controller)

	if ledger.ActiveDepositRing.Cmp(ledger.ActiveRing) > 0 {
		env.t.Fatalf("active deposit ring %s exceeds active ring %s", ledger.ActiveDepositRing, ledger.ActiveRing)
	}
	if ledger.ActiveRing.Cmp(ledger.TotalRing) > 0 {
		env.t.Fatalf("active ring %s exceeds total ring %s", ledger.ActiveRing, ledger.TotalRing)
	}
	if ledger.ActiveKton.Cmp(ledger.TotalKton) > 0 {
		env.t.Fatalf("active kton %s exceeds total kton %s", ledger.ActiveKton, ledger.TotalKton)
	}

	depositSum := big.NewInt(0)
	for _, item := range ledger.DepositItems {
		depositSum.Add(depositSum, item.Value)
	}
	if depositSum.Cmp(ledger.ActiveDepositRing) != 0 {
		env.t.Fatalf("deposit items sum %s != active deposit ring %s", depositSum, ledger.ActiveDepositRing)
	}

	unlockingRing := big.NewInt(0)
	unlockingKton := big.NewInt(0)
	for _, chunk := range ledger.Unlocking {
		if chunk.Value.Kind == RingKind {
			unlockingRing.Add(unlockingRing, chunk.Value.Amount)
		} else {
			unlockingKton.Add(unlockingKton, chunk.Value.Amount)
		}
	}
	wantTotalRing := new(big.Int).Add(ledger.ActiveRing, unlockingRing)
	if ledger.TotalRing.Cmp(wantTotalRing) != 0 {
		env.t.Fatalf("total ring %s != active + unlocking %s", ledger.TotalRing, wantTotalRing)
	}
	wantTotalKton := new(big.Int).Add(ledger.ActiveKton, unlockingKton)
	if ledger.TotalKton.Cmp(wantTotalKton) != 0 {
		env.t.Fatalf("total kton %s != active + unlocking %s", ledger.TotalKton, wantTotalKton)
	}

	if got := env.ring.lockOf(ledger.Stash); got.Cmp(ledger.TotalRing) != 0 {
		env.t.Fatalf("ring lock %s != total ring %s", got, ledger.TotalRing)
	}
}

// checkPools asserts the pools equal the summed actives across the given
// controllers' ledgers.
func (env *testEnv) checkPools(controllers ...[20]byte) {
	env.t.Helper()
	wantRing := big.NewInt(0)
	wantKton := big.NewInt(0)
	for _, controller := range controllers {
		ledger, ok, err := env.module.Ledger(controller)
		if err != nil {
			env.t.Fatalf("ledger: %v", err)
		}
		if !ok {
			continue
		}
		wantRing.Add(wantRing, ledger.ActiveRing)
		wantKton.Add(wantKton, ledger.ActiveKton)
	}
	ring, kton, err := env.module.Pools()
	if err != nil {
		env.t.Fatalf("pools: %v", err)
	}
	if ring.Cmp(wantRing) != 0 {
		env.t.Fatalf("ring pool %s != summed actives %s", ring, wantRing)
	}
	if kton.Cmp(wantKton) != 0 {
		env.t.Fatalf("kton pool %s != summed actives %s", kton, wantKton)
	}
}
