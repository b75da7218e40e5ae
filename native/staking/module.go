package staking

import (
	"errors"
	"log/slog"
	"math/big"
	"strings"

	"github.com/emergenetwork/darwinia/core/events"
	"github.com/emergenetwork/darwinia/observability/logging"
	"github.com/emergenetwork/darwinia/observability/metrics"
)

// logService tags the module's log lines when no logger is injected.
const logService = "staking"

// Module is the dual-token staking runtime: ledger accounting, the
// proportional election, era rotation and slashing, over injected currency,
// time and session capabilities.
type Module struct {
	state    State
	ring     Currency
	kton     Currency
	clock    TimeProvider
	session  SessionInterface
	schedule RewardSchedule

	ringSlash  ImbalanceSink
	ringReward ImbalanceSink
	ktonSlash  ImbalanceSink
	ktonReward ImbalanceSink

	emitter   events.Emitter
	params    Params
	log       *slog.Logger
	telemetry *metrics.StakingMetrics
}

// ModuleConfig wires the module's external collaborators.
type ModuleConfig struct {
	State   State
	Ring    Currency
	Kton    Currency
	Time    TimeProvider
	Session SessionInterface
	// Schedule recomputes the per-era reward at epoch boundaries. When nil, a
	// cap-based default releasing 1% of the remaining supply per epoch is
	// used.
	Schedule RewardSchedule

	RingSlash  ImbalanceSink
	RingReward ImbalanceSink
	KtonSlash  ImbalanceSink
	KtonReward ImbalanceSink

	Emitter events.Emitter
	Params  Params
	// Logger receives the module's log lines. When nil, the process logger is
	// configured via logging.Setup, tagged with Env.
	Logger *slog.Logger
	// Env is the deployment environment label applied by the fallback logger
	// setup. Node assembly passes config.Config.Env here.
	Env string
	// Telemetry enables prometheus instrumentation when set.
	Telemetry *metrics.StakingMetrics
}

// New constructs the staking module and seeds the state-resident parameters
// that root calls may later adjust.
func New(cfg ModuleConfig) (*Module, error) {
	if cfg.State == nil {
		return nil, errors.New("staking: state not configured")
	}
	if cfg.Ring == nil || cfg.Kton == nil {
		return nil, errors.New("staking: both currencies must be configured")
	}
	if cfg.Time == nil {
		return nil, errors.New("staking: time provider not configured")
	}
	if cfg.Session == nil {
		return nil, errors.New("staking: session interface not configured")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}

	m := &Module{
		state:      cfg.State,
		ring:       cfg.Ring,
		kton:       cfg.Kton,
		clock:      cfg.Time,
		session:    cfg.Session,
		schedule:   cfg.Schedule,
		ringSlash:  orDiscard(cfg.RingSlash),
		ringReward: orDiscard(cfg.RingReward),
		ktonSlash:  orDiscard(cfg.KtonSlash),
		ktonReward: orDiscard(cfg.KtonReward),
		emitter:    cfg.Emitter,
		params:     cfg.Params,
		log:        cfg.Logger,
		telemetry:  cfg.Telemetry,
	}
	if m.schedule == nil {
		m.schedule = capSchedule{ring: cfg.Ring, cap: cfg.Params.Cap, erasPerEpoch: cfg.Params.ErasPerEpoch}
	}
	if m.emitter == nil {
		m.emitter = events.NoopEmitter{}
	}
	if m.log == nil {
		m.log = logging.Setup(logService, cfg.Env)
	}

	if err := m.seedState(); err != nil {
		return nil, err
	}
	return m, nil
}

func orDiscard(sink ImbalanceSink) ImbalanceSink {
	if sink == nil {
		return discardSink{}
	}
	return sink
}

func (m *Module) seedState() error {
	var count uint32
	if ok, err := m.state.KVGet(validatorCountKey, &count); err != nil {
		return err
	} else if !ok {
		if err := m.putValidatorCount(m.params.ValidatorCount); err != nil {
			return err
		}
	}
	var parts uint32
	if ok, err := m.state.KVGet(slashRewardFractionKey, &parts); err != nil {
		return err
	} else if !ok {
		if err := m.putSlashRewardFraction(m.params.SlashRewardFraction); err != nil {
			return err
		}
	}
	reward := new(big.Int)
	if ok, err := m.state.KVGet(currentEraTotalRewardKey, reward); err != nil {
		return err
	} else if !ok {
		if err := m.putCurrentEraTotalReward(m.schedule.EraTotalReward(0)); err != nil {
			return err
		}
	}
	return nil
}

// --- root calls ---

// SetValidatorCount sets the ideal number of validators.
func (m *Module) SetValidatorCount(count uint32) error {
	return m.putValidatorCount(count)
}

// ForceNewEra arranges for the next session to begin a new era.
func (m *Module) ForceNewEra() error {
	return m.putForceEra(ForceNew)
}

// SetInvulnerables replaces the set of validators that may never be slashed
// or forcibly kicked.
func (m *Module) SetInvulnerables(validators [][20]byte) error {
	return m.putInvulnerables(validators)
}

// --- genesis ---

// GenesisRole names what a genesis staker signs up as.
type GenesisRole string

const (
	// GenesisRoleValidator registers the staker as a validator candidate.
	GenesisRoleValidator GenesisRole = "validator"
	// GenesisRoleNominator registers the staker's nomination targets.
	GenesisRoleNominator GenesisRole = "nominator"
	// GenesisRoleIdle bonds without declaring either intention.
	GenesisRoleIdle GenesisRole = "idle"
)

// GenesisStaker is one bonded pair applied at chain start.
type GenesisStaker struct {
	Stash      [20]byte
	Controller [20]byte
	Value      *big.Int
	Role       GenesisRole
	Targets    [][20]byte
}

// ApplyGenesis bonds the configured stakers with a 12-month ring promise and
// registers their declared roles.
func (m *Module) ApplyGenesis(stakers []GenesisStaker) error {
	for _, staker := range stakers {
		if m.ring.FreeBalance(staker.Stash).Cmp(staker.Value) < 0 {
			return errors.New("staking: genesis stash underfunded")
		}
		if err := m.Bond(staker.Stash, staker.Controller, RingBalance(staker.Value), PayToStash, 12); err != nil {
			return err
		}
		switch GenesisRole(strings.ToLower(string(staker.Role))) {
		case GenesisRoleValidator:
			if err := m.Validate(staker.Controller, nil, 0, 3); err != nil {
				return err
			}
		case GenesisRoleNominator:
			if err := m.Nominate(staker.Controller, staker.Targets); err != nil {
				return err
			}
		}
	}
	return nil
}

// SelectInitialValidators runs the election once so the session module can
// bootstrap its first set.
func (m *Module) SelectInitialValidators() ([][20]byte, error) {
	_, winners, err := m.selectValidators()
	return winners, err
}

// --- queries for external modules ---

// StashOf resolves a controller back to its stash.
func (m *Module) StashOf(controller [20]byte) ([20]byte, bool, error) {
	ledger, ok, err := m.ledgerOf(controller)
	if err != nil || !ok {
		return [20]byte{}, ok, err
	}
	return ledger.Stash, true, nil
}

// Ledger returns a copy of the staking ledger for the controller.
func (m *Module) Ledger(controller [20]byte) (*StakingLedger, bool, error) {
	return m.ledgerOf(controller)
}

// ExposureOf returns the current era exposure of the validator stash. The
// session's historical layer uses this as the full identification.
func (m *Module) ExposureOf(stash [20]byte) (*Exposure, bool, error) {
	return m.exposureOf(stash)
}

// CurrentElected lists the winners of the last election in election order.
func (m *Module) CurrentElected() ([][20]byte, error) {
	return m.currentElected()
}

// CurrentEra returns the era counter.
func (m *Module) CurrentEra() (uint32, error) {
	return m.currentEra()
}

// EpochIndex returns the epoch counter.
func (m *Module) EpochIndex() (uint32, error) {
	return m.epochIndex()
}

// SlotStake returns the minimum exposure backing an elected validator.
func (m *Module) SlotStake() (*big.Int, error) {
	return m.slotStake()
}

// Pools returns the summed active ring and kton across all ledgers.
func (m *Module) Pools() (*big.Int, *big.Int, error) {
	return m.pools()
}

// ForceEraMode returns the current era-forcing mode.
func (m *Module) ForceEraMode() (Forcing, error) {
	return m.forceEra()
}

// SlashJournal returns the ordered slashes applied within the era.
func (m *Module) SlashJournal(era uint32) ([]SlashJournalEntry, error) {
	return m.slashJournal(era)
}
