package staking

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	validatorIndexKey        = []byte("staking/validatorIndex")
	nominatorIndexKey        = []byte("staking/nominatorIndex")
	currentElectedKey        = []byte("staking/currentElected")
	currentEraKey            = []byte("staking/currentEra")
	currentEraStartKey       = []byte("staking/currentEraStart")
	currentEraStartSessKey   = []byte("staking/currentEraStartSessionIndex")
	currentEraTotalRewardKey = []byte("staking/currentEraTotalReward")
	eraPointsKey             = []byte("staking/eraPoints")
	epochIndexKey            = []byte("staking/epochIndex")
	slotStakeKey             = []byte("staking/slotStake")
	forceEraKey              = []byte("staking/forceEra")
	slashRewardFractionKey   = []byte("staking/slashRewardFraction")
	invulnerablesKey         = []byte("staking/invulnerables")
	validatorCountKey        = []byte("staking/validatorCount")
	ringPoolKey              = []byte("staking/ringPool")
	ktonPoolKey              = []byte("staking/ktonPool")
)

func bondedKey(stash [20]byte) []byte {
	return []byte(fmt.Sprintf("staking/bonded/%x", stash))
}

func ledgerKey(controller [20]byte) []byte {
	return []byte(fmt.Sprintf("staking/ledger/%x", controller))
}

func payeeKey(stash [20]byte) []byte {
	return []byte(fmt.Sprintf("staking/payee/%x", stash))
}

func validatorKey(stash [20]byte) []byte {
	return []byte(fmt.Sprintf("staking/validators/%x", stash))
}

func nominatorKey(stash [20]byte) []byte {
	return []byte(fmt.Sprintf("staking/nominators/%x", stash))
}

func stakersKey(stash [20]byte) []byte {
	return []byte(fmt.Sprintf("staking/stakers/%x", stash))
}

func nodeNameKey(controller [20]byte) []byte {
	return []byte(fmt.Sprintf("staking/nodeName/%x", controller))
}

func slashJournalKey(era uint32) []byte {
	return []byte(fmt.Sprintf("staking/slashJournal/%d", era))
}

// --- bonded / ledger / payee ---

func (m *Module) bondedOf(stash [20]byte) ([20]byte, bool, error) {
	var controller [20]byte
	ok, err := m.state.KVGet(bondedKey(stash), &controller)
	return controller, ok, err
}

func (m *Module) putBonded(stash, controller [20]byte) error {
	return m.state.KVPut(bondedKey(stash), controller)
}

func (m *Module) ledgerOf(controller [20]byte) (*StakingLedger, bool, error) {
	ledger := new(StakingLedger)
	ok, err := m.state.KVGet(ledgerKey(controller), ledger)
	if err != nil || !ok {
		return nil, ok, err
	}
	ledger.normalize()
	return ledger, true, nil
}

func (m *Module) hasLedger(controller [20]byte) (bool, error) {
	_, ok, err := m.ledgerOf(controller)
	return ok, err
}

func (m *Module) putLedger(controller [20]byte, ledger *StakingLedger) error {
	return m.state.KVPut(ledgerKey(controller), ledger)
}

func (m *Module) payeeOf(stash [20]byte) (RewardDestination, error) {
	var dest uint8
	if _, err := m.state.KVGet(payeeKey(stash), &dest); err != nil {
		return PayToStash, err
	}
	return RewardDestination(dest), nil
}

func (m *Module) putPayee(stash [20]byte, dest RewardDestination) error {
	return m.state.KVPut(payeeKey(stash), uint8(dest))
}

// --- validators / nominators ---

func (m *Module) validatorPrefsOf(stash [20]byte) (ValidatorPrefs, bool, error) {
	var prefs ValidatorPrefs
	ok, err := m.state.KVGet(validatorKey(stash), &prefs)
	if err != nil || !ok {
		return DefaultValidatorPrefs(), ok, err
	}
	return prefs, true, nil
}

func (m *Module) putValidator(stash [20]byte, prefs ValidatorPrefs) error {
	if err := m.state.KVPut(validatorKey(stash), prefs); err != nil {
		return err
	}
	return m.indexInsert(validatorIndexKey, stash)
}

func (m *Module) removeValidator(stash [20]byte) error {
	if err := m.state.KVDelete(validatorKey(stash)); err != nil {
		return err
	}
	return m.indexRemove(validatorIndexKey, stash)
}

func (m *Module) validatorStashes() ([][20]byte, error) {
	return m.indexList(validatorIndexKey)
}

func (m *Module) nominationsOf(stash [20]byte) ([][20]byte, bool, error) {
	var targets [][20]byte
	ok, err := m.state.KVGet(nominatorKey(stash), &targets)
	return targets, ok, err
}

func (m *Module) putNominator(stash [20]byte, targets [][20]byte) error {
	if err := m.state.KVPut(nominatorKey(stash), targets); err != nil {
		return err
	}
	return m.indexInsert(nominatorIndexKey, stash)
}

func (m *Module) removeNominator(stash [20]byte) error {
	if err := m.state.KVDelete(nominatorKey(stash)); err != nil {
		return err
	}
	return m.indexRemove(nominatorIndexKey, stash)
}

func (m *Module) nominatorStashes() ([][20]byte, error) {
	return m.indexList(nominatorIndexKey)
}

// Index lists keep map enumeration deterministic: stashes are held sorted by
// address bytes.

func (m *Module) indexList(key []byte) ([][20]byte, error) {
	var list [][20]byte
	if _, err := m.state.KVGet(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Module) indexInsert(key []byte, stash [20]byte) error {
	list, err := m.indexList(key)
	if err != nil {
		return err
	}
	pos := sort.Search(len(list), func(i int) bool {
		return bytes.Compare(list[i][:], stash[:]) >= 0
	})
	if pos < len(list) && list[pos] == stash {
		return nil
	}
	list = append(list, [20]byte{})
	copy(list[pos+1:], list[pos:])
	list[pos] = stash
	return m.state.KVPut(key, list)
}

func (m *Module) indexRemove(key []byte, stash [20]byte) error {
	list, err := m.indexList(key)
	if err != nil {
		return err
	}
	pos := sort.Search(len(list), func(i int) bool {
		return bytes.Compare(list[i][:], stash[:]) >= 0
	})
	if pos >= len(list) || list[pos] != stash {
		return nil
	}
	list = append(list[:pos], list[pos+1:]...)
	return m.state.KVPut(key, list)
}

// --- exposures / elected set ---

func (m *Module) exposureOf(stash [20]byte) (*Exposure, bool, error) {
	exposure := new(Exposure)
	ok, err := m.state.KVGet(stakersKey(stash), exposure)
	if err != nil {
		return nil, false, err
	}
	exposure.normalize()
	return exposure, ok, nil
}

func (m *Module) putExposure(stash [20]byte, exposure *Exposure) error {
	return m.state.KVPut(stakersKey(stash), exposure)
}

func (m *Module) removeExposure(stash [20]byte) error {
	return m.state.KVDelete(stakersKey(stash))
}

func (m *Module) currentElected() ([][20]byte, error) {
	var elected [][20]byte
	if _, err := m.state.KVGet(currentElectedKey, &elected); err != nil {
		return nil, err
	}
	return elected, nil
}

func (m *Module) putCurrentElected(elected [][20]byte) error {
	return m.state.KVPut(currentElectedKey, elected)
}

// --- era counters ---

func (m *Module) currentEra() (uint32, error) {
	var era uint32
	_, err := m.state.KVGet(currentEraKey, &era)
	return era, err
}

func (m *Module) putCurrentEra(era uint32) error {
	return m.state.KVPut(currentEraKey, era)
}

func (m *Module) currentEraStartSessionIndex() (uint32, error) {
	var index uint32
	_, err := m.state.KVGet(currentEraStartSessKey, &index)
	return index, err
}

func (m *Module) putCurrentEraStart(moment uint64, sessionIndex uint32) error {
	if err := m.state.KVPut(currentEraStartKey, moment); err != nil {
		return err
	}
	return m.state.KVPut(currentEraStartSessKey, sessionIndex)
}

func (m *Module) epochIndex() (uint32, error) {
	var epoch uint32
	_, err := m.state.KVGet(epochIndexKey, &epoch)
	return epoch, err
}

func (m *Module) putEpochIndex(epoch uint32) error {
	return m.state.KVPut(epochIndexKey, epoch)
}

func (m *Module) currentEraTotalReward() (*big.Int, error) {
	reward := new(big.Int)
	if _, err := m.state.KVGet(currentEraTotalRewardKey, reward); err != nil {
		return nil, err
	}
	return reward, nil
}

func (m *Module) putCurrentEraTotalReward(reward *big.Int) error {
	return m.state.KVPut(currentEraTotalRewardKey, reward)
}

func (m *Module) eraPoints() (*EraPoints, error) {
	points := new(EraPoints)
	if _, err := m.state.KVGet(eraPointsKey, points); err != nil {
		return nil, err
	}
	return points, nil
}

func (m *Module) putEraPoints(points *EraPoints) error {
	return m.state.KVPut(eraPointsKey, points)
}

func (m *Module) slotStake() (*big.Int, error) {
	stake := new(big.Int)
	if _, err := m.state.KVGet(slotStakeKey, stake); err != nil {
		return nil, err
	}
	return stake, nil
}

func (m *Module) putSlotStake(stake *big.Int) error {
	return m.state.KVPut(slotStakeKey, stake)
}

func (m *Module) forceEra() (Forcing, error) {
	var forcing uint8
	_, err := m.state.KVGet(forceEraKey, &forcing)
	return Forcing(forcing), err
}

func (m *Module) putForceEra(forcing Forcing) error {
	return m.state.KVPut(forceEraKey, uint8(forcing))
}

// --- slashing parameters / journal ---

func (m *Module) slashRewardFraction() (Perbill, error) {
	var parts uint32
	_, err := m.state.KVGet(slashRewardFractionKey, &parts)
	return PerbillFromParts(parts), err
}

func (m *Module) putSlashRewardFraction(fraction Perbill) error {
	return m.state.KVPut(slashRewardFractionKey, fraction.Parts())
}

func (m *Module) invulnerables() ([][20]byte, error) {
	var list [][20]byte
	if _, err := m.state.KVGet(invulnerablesKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Module) putInvulnerables(list [][20]byte) error {
	return m.state.KVPut(invulnerablesKey, list)
}

func (m *Module) slashJournal(era uint32) ([]SlashJournalEntry, error) {
	var journal []SlashJournalEntry
	if _, err := m.state.KVGet(slashJournalKey(era), &journal); err != nil {
		return nil, err
	}
	for i := range journal {
		if journal[i].Amount == nil {
			journal[i].Amount = big.NewInt(0)
		}
		if journal[i].OwnSlash == nil {
			journal[i].OwnSlash = big.NewInt(0)
		}
	}
	return journal, nil
}

func (m *Module) putSlashJournal(era uint32, journal []SlashJournalEntry) error {
	return m.state.KVPut(slashJournalKey(era), journal)
}

// --- validator count / node names ---

func (m *Module) validatorCount() (uint32, error) {
	var count uint32
	_, err := m.state.KVGet(validatorCountKey, &count)
	return count, err
}

func (m *Module) putValidatorCount(count uint32) error {
	return m.state.KVPut(validatorCountKey, count)
}

func (m *Module) hasNodeName(controller [20]byte) (bool, error) {
	var name []byte
	ok, err := m.state.KVGet(nodeNameKey(controller), &name)
	return ok, err
}

func (m *Module) putNodeName(controller [20]byte, name []byte) error {
	return m.state.KVPut(nodeNameKey(controller), name)
}

// --- pools ---

func (m *Module) pools() (*big.Int, *big.Int, error) {
	ring := new(big.Int)
	if _, err := m.state.KVGet(ringPoolKey, ring); err != nil {
		return nil, nil, err
	}
	kton := new(big.Int)
	if _, err := m.state.KVGet(ktonPoolKey, kton); err != nil {
		return nil, nil, err
	}
	return ring, kton, nil
}

func (m *Module) mutatePool(kind BalanceKind, delta *big.Int) error {
	key := ringPoolKey
	if kind == KtonKind {
		key = ktonPoolKey
	}
	pool := new(big.Int)
	if _, err := m.state.KVGet(key, pool); err != nil {
		return err
	}
	pool.Add(pool, delta)
	if pool.Sign() < 0 {
		pool.SetInt64(0)
	}
	if err := m.state.KVPut(key, pool); err != nil {
		return err
	}
	m.observePools()
	return nil
}

func (m *Module) observePools() {
	if m.telemetry == nil {
		return
	}
	ring, kton, err := m.pools()
	if err != nil {
		return
	}
	ringValue, _ := new(big.Float).SetInt(ring).Float64()
	ktonValue, _ := new(big.Float).SetInt(kton).Float64()
	m.telemetry.SetPools(ringValue, ktonValue)
}

func addrHex(addr [20]byte) string {
	return common.Address(addr).Hex()
}
