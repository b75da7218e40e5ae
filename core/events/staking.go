package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeStakingReward is emitted once per era after all elected validators
	// have been rewarded, carrying the per-validator share.
	TypeStakingReward = "staking.reward"
	// TypeStakingOfflineWarning signals an offline validator still within its
	// grace period, together with the accrued slash count.
	TypeStakingOfflineWarning = "staking.offlineWarning"
	// TypeStakingOfflineSlash signals that a validator and its nominators were
	// slashed by the given ratio.
	TypeStakingOfflineSlash = "staking.offlineSlash"
	// TypeStakingNodeNameUpdated is emitted the first time a controller
	// registers a node name.
	TypeStakingNodeNameUpdated = "staking.nodeNameUpdated"
	// TypeStakingOldReportDiscarded is emitted when an offence report from a
	// prior era is dropped instead of applied.
	TypeStakingOldReportDiscarded = "staking.oldSlashingReportDiscarded"
)

// StakingReward captures the equal per-validator reward distributed at an era
// boundary.
type StakingReward struct {
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (StakingReward) EventType() string { return TypeStakingReward }

// Attributes renders the payload for broadcast.
func (e StakingReward) Attributes() map[string]string {
	return map[string]string{"amount": formatAmount(e.Amount)}
}

// StakingOfflineWarning reports a validator under its unstake threshold.
type StakingOfflineWarning struct {
	Validator  [20]byte
	SlashCount uint32
}

// EventType satisfies the Event interface.
func (StakingOfflineWarning) EventType() string { return TypeStakingOfflineWarning }

// Attributes renders the payload for broadcast.
func (e StakingOfflineWarning) Attributes() map[string]string {
	return map[string]string{
		"validator":  common.Address(e.Validator).Hex(),
		"slashCount": formatUint(uint64(e.SlashCount)),
	}
}

// StakingOfflineSlash reports a validator slashed by the given ratio in
// parts-per-billion.
type StakingOfflineSlash struct {
	Validator [20]byte
	Ratio     uint32
}

// EventType satisfies the Event interface.
func (StakingOfflineSlash) EventType() string { return TypeStakingOfflineSlash }

// Attributes renders the payload for broadcast.
func (e StakingOfflineSlash) Attributes() map[string]string {
	return map[string]string{
		"validator": common.Address(e.Validator).Hex(),
		"ratio":     formatUint(uint64(e.Ratio)),
	}
}

// StakingNodeNameUpdated marks the first node-name registration for a
// controller.
type StakingNodeNameUpdated struct {
	Controller [20]byte
	Name       string
}

// EventType satisfies the Event interface.
func (StakingNodeNameUpdated) EventType() string { return TypeStakingNodeNameUpdated }

// Attributes renders the payload for broadcast.
func (e StakingNodeNameUpdated) Attributes() map[string]string {
	return map[string]string{
		"controller": common.Address(e.Controller).Hex(),
		"name":       e.Name,
	}
}

// StakingOldReportDiscarded records an offence report rejected by the
// historical filter.
type StakingOldReportDiscarded struct {
	SessionIndex uint32
}

// EventType satisfies the Event interface.
func (StakingOldReportDiscarded) EventType() string { return TypeStakingOldReportDiscarded }

// Attributes renders the payload for broadcast.
func (e StakingOldReportDiscarded) Attributes() map[string]string {
	return map[string]string{"sessionIndex": formatUint(uint64(e.SessionIndex))}
}
