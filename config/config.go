package config

import (
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/emergenetwork/darwinia/observability/logging"
)

// Config is the top-level node configuration.
type Config struct {
	DataDir string        `toml:"DataDir"`
	Env     string        `toml:"Env"`
	Staking StakingConfig `toml:"staking"`
}

// StakingConfig carries the staking runtime parameters and the genesis staker
// set.
type StakingConfig struct {
	SessionsPerEra        uint32         `toml:"SessionsPerEra"`
	BondingDuration       uint32         `toml:"BondingDuration"`
	SessionLength         uint64         `toml:"SessionLength"`
	ErasPerEpoch          uint32         `toml:"ErasPerEpoch"`
	ValidatorCount        uint32         `toml:"ValidatorCount"`
	MinimumValidatorCount uint32         `toml:"MinimumValidatorCount"`
	SessionRewardPercent  uint32         `toml:"SessionRewardPercent"`
	SlashRewardPercent    uint32         `toml:"SlashRewardPercent"`
	Cap                   string         `toml:"Cap"`
	Equalize              bool           `toml:"Equalize"`
	Genesis               StakingGenesis `toml:"genesis"`
}

// StakingGenesis lists the stakers bonded at chain start.
type StakingGenesis struct {
	Stakers []GenesisStaker `toml:"stakers"`
}

// GenesisStaker describes one bonded account pair in genesis.
type GenesisStaker struct {
	Stash      string   `toml:"Stash"`
	Controller string   `toml:"Controller"`
	Value      string   `toml:"Value"`
	Role       string   `toml:"Role"`
	Targets    []string `toml:"Targets"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Logger configures the process logger for the named service, tagged with
// the configured environment.
func (c *Config) Logger(service string) *slog.Logger {
	return logging.Setup(service, c.Env)
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir: "./data",
		Staking: DefaultStakingConfig(),
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultStakingConfig returns the parameters used when no file overrides
// them.
func DefaultStakingConfig() StakingConfig {
	return StakingConfig{
		SessionsPerEra:        3,
		BondingDuration:       3,
		SessionLength:         300,
		ErasPerEpoch:          10,
		ValidatorCount:        7,
		MinimumValidatorCount: 4,
		SessionRewardPercent:  60,
		SlashRewardPercent:    10,
		Cap:                   "10000000000000000000000000000",
	}
}

// Validate checks the staking section for internally consistent values.
func (c *Config) Validate() error {
	s := c.Staking
	if s.SessionsPerEra == 0 {
		return fmt.Errorf("config: SessionsPerEra must be positive")
	}
	if s.ErasPerEpoch == 0 {
		return fmt.Errorf("config: ErasPerEpoch must be positive")
	}
	if s.SessionRewardPercent > 100 {
		return fmt.Errorf("config: SessionRewardPercent must be <= 100")
	}
	if s.SlashRewardPercent > 100 {
		return fmt.Errorf("config: SlashRewardPercent must be <= 100")
	}
	if _, err := s.CapAmount(); err != nil {
		return err
	}
	for i, staker := range s.Genesis.Stakers {
		if _, err := parseAddress(staker.Stash); err != nil {
			return fmt.Errorf("config: staker %d stash: %w", i, err)
		}
		if _, err := parseAddress(staker.Controller); err != nil {
			return fmt.Errorf("config: staker %d controller: %w", i, err)
		}
		if _, err := parseAmount(staker.Value); err != nil {
			return fmt.Errorf("config: staker %d value: %w", i, err)
		}
		switch strings.ToLower(strings.TrimSpace(staker.Role)) {
		case "validator", "nominator", "idle", "":
		default:
			return fmt.Errorf("config: staker %d role %q unknown", i, staker.Role)
		}
	}
	return nil
}

// CapAmount parses the configured token supply cap.
func (s StakingConfig) CapAmount() (*big.Int, error) {
	return parseAmount(s.Cap)
}

// StashAddress parses the staker's stash account.
func (g GenesisStaker) StashAddress() ([20]byte, error) {
	return parseAddress(g.Stash)
}

// ControllerAddress parses the staker's controller account.
func (g GenesisStaker) ControllerAddress() ([20]byte, error) {
	return parseAddress(g.Controller)
}

// Amount parses the staker's bonded value.
func (g GenesisStaker) Amount() (*big.Int, error) {
	return parseAmount(g.Value)
}

// TargetAddresses parses the nomination targets of a genesis nominator.
func (g GenesisStaker) TargetAddresses() ([][20]byte, error) {
	targets := make([][20]byte, 0, len(g.Targets))
	for _, raw := range g.Targets {
		addr, err := parseAddress(raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, addr)
	}
	return targets, nil
}

func parseAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("config: invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid amount %q", raw)
	}
	return value, nil
}
