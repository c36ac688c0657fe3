package fedguard

import (
	"fmt"
	"os"

	"github.com/absmach/fedguard/pkg/fl"
	"github.com/pelletier/go-toml"
)

// Config is read from the environment first; a TOML file then overrides
// the keys it sets.
type Config struct {
	Aggregator AggregatorConfig `toml:"aggregator"`
	Simulation SimulationConfig `toml:"simulation"`
}

type AggregatorConfig struct {
	Rule              string  `toml:"rule"                env:"FEDGUARD_RULE"                envDefault:"avg"`
	Defense           string  `toml:"defense"             env:"FEDGUARD_DEFENSE"             envDefault:"none"`
	ServerLR          float64 `toml:"server_lr"           env:"FEDGUARD_SERVER_LR"           envDefault:"1"`
	RobustLRThreshold float64 `toml:"robust_lr_threshold" env:"FEDGUARD_ROBUST_LR_THRESHOLD" envDefault:"0"`
	Clip              float64 `toml:"clip"                env:"FEDGUARD_CLIP"                envDefault:"0"`
	Noise             float64 `toml:"noise"               env:"FEDGUARD_NOISE"               envDefault:"0"`
	NumCorrupt        int     `toml:"num_corrupt"         env:"FEDGUARD_NUM_CORRUPT"         envDefault:"-1"`
	ClipUpdates       bool    `toml:"clip_updates"        env:"FEDGUARD_CLIP_UPDATES"        envDefault:"false"`
	Seed              uint64  `toml:"seed"                env:"FEDGUARD_SEED"                envDefault:"0"`
}

type SimulationConfig struct {
	Agents    int     `toml:"agents"     env:"FEDGUARD_SIM_AGENTS"     envDefault:"10"`
	Params    int     `toml:"params"     env:"FEDGUARD_SIM_PARAMS"     envDefault:"1000"`
	Rounds    int     `toml:"rounds"     env:"FEDGUARD_SIM_ROUNDS"     envDefault:"20"`
	Step      float64 `toml:"step"       env:"FEDGUARD_SIM_STEP"       envDefault:"0.5"`
	HonestStd float64 `toml:"honest_std" env:"FEDGUARD_SIM_HONEST_STD" envDefault:"0.1"`
}

// LoadConfig overlays the TOML file at path on base.
func LoadConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg := base
	if err := tree.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// FLConfig resolves rule and defense names.
func (c AggregatorConfig) FLConfig() (fl.Config, error) {
	rule, err := fl.ParseRule(c.Rule)
	if err != nil {
		return fl.Config{}, err
	}
	defense, err := fl.ParseDefense(c.Defense)
	if err != nil {
		return fl.Config{}, err
	}

	return fl.Config{
		Rule:              rule,
		Defense:           defense,
		ServerLR:          c.ServerLR,
		RobustLRThreshold: c.RobustLRThreshold,
		Clip:              c.Clip,
		Noise:             c.Noise,
		NumCorrupt:        c.NumCorrupt,
		ClipUpdates:       c.ClipUpdates,
		Seed:              c.Seed,
	}, nil
}
