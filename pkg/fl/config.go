package fl

import (
	"fmt"
	"strings"
)

// Rule selects how agent updates are combined. Rules prefixed with
// "poison_" first corrupt the leading agents with an attack and then apply
// the configured Defense.
type Rule uint8

const (
	RuleAverage Rule = iota
	RuleQuantizedAverage
	RuleCoordinateMedian
	RuleSign
	RuleGeometricMedian
	RuleSignFlip
	RuleAdditiveNoise
	RuleScale
	RuleMinMax
	RuleMinSum
)

var ruleNames = map[Rule]string{
	RuleAverage:          "avg",
	RuleQuantizedAverage: "quantize_avg",
	RuleCoordinateMedian: "comed",
	RuleSign:             "sign",
	RuleGeometricMedian:  "geomed",
	RuleSignFlip:         "poison_sign_flip",
	RuleAdditiveNoise:    "poison_additive_noise",
	RuleScale:            "poison_scale",
	RuleMinMax:           "poison_minmax",
	RuleMinSum:           "poison_minsum",
}

func ParseRule(s string) (Rule, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for r, n := range ruleNames {
		if n == name {
			return r, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownRule, s)
}

func (r Rule) String() string {
	if n, ok := ruleNames[r]; ok {
		return n
	}

	return fmt.Sprintf("rule(%d)", uint8(r))
}

func (r Rule) MarshalText() ([]byte, error) {
	if _, ok := ruleNames[r]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRule, uint8(r))
	}

	return []byte(r.String()), nil
}

func (r *Rule) UnmarshalText(text []byte) error {
	parsed, err := ParseRule(string(text))
	if err != nil {
		return err
	}
	*r = parsed

	return nil
}

// IsPoisoning reports whether the rule simulates an attack.
func (r Rule) IsPoisoning() bool {
	return r >= RuleSignFlip && r <= RuleMinSum
}

// DefaultNumCorrupt is the number of corrupt agents an attack uses when the
// configuration leaves it unset.
func (r Rule) DefaultNumCorrupt() int {
	switch r {
	case RuleSignFlip, RuleMinMax:
		return 3
	case RuleAdditiveNoise, RuleScale, RuleMinSum:
		return 1
	default:
		return 0
	}
}

// Defense selects the combiner applied to an attacked update matrix.
type Defense uint8

const (
	DefenseNone Defense = iota
	DefenseCoordinateMedian
	DefenseGeometricMedian
)

var defenseNames = map[Defense]string{
	DefenseNone:             "none",
	DefenseCoordinateMedian: "coord_median",
	DefenseGeometricMedian:  "geo_median",
}

// ParseDefense accepts the empty string as DefenseNone.
func ParseDefense(s string) (Defense, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return DefenseNone, nil
	}
	for d, n := range defenseNames {
		if n == name {
			return d, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownDefense, s)
}

func (d Defense) String() string {
	if n, ok := defenseNames[d]; ok {
		return n
	}

	return fmt.Sprintf("defense(%d)", uint8(d))
}

func (d Defense) MarshalText() ([]byte, error) {
	if _, ok := defenseNames[d]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDefense, uint8(d))
	}

	return []byte(d.String()), nil
}

func (d *Defense) UnmarshalText(text []byte) error {
	parsed, err := ParseDefense(string(text))
	if err != nil {
		return err
	}
	*d = parsed

	return nil
}

// Config is fixed for the lifetime of an Aggregator.
type Config struct {
	Rule              Rule
	Defense           Defense
	ServerLR          float64
	RobustLRThreshold float64
	// Clip is the L2 bound used for clipping and to scale the noise std.
	Clip  float64
	Noise float64
	// NumCorrupt below zero selects Rule.DefaultNumCorrupt.
	NumCorrupt  int
	ClipUpdates bool
	// Seed of the attack and noise generator; zero picks a random seed.
	Seed uint64
}

func (c Config) validate(nParams int) error {
	if _, ok := ruleNames[c.Rule]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRule, uint8(c.Rule))
	}
	if _, ok := defenseNames[c.Defense]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDefense, uint8(c.Defense))
	}
	switch {
	case nParams <= 0:
		return fmt.Errorf("%w: n_params must be positive, got %d", ErrInvalidConfig, nParams)
	case c.ServerLR < 0:
		return fmt.Errorf("%w: negative server learning rate", ErrInvalidConfig)
	case c.RobustLRThreshold < 0:
		return fmt.Errorf("%w: negative robust learning rate threshold", ErrInvalidConfig)
	case c.Clip < 0:
		return fmt.Errorf("%w: negative clip bound", ErrInvalidConfig)
	case c.Noise < 0:
		return fmt.Errorf("%w: negative noise multiplier", ErrInvalidConfig)
	case c.Noise > 0 && c.Clip == 0:
		return fmt.Errorf("%w: noise requires a clip bound", ErrInvalidConfig)
	case c.ClipUpdates && c.Clip == 0:
		return fmt.Errorf("%w: clipping requires a clip bound", ErrInvalidConfig)
	}

	return nil
}

func (c Config) numCorrupt() int {
	if c.NumCorrupt < 0 {
		return c.Rule.DefaultNumCorrupt()
	}

	return c.NumCorrupt
}
