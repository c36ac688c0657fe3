package fl

// GlobalModel owns the global parameter vector. The aggregator reads it as
// one flat vector and overwrites it as a whole.
type GlobalModel interface {
	Params() []float64
	SetParams(params []float64) error
}

// AgentWeights maps an agent id to its local dataset size.
type AgentWeights map[string]float64

// Report summarizes one aggregation round.
type Report struct {
	Round         uint64    `json:"round"`
	NumAgents     int       `json:"num_agents"`
	NumCorrupt    int       `json:"num_corrupt"`
	Rule          Rule      `json:"rule"`
	Defense       Defense   `json:"defense"`
	UpdateNorm    float64   `json:"update_norm"`
	NegativeLR    int       `json:"negative_lr"`
	NoiseStd      float64   `json:"noise_std"`
	LearningRates []float64 `json:"-"`
}
