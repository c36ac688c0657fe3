package fl

import (
	"fmt"
	"slices"
	"sync"
)

var _ GlobalModel = (*Model)(nil)

// Model is a GlobalModel storing its parameters as float32, the precision
// the trained networks keep their weights in. Writes are narrowed from
// float64.
type Model struct {
	mu      sync.RWMutex
	params  []float32
	version uint64
}

func NewModel(nParams int) *Model {
	return &Model{params: make([]float32, nParams)}
}

func NewModelFrom(params []float32) *Model {
	return &Model{params: slices.Clone(params)}
}

func (m *Model) Params() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]float64, len(m.params))
	for i, p := range m.params {
		out[i] = float64(p)
	}

	return out
}

func (m *Model) SetParams(params []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(params) != len(m.params) {
		return fmt.Errorf("%w: got %d params, model has %d", ErrDimensionMismatch, len(params), len(m.params))
	}
	for i, p := range params {
		m.params[i] = float32(p)
	}
	m.version++

	return nil
}

// Float32 returns a copy of the stored parameters.
func (m *Model) Float32() []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.params)
}

func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.params)
}

// Version counts the writes made through SetParams.
func (m *Model) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.version
}
