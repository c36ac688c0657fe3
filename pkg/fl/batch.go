package fl

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// UpdateBatch is an ordered set of agent updates. Insertion order is the
// column order used when the batch is stacked into a matrix.
type UpdateBatch struct {
	ids     []string
	updates map[string][]float64
}

func NewUpdateBatch() *UpdateBatch {
	return &UpdateBatch{
		updates: make(map[string][]float64),
	}
}

// Add appends the update of one agent. The vector is stored as given.
func (b *UpdateBatch) Add(id string, update []float64) error {
	if _, ok := b.updates[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, id)
	}
	b.ids = append(b.ids, id)
	b.updates[id] = update

	return nil
}

func (b *UpdateBatch) IDs() []string {
	return slices.Clone(b.ids)
}

func (b *UpdateBatch) Get(id string) ([]float64, bool) {
	u, ok := b.updates[id]

	return u, ok
}

func (b *UpdateBatch) Len() int {
	return len(b.ids)
}

// Dim returns the shared length of all updates.
func (b *UpdateBatch) Dim() (int, error) {
	if len(b.ids) == 0 {
		return 0, ErrNoUpdates
	}
	dim := len(b.updates[b.ids[0]])
	for _, id := range b.ids[1:] {
		if n := len(b.updates[id]); n != dim {
			return 0, fmt.Errorf("%w: agent %s has %d params, expected %d", ErrDimensionMismatch, id, n, dim)
		}
	}

	return dim, nil
}

// Clone deep-copies the batch.
func (b *UpdateBatch) Clone() *UpdateBatch {
	c := &UpdateBatch{
		ids:     slices.Clone(b.ids),
		updates: make(map[string][]float64, len(b.updates)),
	}
	for id, u := range b.updates {
		c.updates[id] = slices.Clone(u)
	}

	return c
}

// Stack returns an n_params × N matrix whose columns are the updates in
// insertion order. The matrix owns its data.
func (b *UpdateBatch) Stack() (*mat.Dense, error) {
	dim, err := b.Dim()
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty update vectors", ErrDimensionMismatch)
	}
	m := mat.NewDense(dim, len(b.ids), nil)
	for j, id := range b.ids {
		m.SetCol(j, b.updates[id])
	}

	return m, nil
}

func (b *UpdateBatch) vectors() [][]float64 {
	vs := make([][]float64, len(b.ids))
	for i, id := range b.ids {
		vs[i] = b.updates[id]
	}

	return vs
}
