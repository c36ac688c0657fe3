package fl

import (
	"fmt"
	"io"

	"github.com/sbinet/npyio"
)

// ReadNPY reads a float64 or float32 .npy array of any shape as a flat
// float64 vector in storage order.
func ReadNPY(r io.Reader) ([]float64, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid npy header: %w", err)
	}

	switch nr.Header.Descr.Type {
	case "<f8", "f8":
		var vec []float64
		if err := nr.Read(&vec); err != nil {
			return nil, fmt.Errorf("failed to read npy array: %w", err)
		}

		return vec, nil
	case "<f4", "f4":
		var vec32 []float32
		if err := nr.Read(&vec32); err != nil {
			return nil, fmt.Errorf("failed to read npy array: %w", err)
		}
		vec := make([]float64, len(vec32))
		for i, v := range vec32 {
			vec[i] = float64(v)
		}

		return vec, nil
	default:
		return nil, fmt.Errorf("%w: npy dtype %s", ErrUnknownFormat, nr.Header.Descr.Type)
	}
}

// WriteNPY writes params as a one-dimensional float32 .npy array.
func WriteNPY(w io.Writer, params []float32) error {
	if err := npyio.Write(w, params); err != nil {
		return fmt.Errorf("failed to write npy array: %w", err)
	}

	return nil
}
