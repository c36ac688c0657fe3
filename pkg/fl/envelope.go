package fl

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/sbinet/npyio"
)

const (
	FormatJSONF64 = "json-f64"
	FormatCBORF64 = "cbor-f64"
	FormatNPY     = "npy"
)

// UpdateEnvelope carries one encoded agent update.
type UpdateEnvelope struct {
	JobID      string `json:"job_id"`
	RoundID    uint64 `json:"round_id"`
	AgentID    string `json:"agent_id"`
	NumSamples uint64 `json:"num_samples"`
	UpdateB64  string `json:"update_b64"`
	Format     string `json:"format,omitempty"`
}

// EncodeEnvelope wraps vec in an envelope of the given format. An empty
// format means json-f64.
func EncodeEnvelope(agentID string, numSamples uint64, vec []float64, format string) (UpdateEnvelope, error) {
	if format == "" {
		format = FormatJSONF64
	}

	var raw []byte
	var err error
	switch format {
	case FormatJSONF64:
		raw, err = json.Marshal(vec)
	case FormatCBORF64:
		raw, err = cbor.Marshal(vec)
	case FormatNPY:
		buf := new(bytes.Buffer)
		err = npyio.Write(buf, vec)
		raw = buf.Bytes()
	default:
		return UpdateEnvelope{}, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return UpdateEnvelope{}, fmt.Errorf("failed to encode %s update: %w", format, err)
	}

	return UpdateEnvelope{
		AgentID:    agentID,
		NumSamples: numSamples,
		UpdateB64:  base64.StdEncoding.EncodeToString(raw),
		Format:     format,
	}, nil
}

// DecodeEnvelope returns the update vector carried by env.
func DecodeEnvelope(env UpdateEnvelope) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(env.UpdateB64)
	if err != nil {
		return nil, fmt.Errorf("invalid update_b64: %w", err)
	}

	format := env.Format
	if format == "" {
		format = FormatJSONF64
	}

	var vec []float64
	switch format {
	case FormatJSONF64:
		if err := json.Unmarshal(raw, &vec); err != nil {
			return nil, fmt.Errorf("invalid json-f64 payload: %w", err)
		}
	case FormatCBORF64:
		if err := cbor.Unmarshal(raw, &vec); err != nil {
			return nil, fmt.Errorf("invalid cbor-f64 payload: %w", err)
		}
	case FormatNPY:
		if vec, err = ReadNPY(bytes.NewReader(raw)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	return vec, nil
}

// NewBatchFromEnvelopes decodes envs in order and weighs every agent by its
// sample count.
func NewBatchFromEnvelopes(envs []UpdateEnvelope) (*UpdateBatch, AgentWeights, error) {
	if len(envs) == 0 {
		return nil, nil, ErrNoUpdates
	}

	batch := NewUpdateBatch()
	weights := make(AgentWeights, len(envs))
	for _, env := range envs {
		vec, err := DecodeEnvelope(env)
		if err != nil {
			return nil, nil, fmt.Errorf("agent %s: %w", env.AgentID, err)
		}
		if err := batch.Add(env.AgentID, vec); err != nil {
			return nil, nil, err
		}
		weights[env.AgentID] = float64(env.NumSamples)
	}
	if _, err := batch.Dim(); err != nil {
		return nil, nil, err
	}

	return batch, weights, nil
}
