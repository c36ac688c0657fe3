package fl_test

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/absmach/fedguard/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeFormats(t *testing.T) {
	t.Parallel()
	vec := []float64{0.5, -1.25, 3e-7, 0}
	formats := []string{fl.FormatJSONF64, fl.FormatCBORF64, fl.FormatNPY}

	for _, format := range formats {
		t.Run(format, func(t *testing.T) {
			t.Parallel()
			env, err := fl.EncodeEnvelope("agent-1", 32, vec, format)
			require.NoError(t, err)
			assert.Equal(t, format, env.Format)
			assert.Equal(t, uint64(32), env.NumSamples)

			got, err := fl.DecodeEnvelope(env)
			require.NoError(t, err)
			assert.Equal(t, vec, got)
		})
	}
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		env  fl.UpdateEnvelope
		err  error
	}{
		{
			name: "unknown format",
			env:  fl.UpdateEnvelope{UpdateB64: base64.StdEncoding.EncodeToString([]byte("[1]")), Format: "proto"},
			err:  fl.ErrUnknownFormat,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := fl.DecodeEnvelope(tc.env)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := fl.DecodeEnvelope(fl.UpdateEnvelope{UpdateB64: "%%%"})
	assert.Error(t, err)

	_, err = fl.DecodeEnvelope(fl.UpdateEnvelope{UpdateB64: base64.StdEncoding.EncodeToString([]byte("{"))})
	assert.Error(t, err)

	_, err = fl.EncodeEnvelope("agent-1", 1, []float64{1}, "proto")
	assert.ErrorIs(t, err, fl.ErrUnknownFormat)
}

func TestDecodeEnvelopeDefaultsToJSON(t *testing.T) {
	t.Parallel()
	env := fl.UpdateEnvelope{UpdateB64: base64.StdEncoding.EncodeToString([]byte("[1,2.5]"))}
	got, err := fl.DecodeEnvelope(env)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5}, got)
}

func TestNewBatchFromEnvelopes(t *testing.T) {
	t.Parallel()
	a, err := fl.EncodeEnvelope("a", 10, []float64{1, 2}, fl.FormatJSONF64)
	require.NoError(t, err)
	b, err := fl.EncodeEnvelope("b", 30, []float64{3, 4}, fl.FormatCBORF64)
	require.NoError(t, err)

	batch, weights, err := fl.NewBatchFromEnvelopes([]fl.UpdateEnvelope{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, batch.IDs())
	assert.Equal(t, fl.AgentWeights{"a": 10, "b": 30}, weights)

	_, _, err = fl.NewBatchFromEnvelopes(nil)
	assert.ErrorIs(t, err, fl.ErrNoUpdates)

	_, _, err = fl.NewBatchFromEnvelopes([]fl.UpdateEnvelope{a, a})
	assert.ErrorIs(t, err, fl.ErrDuplicateAgent)

	short, err := fl.EncodeEnvelope("c", 1, []float64{1}, fl.FormatJSONF64)
	require.NoError(t, err)
	_, _, err = fl.NewBatchFromEnvelopes([]fl.UpdateEnvelope{a, short})
	assert.ErrorIs(t, err, fl.ErrDimensionMismatch)
}

func TestNPYFloat32(t *testing.T) {
	t.Parallel()
	buf := new(bytes.Buffer)
	require.NoError(t, fl.WriteNPY(buf, []float32{1.5, -2, 0.125}))

	got, err := fl.ReadNPY(buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2, 0.125}, got)

	_, err = fl.ReadNPY(bytes.NewReader([]byte("not an npy file")))
	assert.Error(t, err)
}
