package fl_test

import (
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/absmach/fedguard/pkg/errors"
	"github.com/absmach/fedguard/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportStore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := fl.NewReportStore(dir)
	require.NoError(t, err)

	rounds, err := store.List("job-1")
	require.NoError(t, err)
	assert.Empty(t, rounds)

	for _, round := range []uint64{3, 1, 12} {
		require.NoError(t, store.Save("job-1", fl.Report{
			Round:      round,
			NumAgents:  5,
			NumCorrupt: 1,
			Rule:       fl.RuleScale,
			Defense:    fl.DefenseGeometricMedian,
			UpdateNorm: 0.75,
		}))
	}

	rounds, err = store.List("job-1")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 12}, rounds)

	r, err := store.Load("job-1", 12)
	require.NoError(t, err)
	assert.Equal(t, fl.Report{
		Round:      12,
		NumAgents:  5,
		NumCorrupt: 1,
		Rule:       fl.RuleScale,
		Defense:    fl.DefenseGeometricMedian,
		UpdateNorm: 0.75,
	}, r)

	_, err = store.Load("job-1", 2)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestReportStoreJobIDs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := fl.NewReportStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("ab", fl.Report{Round: 1}))
	_, err = os.Stat(filepath.Join(dir, "ab", "round_1.json"))
	require.NoError(t, err)

	cases := []struct {
		name  string
		jobID string
		err   error
	}{
		{name: "empty", jobID: "", err: pkgerrors.ErrEmptyKey},
		{name: "path separator", jobID: "a/b", err: pkgerrors.ErrInvalidData},
		{name: "parent directory", jobID: "../../escape", err: pkgerrors.ErrInvalidData},
		{name: "dot only", jobID: "..", err: pkgerrors.ErrInvalidData},
		{name: "non ascii", jobID: "jöb", err: pkgerrors.ErrInvalidData},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := store.Save(tc.jobID, fl.Report{Round: 2})
			assert.ErrorIs(t, err, tc.err)

			_, err = store.Load(tc.jobID, 1)
			assert.ErrorIs(t, err, tc.err)

			_, err = store.List(tc.jobID)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	rounds, err := store.List("ab")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, rounds)
}
