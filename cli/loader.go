package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/absmach/fedguard/pkg/fl"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"
)

const maxParallelLoads = 8

// updateFiles expands directories into the update files they contain,
// sorted by name so the agent order is reproducible.
func updateFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch filepath.Ext(e.Name()) {
			case ".npy", ".json", ".cbor":
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	slices.Sort(files)

	return files, nil
}

// loadEnvelopes reads update files concurrently and returns them in the
// order of files. A bare .npy array becomes the update of an agent named
// after the file, weighing one sample.
func loadEnvelopes(files []string, round uint64) ([]fl.UpdateEnvelope, error) {
	envs := make([]fl.UpdateEnvelope, len(files))

	var g errgroup.Group
	g.SetLimit(maxParallelLoads)
	for i, f := range files {
		g.Go(func() error {
			env, err := loadEnvelope(f)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			if env.RoundID == 0 {
				env.RoundID = round
			}
			envs[i] = env

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return envs, nil
}

func loadEnvelope(path string) (fl.UpdateEnvelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fl.UpdateEnvelope{}, err
	}

	var env fl.UpdateEnvelope
	switch filepath.Ext(path) {
	case ".npy":
		return fl.UpdateEnvelope{
			AgentID:    strings.TrimSuffix(filepath.Base(path), ".npy"),
			NumSamples: 1,
			UpdateB64:  base64.StdEncoding.EncodeToString(data),
			Format:     fl.FormatNPY,
		}, nil
	case ".json":
		err = json.Unmarshal(data, &env)
	case ".cbor":
		err = cbor.Unmarshal(data, &env)
	default:
		return fl.UpdateEnvelope{}, fmt.Errorf("%w: %s", fl.ErrUnknownFormat, filepath.Ext(path))
	}
	if err != nil {
		return fl.UpdateEnvelope{}, fmt.Errorf("invalid envelope: %w", err)
	}

	return env, nil
}

func loadModel(path string) (*fl.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	params, err := fl.ReadNPY(f)
	if err != nil {
		return nil, err
	}
	params32 := make([]float32, len(params))
	for i, p := range params {
		params32[i] = float32(p)
	}

	return fl.NewModelFrom(params32), nil
}

func saveModel(path string, params []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fl.WriteNPY(f, params); err != nil {
		f.Close()

		return err
	}

	return f.Close()
}
