package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/multilayer/internal/dataset"
)

const netYAML = `
seed: 3
defaults:
  learning_rate: 0.5
layers:
  - {type: dense, n_in: 4, n_out: 5, activation: tanh}
  - {type: output, n_out: 3}
`

func writeFixtures(t *testing.T) (dir, cfgPath, dataPath string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "net.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(netYAML), 0o600))

	ds := dataset.Blobs(60, 4, 3, 11)
	var sb strings.Builder
	sb.WriteString("# f0,f1,f2,f3,class\n")
	for i := 0; i < ds.NumExamples(); i++ {
		for _, v := range ds.Features.RawRowView(i) {
			fmt.Fprintf(&sb, "%g,", v)
		}
		fmt.Fprintf(&sb, "%d\n", floats.MaxIdx(ds.Labels.RawRowView(i)))
	}
	dataPath = filepath.Join(dir, "blobs.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(sb.String()), 0o600))
	return dir, cfgPath, dataPath
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	assert.Equal(t, "multilayer "+version+"\n", out.String())

	out.Reset()
	require.NoError(t, run(nil, &out))
	assert.Contains(t, out.String(), "Commands:")

	assert.Error(t, run([]string{"serve"}, &out))
}

func TestRun_Summary(t *testing.T) {
	_, cfgPath, _ := writeFixtures(t)
	var out bytes.Buffer
	require.NoError(t, run([]string{"summary", "-config", cfgPath}, &out))
	assert.Contains(t, out.String(), "Total parameters: 43 (backprop: 43)")

	assert.Error(t, run([]string{"summary"}, &out))
}

func TestRun_TrainPredict(t *testing.T) {
	dir, cfgPath, dataPath := writeFixtures(t)
	model := filepath.Join(dir, "model.born")

	var out bytes.Buffer
	require.NoError(t, run([]string{
		"train", "-config", cfgPath, "-data", dataPath, "-classes", "3",
		"-batch", "20", "-epochs", "30", "-out", model,
	}, &out))
	assert.Contains(t, out.String(), "saved "+model+" (90 iterations")

	out.Reset()
	require.NoError(t, run([]string{"predict", "-model", model, "-data", dataPath, "-label-index", "-1", "-classes", "3"}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 61)
	var acc float64
	_, err := fmt.Sscanf(lines[60], "accuracy: %f", &acc)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.9)

	out.Reset()
	require.NoError(t, run([]string{"summary", "-model", model}, &out))
	assert.Contains(t, out.String(), "Iterations: 90")

	assert.Error(t, run([]string{"train", "-config", cfgPath}, &out))
}
