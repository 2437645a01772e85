package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniacca/rxdyn/internal/achem"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExampleScenariosAreValid(t *testing.T) {
	paths, err := filepath.Glob("../../examples/*")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			cfg, err := achem.LoadScenarioFile(path)
			require.NoError(t, err)
			_, err = achem.NewEnvironment(cfg)
			require.NoError(t, err)
		})
	}
}

func TestRun(t *testing.T) {
	snapshot := filepath.Join(t.TempDir(), "decay"+achem.SnapshotExt)
	out, err := execute(t, "run", "../../examples/decay.yaml", "--steps", "20", "--every", "10", "--snapshot", snapshot)
	require.NoError(t, err)

	assert.Contains(t, out, "t=0.01 ")
	assert.Contains(t, out, "t=0.02 ")
	assert.Contains(t, out, "Simulation finished (scenario=decay, steps=20, time=0.02)")
	assert.Contains(t, out, "Species counts:")
	assert.Contains(t, out, "  A: ")

	snap, err := achem.ReadSnapshotFile(snapshot)
	require.NoError(t, err)
	assert.Equal(t, int64(20), snap.Time)
	assert.Equal(t, achem.EnvironmentID("simulation"), snap.EnvironmentID)

	out, err = execute(t, "run", "../../examples/decay.yaml", "--steps", "5", "--from", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "steps=25")
}

func TestRun_Errors(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)

	_, err = execute(t, "run", "missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading scenario")

	_, err = execute(t, "run", "../../examples/decay.yaml", "--steps", "-1")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.snapshot.json.zst")
	require.NoError(t, os.WriteFile(bad, []byte("not zstd"), 0o644))
	_, err = execute(t, "run", "../../examples/decay.yaml", "--from", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading snapshot")
}

func TestCheck(t *testing.T) {
	out, err := execute(t, "check", "../../examples/decay.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "REACTION")
	assert.Contains(t, out, "decay")
	assert.Contains(t, out, "unbind")
	assert.Contains(t, out, "scenario decay:")
}

func TestCheck_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bound.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: bound
dt: 0.01
domain:
  low: [0, 0, 0]
  high: [10, 10, 10]
species:
  - name: A
    difc: 1
  - name: B
    difc: 1
surfaces:
  - name: wall
    panels:
      - axis: 0
        offset: 5
        low: [5, 0, 0]
        high: [5, 10, 10]
reactions:
  - name: stick
    reactants:
      - species: A
    products:
      - species: B
        state: front
    rate: 1
`), 0o644))

	out, err := execute(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario bound has 1 errors")
	assert.Contains(t, out, "surface-bound")
}

func TestSlotLabel(t *testing.T) {
	assert.Equal(t, "-", slotLabel([2]string{}))
	assert.Equal(t, "wall", slotLabel([2]string{"wall", ""}))
	assert.Equal(t, "wall/cell", slotLabel([2]string{"wall", "cell"}))
}
