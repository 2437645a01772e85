package achem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlScenario = `
name: membrane
dt: 0.001
seed: 42
boxes:
  mol_per_box: 4
domain:
  low: [0, 0, 0]
  high: [10, 10, 10]
  periodic: [true, true, false]
species:
  - name: A
    difc: 1
    state_difc:
      front: 0.1
  - name: B
    difc: 2
surfaces:
  - name: membrane
    panels:
      - axis: 2
        offset: 5
        low: [0, 0, 5]
        high: [10, 10, 5]
reactions:
  - name: bind
    reactants:
      - species: A
      - species: B
    products:
      - species: A
    rate: 5
    rev_param: i
    notify:
      enabled: true
      notifiers: [hook]
molecules:
  - species: A
    count: 100
  - species: A
    state: front
    count: 10
    surface: membrane
`

const tomlScenario = `
name = "decay"
dt = 0.01
seed = 7

[domain]
low = [0.0, 0.0]
high = [5.0, 5.0]

[[species]]
name = "A"
difc = 1.0

[[species]]
name = "B"
difc = 1.0

[[reactions]]
name = "decay"
rate = 10.0

  [[reactions.reactants]]
  species = "A"

  [[reactions.products]]
  species = "B"

[[molecules]]
species = "A"
count = 50
pos = [1.0, 1.0]
`

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"a.json":        FormatJSON,
		"b.yaml":        FormatYAML,
		"dir/c.YML":     FormatYAML,
		"scenario.toml": FormatTOML,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	_, err := FormatFromPath("scenario.ini")
	assert.Error(t, err)
}

func TestDecodeScenario_YAML(t *testing.T) {
	cfg, err := DecodeScenario([]byte(yamlScenario), FormatYAML)
	require.NoError(t, err)
	require.NoError(t, ValidateScenarioConfig(cfg))

	assert.Equal(t, "membrane", cfg.Name)
	assert.Equal(t, 0.001, cfg.TimeStep)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 4.0, cfg.Boxes.MolPerBox)
	assert.Equal(t, []bool{true, true, false}, cfg.Domain.Periodic)
	assert.Equal(t, 0.1, cfg.Species[0].StateDifc["front"])
	require.Len(t, cfg.Reactions, 1)
	rc := cfg.Reactions[0]
	require.NotNil(t, rc.Rate)
	assert.Equal(t, 5.0, *rc.Rate)
	assert.Nil(t, rc.Probability)
	assert.Equal(t, "i", rc.RevParam)
	assert.Empty(t, rc.Products[0].State)
	require.NotNil(t, rc.Notify)
	assert.Equal(t, []string{"hook"}, rc.Notify.Notifiers)
	assert.Equal(t, 110, cfg.InitialMolecules())
}

func TestDecodeScenario_TOML(t *testing.T) {
	cfg, err := DecodeScenario([]byte(tomlScenario), FormatTOML)
	require.NoError(t, err)
	require.NoError(t, ValidateScenarioConfig(cfg))

	assert.Equal(t, 2, cfg.Dim())
	assert.Equal(t, uint64(7), cfg.Seed)
	require.Len(t, cfg.Reactions, 1)
	assert.Equal(t, "A", cfg.Reactions[0].Reactants[0].Species)
	assert.Equal(t, "B", cfg.Reactions[0].Products[0].Species)
	assert.Equal(t, []float64{1, 1}, cfg.Molecules[0].Pos)
}

func TestDecodeScenario_JSON(t *testing.T) {
	data := []byte(`{"name":"decay","dt":0.01,"domain":{"low":[0],"high":[1]},
		"species":[{"name":"A","difc":1}],
		"reactions":[{"name":"r","reactants":[{"species":"A"}],"probability":0.5}]}`)
	cfg, err := DecodeScenario(data, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, ValidateScenarioConfig(cfg))
	require.NotNil(t, cfg.Reactions[0].Probability)
	assert.Equal(t, 0.5, *cfg.Reactions[0].Probability)
	assert.Empty(t, cfg.Reactions[0].Products)
}

func TestDecodeScenario_UnknownFields(t *testing.T) {
	tests := []struct {
		format Format
		data   string
	}{
		{FormatJSON, `{"name":"x","dt":1,"timestep":2}`},
		{FormatYAML, "name: x\ndt: 1\ntimestep: 2\n"},
		{FormatTOML, "name = \"x\"\ndt = 1.0\ntimestep = 2.0\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			_, err := DecodeScenario([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "timestep")
		})
	}

	_, err := DecodeScenario([]byte("{}"), Format("xml"))
	assert.Error(t, err)
}

func TestLoadScenarioFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "membrane.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlScenario), 0o644))

	cfg, err := LoadScenarioFile(path)
	require.NoError(t, err)
	assert.Equal(t, "membrane", cfg.Name)

	env, err := NewEnvironment(cfg)
	require.NoError(t, err)
	counts := env.Counts()
	assert.Equal(t, 110, counts["A"])

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("name = \"x\"\ndt = -1.0\n"), 0o644))
	_, err = LoadScenarioFile(bad)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = LoadScenarioFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
