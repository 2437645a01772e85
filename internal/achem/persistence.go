package achem

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daniacca/rxdyn/internal/molec"
	"github.com/klauspost/compress/zstd"
)

// SnapshotExt is the file extension of snapshot files.
const SnapshotExt = ".snapshot.json.zst"

// Snapshot represents a point-in-time capture of an environment: the
// scenario it runs and every live molecule. Molecule serials are reassigned
// on restore and the random stream restarts from the scenario seed.
type Snapshot struct {
	EnvironmentID EnvironmentID  `json:"environment_id"`
	Time          int64          `json:"time"`
	SimTime       float64        `json:"sim_time"`
	Scenario      ScenarioConfig `json:"scenario"`
	Molecules     []MoleculeView `json:"molecules"`
}

// ValidateSnapshot checks the scenario of a snapshot and that every
// molecule fits it: known species, valid state, matching dimension and an
// existing panel for bound molecules.
func ValidateSnapshot(snapshot Snapshot) error {
	if err := ValidateScenarioConfig(snapshot.Scenario); err != nil {
		return fmt.Errorf("invalid snapshot scenario: %w", err)
	}
	if snapshot.Time < 0 {
		return errors.New("snapshot time cannot be negative")
	}
	species := make(map[string]bool, len(snapshot.Scenario.Species))
	for _, sp := range snapshot.Scenario.Species {
		species[sp.Name] = true
	}
	panels := make(map[[2]string]bool)
	for _, sc := range snapshot.Scenario.Surfaces {
		for j, pc := range sc.Panels {
			name := pc.Name
			if name == "" {
				name = fmt.Sprintf("%s%d", sc.Name, j)
			}
			panels[[2]string{sc.Name, name}] = true
		}
	}
	dim := snapshot.Scenario.Dim()
	seen := make(map[uint64]struct{}, len(snapshot.Molecules))

	for i, mol := range snapshot.Molecules {
		if mol.Serial != 0 {
			if _, dup := seen[mol.Serial]; dup {
				return fmt.Errorf("duplicate molecule serial: %d", mol.Serial)
			}
			seen[mol.Serial] = struct{}{}
		}
		if !species[mol.Species] {
			return fmt.Errorf("molecule at index %d has invalid species: %s (not found in scenario)", i, mol.Species)
		}
		ms, err := molec.ParseState(mol.State)
		if err != nil || !ms.Valid() || ms == molec.Bsoln {
			return fmt.Errorf("molecule at index %d has invalid state: %s", i, mol.State)
		}
		if len(mol.Pos) != dim {
			return fmt.Errorf("molecule at index %d has dimension %d, want %d", i, len(mol.Pos), dim)
		}
		if ms.Bound() && !panels[[2]string{mol.Surface, mol.Panel}] {
			return fmt.Errorf("molecule at index %d is bound to unknown panel %s/%s", i, mol.Surface, mol.Panel)
		}
	}
	return nil
}

// EncodeSnapshotJSON encodes a snapshot to JSON format.
func EncodeSnapshotJSON(snapshot Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

// SnapshotPath returns the snapshot file of environment id inside dir.
func SnapshotPath(dir string, id EnvironmentID) string {
	return filepath.Join(dir, string(id)+SnapshotExt)
}

// WriteSnapshotFile writes a zstd-compressed JSON snapshot, replacing the
// file atomically.
func WriteSnapshotFile(path string, snapshot Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := writeSnapshot(f, snapshot); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeSnapshot(f *os.File, snapshot Snapshot) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	if err := json.NewEncoder(bw).Encode(snapshot); err != nil {
		enc.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadSnapshotFile reads and validates a snapshot written by
// WriteSnapshotFile.
func ReadSnapshotFile(path string) (Snapshot, error) {
	var snapshot Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snapshot, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snapshot, err
	}
	defer dec.Close()

	if err := json.NewDecoder(bufio.NewReaderSize(dec, 256*1024)).Decode(&snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := ValidateSnapshot(snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

// Snapshot captures the current state.
func (e *Environment) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		EnvironmentID: e.id,
		Time:          e.time,
		SimTime:       e.simTime,
		Scenario:      e.sim.cfg,
		Molecules:     e.sim.views(""),
	}
}

// SaveSnapshot writes the current state to the configured snapshot
// directory and returns the file path.
func (e *Environment) SaveSnapshot() (string, error) {
	e.mu.RLock()
	dir, id := e.snapshotDir, e.id
	e.mu.RUnlock()
	if dir == "" {
		return "", errors.New("snapshot directory is not configured")
	}
	if id == "" {
		return "", errors.New("environment has no ID")
	}
	path := SnapshotPath(dir, id)
	if err := WriteSnapshotFile(path, e.Snapshot()); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads the environment's snapshot file from the configured
// directory and restores it.
func (e *Environment) LoadSnapshot() error {
	e.mu.RLock()
	dir, id := e.snapshotDir, e.id
	e.mu.RUnlock()
	if dir == "" {
		return errors.New("snapshot directory is not configured")
	}
	snapshot, err := ReadSnapshotFile(SnapshotPath(dir, id))
	if err != nil {
		return err
	}
	return e.RestoreSnapshot(snapshot)
}

// RestoreSnapshot replaces the scenario and molecules with those of
// snapshot. The environment keeps its ID, notifiers and observers.
func (e *Environment) RestoreSnapshot(snapshot Snapshot) error {
	if err := ValidateSnapshot(snapshot); err != nil {
		return err
	}
	sim, err := buildSimulation(snapshot.Scenario, e.logger, false)
	if err != nil {
		return err
	}
	if dropped, err := sim.restore(snapshot.Molecules); err != nil {
		return err
	} else if dropped > 0 {
		return fmt.Errorf("%d snapshot molecules do not fit the scenario", dropped)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.attach(sim)
	e.time = snapshot.Time
	e.simTime = snapshot.SimTime
	return nil
}

// ReplaceScenario swaps in a new scenario, keeping the current molecules
// whose species still exist. Its initial placements are not seeded. It
// returns the number of molecules dropped.
func (e *Environment) ReplaceScenario(cfg ScenarioConfig) (int, error) {
	e.mu.RLock()
	views := e.sim.views("")
	e.mu.RUnlock()

	sim, err := buildSimulation(cfg, e.logger, false)
	if err != nil {
		return 0, err
	}
	dropped, err := sim.restore(views)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.attach(sim)
	e.logWarnings()
	if dropped > 0 {
		e.logger.Warnf("environment %s: %d molecules dropped by the new scenario", e.id, dropped)
	}
	return dropped, nil
}

// restore inserts views into a freshly built simulation and commits them.
// Molecules that do not fit the scenario are skipped and counted.
func (s *simulation) restore(views []MoleculeView) (int, error) {
	dropped := 0
	for _, v := range views {
		req := InsertRequest{Species: v.Species, State: v.State, Pos: v.Pos, Surface: v.Surface, Panel: v.Panel}
		if _, err := s.insert(req); err != nil {
			if errors.Is(err, molec.ErrStoreFull) {
				return 0, err
			}
			dropped++
		}
	}
	s.store.Sort(s.part)
	return dropped, nil
}
