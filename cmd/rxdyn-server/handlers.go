package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/rxdyn/internal/achem"
	"github.com/daniacca/rxdyn/internal/achem/notifiers"
	"github.com/daniacca/rxdyn/internal/rxn"
)

const maxBodyBytes = 16 << 20

// extractEnvID extracts the environment ID from a path like "/env/{envID}/..."
// Returns the environment ID and the remaining path, or empty string if not found
func extractEnvID(path string) (achem.EnvironmentID, string) {
	if !strings.HasPrefix(path, "/env/") {
		return "", ""
	}
	rest := path[len("/env/"):]
	idx := strings.Index(rest, "/")
	if idx == -1 {
		return achem.EnvironmentID(rest), ""
	}
	return achem.EnvironmentID(rest[:idx]), rest[idx:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GET /envs
func (s *Server) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	envIDs := s.manager.ListEnvironments()
	ids := make([]string, len(envIDs))
	for i, id := range envIDs {
		ids[i] = string(id)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"environments": ids})
}

// handleEnvironmentRoutes routes requests to environment-specific handlers
// Handles paths like /env/{envID}/scenario, /env/{envID}/molecule, etc.
func (s *Server) handleEnvironmentRoutes(w http.ResponseWriter, r *http.Request) {
	envID, remainingPath := extractEnvID(r.URL.Path)
	if envID == "" {
		http.Error(w, "environment ID is required in path: /env/{envID}/...", http.StatusBadRequest)
		return
	}

	if remainingPath == "/scenario" && r.Method == http.MethodPost {
		s.handleScenario(w, r, envID)
		return
	}
	if remainingPath == "" && r.Method == http.MethodDelete {
		s.handleDeleteEnvironment(w, r, envID)
		return
	}

	env, exists := s.manager.GetEnvironment(envID)
	if !exists {
		http.Error(w, "environment not found", http.StatusNotFound)
		return
	}

	switch {
	case remainingPath == "" && r.Method == http.MethodGet:
		s.handleStatus(w, env)
	case remainingPath == "/scenario" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, env.Config())
	case remainingPath == "/molecule" && r.Method == http.MethodPost:
		s.handleInsertMolecule(w, r, env)
	case remainingPath == "/molecules" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, env.Molecules(r.URL.Query().Get("species")))
	case remainingPath == "/move" && r.Method == http.MethodPost:
		s.handleMove(w, r, env)
	case remainingPath == "/tick" && r.Method == http.MethodPost:
		s.handleTick(w, r, env)
	case remainingPath == "/start" && r.Method == http.MethodPost:
		s.handleStart(w, r, env)
	case remainingPath == "/stop" && r.Method == http.MethodPost:
		env.Stop()
		s.logger.Infof("Environment stopped: env_id=%s", envID)
		_, _ = w.Write([]byte("environment stopped"))
	case remainingPath == "/counts" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, env.Counts())
	case remainingPath == "/events" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, env.Events())
	case remainingPath == "/warnings" && r.Method == http.MethodGet:
		warnings := env.Warnings()
		if warnings == nil {
			warnings = []rxn.Warning{}
		}
		writeJSON(w, http.StatusOK, warnings)
	case remainingPath == "/tables" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, env.Tables())
	case remainingPath == "/rate" && r.Method == http.MethodPost:
		s.handleSetRate(w, r, env)
	case remainingPath == "/timestep" && r.Method == http.MethodPost:
		s.handleSetTimeStep(w, r, env)
	case remainingPath == "/snapshot" && r.Method == http.MethodPost:
		s.handleSaveSnapshot(w, env)
	case remainingPath == "/snapshot" && r.Method == http.MethodGet:
		s.handleGetSnapshot(w, env)
	case remainingPath == "/restore" && r.Method == http.MethodPost:
		s.handleRestore(w, env)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// ScenarioResponse reports the outcome of POST /env/{envID}/scenario.
type ScenarioResponse struct {
	Status   string        `json:"status"`
	Dropped  int           `json:"dropped"`
	Warnings []rxn.Warning `json:"warnings"`
}

// POST /env/{envID}/scenario
// Body: ScenarioConfig JSON
// Creates the environment, or replaces the scenario of an existing one
// keeping its molecules.
func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request, envID achem.EnvironmentID) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "cannot read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	cfg, err := achem.DecodeScenario(data, achem.FormatJSON)
	if err != nil {
		http.Error(w, "invalid scenario json: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp := ScenarioResponse{Status: "created"}
	env, exists := s.manager.GetEnvironment(envID)
	if exists {
		resp.Status = "replaced"
		if resp.Dropped, err = env.ReplaceScenario(cfg); err != nil {
			http.Error(w, "cannot replace scenario: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Infof("Environment scenario replaced: env_id=%s scenario=%s dropped=%d", envID, cfg.Name, resp.Dropped)
	} else {
		if env, err = s.manager.CreateEnvironment(envID, cfg); err != nil {
			http.Error(w, "cannot build scenario: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Infof("Environment created: env_id=%s scenario=%s", envID, cfg.Name)
	}

	resp.Warnings = env.Warnings()
	if resp.Warnings == nil {
		resp.Warnings = []rxn.Warning{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusResponse is the body of GET /env/{envID}.
type StatusResponse struct {
	ID       achem.EnvironmentID `json:"id"`
	Scenario string              `json:"scenario"`
	Time     int64               `json:"time"`
	SimTime  float64             `json:"sim_time"`
	Running  bool                `json:"running"`
}

func (s *Server) handleStatus(w http.ResponseWriter, env *achem.Environment) {
	writeJSON(w, http.StatusOK, StatusResponse{
		ID:       env.ID(),
		Scenario: env.Config().Name,
		Time:     env.Time(),
		SimTime:  env.SimTime(),
		Running:  env.IsRunning(),
	})
}

// POST /env/{envID}/molecule
// Body: InsertRequest JSON
func (s *Server) handleInsertMolecule(w http.ResponseWriter, r *http.Request, env *achem.Environment) {
	defer r.Body.Close()
	var req achem.InsertRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	m, err := env.Insert(req)
	if err != nil {
		http.Error(w, "cannot insert molecule: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Debugf("Molecule inserted: env_id=%s species=%s serial=%d", env.ID(), req.Species, m.Serial)
	writeJSON(w, http.StatusOK, m)
}

// MoveRequest is the body of POST /env/{envID}/move.
type MoveRequest struct {
	Serial uint64    `json:"serial"`
	Pos    []float64 `json:"pos"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, env *achem.Environment) {
	defer r.Body.Close()
	var req MoveRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	m, err := env.Move(req.Serial, req.Pos)
	if err != nil {
		http.Error(w, "cannot move molecule: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// TickResponse is the body of POST /env/{envID}/tick.
type TickResponse struct {
	Time    int64            `json:"time"`
	SimTime float64          `json:"sim_time"`
	Counts  map[string]int   `json:"counts"`
	Events  map[string]int64 `json:"events"`
}

// POST /env/{envID}/tick
// Query param: steps (default: 1)
// Manually runs steps, useful when auto-running is disabled.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request, env *achem.Environment) {
	steps := 1
	if v := r.URL.Query().Get("steps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid steps: must be a positive integer", http.StatusBadRequest)
			return
		}
		steps = n
	}
	if env.IsRunning() {
		http.Error(w, "environment is running", http.StatusConflict)
		return
	}
	for range steps {
		if err := env.Step(); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, rxn.ErrAllocatorFull) {
				status = http.StatusInsufficientStorage
			}
			s.logger.Errorf("Step failed: env_id=%s error=%v", env.ID(), err)
			http.Error(w, "step failed: "+err.Error(), status)
			return
		}
	}
	writeJSON(w, http.StatusOK, TickResponse{
		Time:    env.Time(),
		SimTime: env.SimTime(),
		Counts:  env.Counts(),
		Events:  env.Events(),
	})
}

// POST /env/{envID}/start
// Start the environment auto-running with the specified interval (in milliseconds)
// Query param: interval (default: 1000ms)
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, env *achem.Environment) {
	interval := 1000 * time.Millisecond
	if intervalStr := r.URL.Query().Get("interval"); intervalStr != "" {
		if ms, err := strconv.Atoi(intervalStr); err == nil && ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		} else {
			http.Error(w, "invalid interval: must be a positive integer (milliseconds)", http.StatusBadRequest)
			return
		}
	}
	env.Run(interval)
	s.logger.Infof("Environment started: env_id=%s interval=%v", env.ID(), interval)
	_, _ = w.Write([]byte("environment started"))
}

// RateRequest is the body of POST /env/{envID}/rate.
type RateRequest struct {
	Reaction string  `json:"reaction"`
	Rate     float64 `json:"rate"`
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request, env *achem.Environment) {
	defer r.Body.Close()
	var req RateRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := env.SetRate(req.Reaction, req.Rate); err != nil {
		http.Error(w, "cannot set rate: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("Rate changed: env_id=%s reaction=%s rate=%g", env.ID(), req.Reaction, req.Rate)
	writeJSON(w, http.StatusOK, env.Tables())
}

// TimeStepRequest is the body of POST /env/{envID}/timestep.
type TimeStepRequest struct {
	TimeStep float64 `json:"dt"`
}

func (s *Server) handleSetTimeStep(w http.ResponseWriter, r *http.Request, env *achem.Environment) {
	defer r.Body.Close()
	var req TimeStepRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !(req.TimeStep > 0) {
		http.Error(w, "time step must be positive", http.StatusBadRequest)
		return
	}
	if err := env.SetTimeStep(req.TimeStep); err != nil {
		http.Error(w, "cannot set time step: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("Time step changed: env_id=%s dt=%g", env.ID(), req.TimeStep)
	writeJSON(w, http.StatusOK, env.Tables())
}

// DELETE /env/{envID}
func (s *Server) handleDeleteEnvironment(w http.ResponseWriter, r *http.Request, envID achem.EnvironmentID) {
	if err := s.manager.DeleteEnvironment(envID); err != nil {
		s.logger.Warnf("Failed to delete environment: env_id=%s error=%v", envID, err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Infof("Environment deleted: env_id=%s", envID)
	_, _ = w.Write([]byte("environment deleted"))
}

// POST /env/{envID}/snapshot
// Triggers a synchronous snapshot save
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, env *achem.Environment) {
	if s.snapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	path, err := env.SaveSnapshot()
	if err != nil {
		s.logger.Errorf("Failed to save snapshot: env_id=%s error=%v", env.ID(), err)
		http.Error(w, "failed to save snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Debugf("Snapshot saved: env_id=%s path=%s", env.ID(), path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "path": path})
}

// GET /env/{envID}/snapshot
// Returns the stored snapshot, decompressed, as JSON.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, env *achem.Environment) {
	if s.snapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	snapshot, err := achem.ReadSnapshotFile(achem.SnapshotPath(s.snapshotDir, env.ID()))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "snapshot not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// POST /env/{envID}/restore
// Replaces the environment state with its stored snapshot.
func (s *Server) handleRestore(w http.ResponseWriter, env *achem.Environment) {
	if err := env.LoadSnapshot(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		http.Error(w, "failed to restore snapshot: "+err.Error(), status)
		return
	}
	s.logger.Infof("Snapshot restored: env_id=%s time=%d", env.ID(), env.Time())
	s.handleStatus(w, env)
}

// handleNotifiersRoutes handles notifier management endpoints
func (s *Server) handleNotifiersRoutes(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/notifiers" && r.Method == http.MethodGet:
		s.handleListNotifiers(w, r)
	case r.URL.Path == "/notifiers" && r.Method == http.MethodPost:
		s.handleRegisterNotifier(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifiers/") && r.Method == http.MethodDelete:
		s.handleUnregisterNotifier(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// NotifierInfo describes one registered notifier.
type NotifierInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// GET /notifiers
func (s *Server) handleListNotifiers(w http.ResponseWriter, _ *http.Request) {
	ids := s.globalNotifierMgr.ListNotifiers()
	slices.Sort(ids)
	out := make([]NotifierInfo, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.globalNotifierMgr.GetNotifier(id); ok {
			out = append(out, NotifierInfo{ID: id, Type: n.Type()})
		}
	}
	writeJSON(w, http.StatusOK, map[string][]NotifierInfo{"notifiers": out})
}

// RegisterNotifierRequest is the body of POST /notifiers.
// Example: { "type": "webhook", "id": "my-webhook", "url": "http://...", "headers": {...} }
type RegisterNotifierRequest struct {
	Type      string            `json:"type"`
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Reactions []string          `json:"reactions,omitempty"`
	TimeoutMS int               `json:"timeout_ms,omitempty"`
}

func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req RegisterNotifierRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier achem.Notifier
	switch req.Type {
	case "webhook":
		if req.URL == "" {
			http.Error(w, "webhook URL is required", http.StatusBadRequest)
			return
		}
		opts := []notifiers.WebhookOption{notifiers.WithReactions(req.Reactions...)}
		for k, v := range req.Headers {
			opts = append(opts, notifiers.WithHeader(k, v))
		}
		if req.TimeoutMS > 0 {
			opts = append(opts, notifiers.WithTimeout(time.Duration(req.TimeoutMS)*time.Millisecond))
		}
		notifier = notifiers.NewWebhookNotifier(req.ID, req.URL, opts...)
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.globalNotifierMgr.RegisterNotifier(notifier); err != nil {
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("Notifier registered: id=%s type=%s", req.ID, req.Type)
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	notifierID := strings.TrimPrefix(r.URL.Path, "/notifiers/")
	if notifierID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}
	if notifierID == wsNotifierID {
		http.Error(w, "the websocket notifier cannot be removed", http.StatusBadRequest)
		return
	}
	if err := s.globalNotifierMgr.UnregisterNotifier(notifierID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte("notifier unregistered"))
}
