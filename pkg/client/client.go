// Package client builds scenarios with a fluent API and drives an
// rxdyn-server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/rxdyn/internal/achem"
	"github.com/daniacca/rxdyn/internal/rxn"
)

// ScenarioBuilder provides a fluent API for building scenarios: the domain,
// the species, the surfaces and the reactions between molecules.
type ScenarioBuilder struct {
	cfg       achem.ScenarioConfig
	reactions []*ReactionBuilder
}

// NewScenario creates a scenario builder with the given name.
func NewScenario(name string) *ScenarioBuilder {
	return &ScenarioBuilder{cfg: achem.ScenarioConfig{Name: name}}
}

// TimeStep sets the simulation time step.
func (sb *ScenarioBuilder) TimeStep(dt float64) *ScenarioBuilder {
	sb.cfg.TimeStep = dt
	return sb
}

// Seed fixes the random stream.
func (sb *ScenarioBuilder) Seed(seed uint64) *ScenarioBuilder {
	sb.cfg.Seed = seed
	return sb
}

// Workers sets how many goroutines evaluate bimolecular reactions.
func (sb *ScenarioBuilder) Workers(n int) *ScenarioBuilder {
	sb.cfg.Workers = n
	return sb
}

// MaxMolecules caps the molecule store.
func (sb *ScenarioBuilder) MaxMolecules(n int) *ScenarioBuilder {
	sb.cfg.MaxMolecules = n
	return sb
}

// MolPerBox sets the target number of molecules per virtual box.
func (sb *ScenarioBuilder) MolPerBox(n float64) *ScenarioBuilder {
	sb.cfg.Boxes.MolPerBox = n
	return sb
}

// BoxSize sets the side of the virtual boxes. It wins over MolPerBox.
func (sb *ScenarioBuilder) BoxSize(size float64) *ScenarioBuilder {
	sb.cfg.Boxes.BoxSize = size
	return sb
}

// Domain sets the system bounds. Their length fixes the dimension.
func (sb *ScenarioBuilder) Domain(low, high []float64) *ScenarioBuilder {
	sb.cfg.Domain.Low = low
	sb.cfg.Domain.High = high
	return sb
}

// Periodic marks which dimensions wrap around.
func (sb *ScenarioBuilder) Periodic(flags ...bool) *ScenarioBuilder {
	sb.cfg.Domain.Periodic = flags
	return sb
}

// Species adds a species with one diffusion constant for every state.
func (sb *ScenarioBuilder) Species(name string, difc float64) *ScenarioBuilder {
	sb.cfg.Species = append(sb.cfg.Species, achem.SpeciesConfig{Name: name, Difc: difc})
	return sb
}

// StateDifc overrides the diffusion constant of an existing species in one
// state.
func (sb *ScenarioBuilder) StateDifc(species, state string, difc float64) *ScenarioBuilder {
	for i := range sb.cfg.Species {
		sc := &sb.cfg.Species[i]
		if sc.Name != species {
			continue
		}
		if sc.StateDifc == nil {
			sc.StateDifc = make(map[string]float64)
		}
		sc.StateDifc[state] = difc
	}
	return sb
}

// Surface adds a surface.
func (sb *ScenarioBuilder) Surface(srf *SurfaceBuilder) *ScenarioBuilder {
	sb.cfg.Surfaces = append(sb.cfg.Surfaces, srf.Build())
	return sb
}

// Compartment adds a box-shaped compartment.
func (sb *ScenarioBuilder) Compartment(name string, low, high []float64) *ScenarioBuilder {
	sb.cfg.Compartments = append(sb.cfg.Compartments, achem.CompartmentConfig{Name: name, Low: low, High: high})
	return sb
}

// Reaction adds a reaction definition to the scenario.
func (sb *ScenarioBuilder) Reaction(rb *ReactionBuilder) *ScenarioBuilder {
	sb.reactions = append(sb.reactions, rb)
	return sb
}

// Molecules seeds count solution molecules spread over the whole domain.
func (sb *ScenarioBuilder) Molecules(species string, count int) *ScenarioBuilder {
	return sb.Place(achem.PlacementConfig{Species: species, Count: count})
}

// MoleculesAt seeds count solution molecules at one position.
func (sb *ScenarioBuilder) MoleculesAt(species string, count int, pos ...float64) *ScenarioBuilder {
	return sb.Place(achem.PlacementConfig{Species: species, Count: count, Pos: pos})
}

// MoleculesOn seeds count molecules bound to a surface in the given state.
func (sb *ScenarioBuilder) MoleculesOn(species, state string, count int, surface string) *ScenarioBuilder {
	return sb.Place(achem.PlacementConfig{Species: species, State: state, Count: count, Surface: surface})
}

// Place adds an arbitrary placement.
func (sb *ScenarioBuilder) Place(pc achem.PlacementConfig) *ScenarioBuilder {
	sb.cfg.Molecules = append(sb.cfg.Molecules, pc)
	return sb
}

// Build converts the builder to a ScenarioConfig that can be used with
// ApplyScenario or written to a scenario file.
func (sb *ScenarioBuilder) Build() achem.ScenarioConfig {
	cfg := sb.cfg
	cfg.Reactions = make([]achem.ReactionConfig, 0, len(sb.reactions))
	for _, rb := range sb.reactions {
		cfg.Reactions = append(cfg.Reactions, rb.Build())
	}
	return cfg
}

// SurfaceBuilder collects the panels of one surface.
type SurfaceBuilder struct {
	cfg achem.SurfaceConfig
}

func NewSurface(name string) *SurfaceBuilder {
	return &SurfaceBuilder{cfg: achem.SurfaceConfig{Name: name}}
}

// Panel adds an axis-aligned panel perpendicular to axis at offset, facing
// the positive side.
func (srf *SurfaceBuilder) Panel(name string, axis int, offset float64, low, high []float64) *SurfaceBuilder {
	srf.cfg.Panels = append(srf.cfg.Panels, achem.PanelConfig{
		Name:   name,
		Axis:   axis,
		Offset: offset,
		Low:    low,
		High:   high,
	})
	return srf
}

// FacingBack flips the front of the last added panel to the negative side.
func (srf *SurfaceBuilder) FacingBack() *SurfaceBuilder {
	if n := len(srf.cfg.Panels); n > 0 {
		srf.cfg.Panels[n-1].Front = -1
	}
	return srf
}

func (srf *SurfaceBuilder) Build() achem.SurfaceConfig {
	return srf.cfg
}

// ReactionBuilder provides a fluent API for building reaction
// configurations. The number of reactants fixes the order.
type ReactionBuilder struct {
	cfg achem.ReactionConfig
}

// NewReaction creates a new reaction builder. The name must be unique
// within a scenario.
func NewReaction(name string) *ReactionBuilder {
	return &ReactionBuilder{cfg: achem.ReactionConfig{Name: name}}
}

// Reactant adds a reactant, in solution unless a state is given.
func (rb *ReactionBuilder) Reactant(species string, state ...string) *ReactionBuilder {
	rb.cfg.Reactants = append(rb.cfg.Reactants, ref(species, state))
	return rb
}

// Product adds a product, in solution unless a state is given.
func (rb *ReactionBuilder) Product(species string, state ...string) *ReactionBuilder {
	rb.cfg.Products = append(rb.cfg.Products, ref(species, state))
	return rb
}

func ref(species string, state []string) achem.SpeciesRef {
	r := achem.SpeciesRef{Species: species}
	if len(state) > 0 {
		r.State = state[0]
	}
	return r
}

// Rate sets the macroscopic rate constant.
func (rb *ReactionBuilder) Rate(rate float64) *ReactionBuilder {
	rb.cfg.Rate = &rate
	return rb
}

// Probability sets the per-step reaction probability directly.
func (rb *ReactionBuilder) Probability(p float64) *ReactionBuilder {
	rb.cfg.Probability = &p
	return rb
}

// BindRadius sets the binding radius of a bimolecular reaction directly.
func (rb *ReactionBuilder) BindRadius(r float64) *ReactionBuilder {
	rb.cfg.BindRadius = &r
	return rb
}

// Placement selects how products are placed, by code ("p") or name
// ("pgem"), with its parameter.
func (rb *ReactionBuilder) Placement(method string, value float64) *ReactionBuilder {
	rb.cfg.RevParam = method
	rb.cfg.RevValue = value
	return rb
}

// Offsets places each product at a fixed displacement. Use with the
// offset and fixed placements.
func (rb *ReactionBuilder) Offsets(offsets ...[]float64) *ReactionBuilder {
	rb.cfg.Offsets = offsets
	return rb
}

// InCompartment restricts a zeroth order reaction to a compartment.
func (rb *ReactionBuilder) InCompartment(name string) *ReactionBuilder {
	rb.cfg.Compartment = name
	return rb
}

// OnSurface restricts the reaction to a surface.
func (rb *ReactionBuilder) OnSurface(name string) *ReactionBuilder {
	rb.cfg.Surface = name
	return rb
}

// Permit lets the reactants react in the given combination of states.
func (rb *ReactionBuilder) Permit(states ...string) *ReactionBuilder {
	rb.cfg.Permit = append(rb.cfg.Permit, states)
	return rb
}

// Forbid stops the reactants from reacting in the given combination of
// states.
func (rb *ReactionBuilder) Forbid(states ...string) *ReactionBuilder {
	rb.cfg.Forbid = append(rb.cfg.Forbid, states)
	return rb
}

// Notify configures notification settings for this reaction.
func (rb *ReactionBuilder) Notify(nb *NotificationBuilder) *ReactionBuilder {
	rb.cfg.Notify = nb.Build()
	return rb
}

// Build converts the builder to a ReactionConfig.
func (rb *ReactionBuilder) Build() achem.ReactionConfig {
	return rb.cfg
}

// NotificationBuilder provides a fluent API for building notification
// configurations. Notifiers must be registered with the server separately.
type NotificationBuilder struct {
	enabled   bool
	notifiers []string
}

// NewNotification creates a new notification builder with notifications
// enabled by default.
func NewNotification() *NotificationBuilder {
	return &NotificationBuilder{
		enabled:   true,
		notifiers: make([]string, 0),
	}
}

// Enabled sets whether notifications are enabled for this reaction.
func (nb *NotificationBuilder) Enabled(enabled bool) *NotificationBuilder {
	nb.enabled = enabled
	return nb
}

// Notifiers adds notifier IDs to the list.
func (nb *NotificationBuilder) Notifiers(ids ...string) *NotificationBuilder {
	nb.notifiers = append(nb.notifiers, ids...)
	return nb
}

// Build converts the builder to a NotificationConfig.
func (nb *NotificationBuilder) Build() *achem.NotificationConfig {
	return &achem.NotificationConfig{
		Enabled:   nb.enabled,
		Notifiers: nb.notifiers,
	}
}

// APIError is a non-2xx answer of the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// ScenarioResult is the answer to ApplyScenario.
type ScenarioResult struct {
	Status   string        `json:"status"`
	Dropped  int           `json:"dropped"`
	Warnings []rxn.Warning `json:"warnings"`
}

// Status describes one environment.
type Status struct {
	ID       string  `json:"id"`
	Scenario string  `json:"scenario"`
	Time     int64   `json:"time"`
	SimTime  float64 `json:"sim_time"`
	Running  bool    `json:"running"`
}

// TickResult is the state after a manual tick.
type TickResult struct {
	Time    int64            `json:"time"`
	SimTime float64          `json:"sim_time"`
	Counts  map[string]int   `json:"counts"`
	Events  map[string]int64 `json:"events"`
}

// Client talks to one rxdyn-server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method string, path []string, query url.Values, in, out any) error {
	u, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ApplyScenario creates environment envID from the scenario, or replaces
// the scenario of an existing one.
func (c *Client) ApplyScenario(ctx context.Context, envID string, scenario *ScenarioBuilder) (ScenarioResult, error) {
	var res ScenarioResult
	err := c.do(ctx, http.MethodPost, []string{"env", envID, "scenario"}, nil, scenario.Build(), &res)
	return res, err
}

// ListEnvironments returns the IDs of every environment.
func (c *Client) ListEnvironments(ctx context.Context) ([]string, error) {
	var res struct {
		Environments []string `json:"environments"`
	}
	err := c.do(ctx, http.MethodGet, []string{"envs"}, nil, nil, &res)
	return res.Environments, err
}

func (c *Client) Status(ctx context.Context, envID string) (Status, error) {
	var res Status
	err := c.do(ctx, http.MethodGet, []string{"env", envID}, nil, nil, &res)
	return res, err
}

func (c *Client) DeleteEnvironment(ctx context.Context, envID string) error {
	return c.do(ctx, http.MethodDelete, []string{"env", envID}, nil, nil, nil)
}

// Tick runs steps time steps of a stopped environment.
func (c *Client) Tick(ctx context.Context, envID string, steps int) (TickResult, error) {
	var res TickResult
	q := url.Values{"steps": {strconv.Itoa(steps)}}
	err := c.do(ctx, http.MethodPost, []string{"env", envID, "tick"}, q, nil, &res)
	return res, err
}

// Start runs the environment in the background, one step per interval.
func (c *Client) Start(ctx context.Context, envID string, interval time.Duration) error {
	q := url.Values{"interval": {strconv.FormatInt(interval.Milliseconds(), 10)}}
	return c.do(ctx, http.MethodPost, []string{"env", envID, "start"}, q, nil, nil)
}

func (c *Client) Stop(ctx context.Context, envID string) error {
	return c.do(ctx, http.MethodPost, []string{"env", envID, "stop"}, nil, nil, nil)
}

// InsertMolecule adds one molecule and returns it with its serial.
func (c *Client) InsertMolecule(ctx context.Context, envID string, req achem.InsertRequest) (achem.MoleculeView, error) {
	var res achem.MoleculeView
	err := c.do(ctx, http.MethodPost, []string{"env", envID, "molecule"}, nil, req, &res)
	return res, err
}

// MoveMolecule moves the molecule with the given serial.
func (c *Client) MoveMolecule(ctx context.Context, envID string, serial uint64, pos []float64) (achem.MoleculeView, error) {
	var res achem.MoleculeView
	body := map[string]any{"serial": serial, "pos": pos}
	err := c.do(ctx, http.MethodPost, []string{"env", envID, "move"}, nil, body, &res)
	return res, err
}

// Molecules lists the live molecules, of one species when species is set.
func (c *Client) Molecules(ctx context.Context, envID, species string) ([]achem.MoleculeView, error) {
	var res []achem.MoleculeView
	var q url.Values
	if species != "" {
		q = url.Values{"species": {species}}
	}
	err := c.do(ctx, http.MethodGet, []string{"env", envID, "molecules"}, q, nil, &res)
	return res, err
}

// Counts returns the number of live molecules per species.
func (c *Client) Counts(ctx context.Context, envID string) (map[string]int, error) {
	var res map[string]int
	err := c.do(ctx, http.MethodGet, []string{"env", envID, "counts"}, nil, nil, &res)
	return res, err
}

// Events returns the cumulative reaction counts by event type.
func (c *Client) Events(ctx context.Context, envID string) (map[string]int64, error) {
	var res map[string]int64
	err := c.do(ctx, http.MethodGet, []string{"env", envID, "events"}, nil, nil, &res)
	return res, err
}

func (c *Client) Warnings(ctx context.Context, envID string) ([]rxn.Warning, error) {
	var res []rxn.Warning
	err := c.do(ctx, http.MethodGet, []string{"env", envID, "warnings"}, nil, nil, &res)
	return res, err
}

// Tables returns the resolved parameters of every reaction.
func (c *Client) Tables(ctx context.Context, envID string) ([]achem.ReactionTable, error) {
	var res []achem.ReactionTable
	err := c.do(ctx, http.MethodGet, []string{"env", envID, "tables"}, nil, nil, &res)
	return res, err
}

// SetRate changes the rate of a reaction and returns the new tables.
func (c *Client) SetRate(ctx context.Context, envID, reaction string, rate float64) ([]achem.ReactionTable, error) {
	var res []achem.ReactionTable
	body := map[string]any{"reaction": reaction, "rate": rate}
	err := c.do(ctx, http.MethodPost, []string{"env", envID, "rate"}, nil, body, &res)
	return res, err
}

// SetTimeStep changes the time step and returns the new tables.
func (c *Client) SetTimeStep(ctx context.Context, envID string, dt float64) ([]achem.ReactionTable, error) {
	var res []achem.ReactionTable
	err := c.do(ctx, http.MethodPost, []string{"env", envID, "timestep"}, nil, map[string]float64{"dt": dt}, &res)
	return res, err
}

// SaveSnapshot writes a snapshot on the server and returns its path there.
func (c *Client) SaveSnapshot(ctx context.Context, envID string) (string, error) {
	var res struct {
		Path string `json:"path"`
	}
	err := c.do(ctx, http.MethodPost, []string{"env", envID, "snapshot"}, nil, nil, &res)
	return res.Path, err
}

// Snapshot fetches the stored snapshot.
func (c *Client) Snapshot(ctx context.Context, envID string) (achem.Snapshot, error) {
	var res achem.Snapshot
	err := c.do(ctx, http.MethodGet, []string{"env", envID, "snapshot"}, nil, nil, &res)
	return res, err
}

// Restore replaces the environment state with its stored snapshot.
func (c *Client) Restore(ctx context.Context, envID string) (Status, error) {
	var res Status
	err := c.do(ctx, http.MethodPost, []string{"env", envID, "restore"}, nil, nil, &res)
	return res, err
}

// RegisterWebhook registers a webhook notifier. With reactions set only
// those reactions are delivered.
func (c *Client) RegisterWebhook(ctx context.Context, id, target string, headers map[string]string, reactions ...string) error {
	body := map[string]any{
		"type":      "webhook",
		"id":        id,
		"url":       target,
		"headers":   headers,
		"reactions": reactions,
	}
	return c.do(ctx, http.MethodPost, []string{"notifiers"}, nil, body, nil)
}

func (c *Client) UnregisterNotifier(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, []string{"notifiers", id}, nil, nil, nil)
}

// ApplyScenario sends the scenario to the server at baseURL with a default
// client.
func ApplyScenario(ctx context.Context, baseURL, envID string, scenario *ScenarioBuilder) error {
	_, err := New(baseURL).ApplyScenario(ctx, envID, scenario)
	return err
}
