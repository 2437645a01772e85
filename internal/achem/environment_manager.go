package achem

import (
	"fmt"
	"slices"
	"sync"
)

// EnvironmentID is a unique identifier for an environment
type EnvironmentID string

// EnvironmentManager manages multiple environments, each isolated from others
type EnvironmentManager struct {
	mu           sync.RWMutex
	environments map[EnvironmentID]*Environment
	logger       Logger
	onCreate     []func(*Environment)
	onDelete     []func(EnvironmentID)
}

// NewEnvironmentManager creates a new environment manager
func NewEnvironmentManager() *EnvironmentManager {
	return NewEnvironmentManagerWithLogger(NewNoOpLogger())
}

// NewEnvironmentManagerWithLogger creates a manager whose environments log
// through logger.
func NewEnvironmentManagerWithLogger(logger Logger) *EnvironmentManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &EnvironmentManager{
		environments: make(map[EnvironmentID]*Environment),
		logger:       logger,
	}
}

// OnCreate registers fn to configure every environment the manager creates,
// before it is visible to other callers.
func (em *EnvironmentManager) OnCreate(fn func(*Environment)) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.onCreate = append(em.onCreate, fn)
}

// OnDelete registers fn to run after an environment is deleted.
func (em *EnvironmentManager) OnDelete(fn func(EnvironmentID)) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.onDelete = append(em.onDelete, fn)
}

// CreateEnvironment builds an environment from cfg and registers it under
// id. An empty id is replaced by a random UUID. It fails if the id is taken.
func (em *EnvironmentManager) CreateEnvironment(id EnvironmentID, cfg ScenarioConfig) (*Environment, error) {
	if id == "" {
		id = EnvironmentID(NewRandomID())
	}
	em.mu.RLock()
	_, exists := em.environments[id]
	em.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("environment with id %s already exists", id)
	}

	env, err := BuildEnvironment(cfg, em.logger)
	if err != nil {
		return nil, err
	}
	env.SetEnvironmentID(id)

	em.mu.Lock()
	defer em.mu.Unlock()
	if _, exists := em.environments[id]; exists {
		return nil, fmt.Errorf("environment with id %s already exists", id)
	}
	for _, fn := range em.onCreate {
		fn(env)
	}
	em.environments[id] = env
	return env, nil
}

// GetEnvironment retrieves an environment by ID
func (em *EnvironmentManager) GetEnvironment(id EnvironmentID) (*Environment, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	env, exists := em.environments[id]
	return env, exists
}

// DeleteEnvironment stops and removes an environment.
func (em *EnvironmentManager) DeleteEnvironment(id EnvironmentID) error {
	em.mu.Lock()
	env, exists := em.environments[id]
	if !exists {
		em.mu.Unlock()
		return fmt.Errorf("environment with id %s does not exist", id)
	}
	delete(em.environments, id)
	hooks := slices.Clone(em.onDelete)
	em.mu.Unlock()

	env.Stop()
	for _, fn := range hooks {
		fn(id)
	}
	return nil
}

// ListEnvironments returns the IDs of all environments in sorted order.
func (em *EnvironmentManager) ListEnvironments() []EnvironmentID {
	em.mu.RLock()
	defer em.mu.RUnlock()
	ids := make([]EnvironmentID, 0, len(em.environments))
	for id := range em.environments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ReplaceScenario swaps the scenario of an existing environment, keeping
// the molecules whose species survive. It returns the number dropped.
func (em *EnvironmentManager) ReplaceScenario(id EnvironmentID, cfg ScenarioConfig) (int, error) {
	env, exists := em.GetEnvironment(id)
	if !exists {
		return 0, fmt.Errorf("environment with id %s does not exist", id)
	}
	return env.ReplaceScenario(cfg)
}

// Close stops every environment.
func (em *EnvironmentManager) Close() {
	em.mu.RLock()
	defer em.mu.RUnlock()
	for _, env := range em.environments {
		env.Stop()
	}
}
