package achem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daniacca/rxdyn/internal/rxn"
)

// NotificationEvent describes one executed reaction, as pushed to notifiers.
type NotificationEvent struct {
	ID            string        `json:"id"`
	EnvironmentID EnvironmentID `json:"environment_id"`
	ReactionName  string        `json:"reaction_name"`
	Order         int           `json:"order"`
	EventType     string        `json:"event_type"`
	Timestamp     int64         `json:"timestamp"`
	// EnvTime is the tick counter, SimTime the simulated time.
	EnvTime int64   `json:"env_time"`
	SimTime float64 `json:"sim_time"`

	Reactants []string       `json:"reactants"`
	Products  []MoleculeView `json:"products,omitempty"`
	Position  []float64      `json:"position,omitempty"`
}

// Notifier is the interface that all notification channels must implement
type Notifier interface {
	// ID returns a unique identifier for this notifier
	ID() string

	// Type returns the type of notifier (e.g., "webhook", "websocket")
	Type() string

	// Notify sends a notification event. The context can be used for
	// cancellation and timeout.
	Notify(ctx context.Context, event NotificationEvent) error

	// Close closes the notifier and releases any resources
	Close() error
}

// NotificationConfig specifies which notifiers should be triggered for a reaction
type NotificationConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Notifiers []string `json:"notifiers" yaml:"notifiers" toml:"notifiers"`
}

type notificationJob struct {
	Event       NotificationEvent
	NotifierIDs []string
}

const (
	notificationQueueSize = 1024
	maxNotifyRetries      = 3
	initialBackoff        = 100 * time.Millisecond
	dispatchTimeout       = 30 * time.Second
)

// NotificationManager manages all notifiers and routes notifications
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	jobs      chan notificationJob
	closed    bool
	wg        sync.WaitGroup
	logger    Logger
}

// NewNotificationManager creates a notification manager with one worker
// and no logging.
func NewNotificationManager() *NotificationManager {
	return NewNotificationManagerWithLogger(NewNoOpLogger(), 1)
}

// NewNotificationManagerWithLogger creates a notification manager with the
// given number of delivery workers.
func NewNotificationManagerWithLogger(logger Logger, workers int) *NotificationManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	mgr := &NotificationManager{
		notifiers: make(map[string]Notifier),
		jobs:      make(chan notificationJob, notificationQueueSize),
		logger:    logger,
	}
	mgr.startWorkers(max(workers, 1))
	return mgr
}

// RegisterNotifier registers a notifier with the manager
func (nm *NotificationManager) RegisterNotifier(notifier Notifier) error {
	if notifier == nil {
		return errors.New("notifier cannot be nil")
	}
	id := notifier.ID()
	if id == "" {
		return errors.New("notifier ID cannot be empty")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.notifiers[id]; exists {
		return fmt.Errorf("notifier with ID %s already exists", id)
	}
	nm.notifiers[id] = notifier
	return nil
}

// UnregisterNotifier closes and removes a notifier.
func (nm *NotificationManager) UnregisterNotifier(id string) error {
	nm.mu.Lock()
	notifier, exists := nm.notifiers[id]
	if exists {
		delete(nm.notifiers, id)
	}
	nm.mu.Unlock()

	if !exists {
		return fmt.Errorf("notifier with ID %s not found", id)
	}
	if err := notifier.Close(); err != nil {
		return fmt.Errorf("error closing notifier %s: %w", id, err)
	}
	return nil
}

func (nm *NotificationManager) GetNotifier(id string) (Notifier, bool) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	notifier, exists := nm.notifiers[id]
	return notifier, exists
}

// ListNotifiers returns the IDs of all registered notifiers.
func (nm *NotificationManager) ListNotifiers() []string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	ids := make([]string, 0, len(nm.notifiers))
	for id := range nm.notifiers {
		ids = append(ids, id)
	}
	return ids
}

// Enqueue hands an event to the delivery workers. It never blocks: when the
// queue is full the event is dropped and logged.
func (nm *NotificationManager) Enqueue(event NotificationEvent, notifierIDs []string) {
	if len(notifierIDs) == 0 {
		return
	}

	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if nm.closed {
		return
	}
	select {
	case nm.jobs <- notificationJob{Event: event, NotifierIDs: notifierIDs}:
	default:
		nm.logger.Warnf("notification queue full, dropping notification: reaction=%s event_id=%s", event.ReactionName, event.ID)
	}
}

func (nm *NotificationManager) startWorkers(n int) {
	for range n {
		nm.wg.Add(1)
		go nm.worker()
	}
}

func (nm *NotificationManager) worker() {
	defer nm.wg.Done()
	for job := range nm.jobs {
		nm.dispatchJob(job)
	}
}

func (nm *NotificationManager) dispatchJob(job notificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	for _, id := range job.NotifierIDs {
		nm.notifyWithRetry(ctx, id, job.Event)
	}
}

// notifyWithRetry delivers with exponential backoff.
func (nm *NotificationManager) notifyWithRetry(ctx context.Context, notifierID string, event NotificationEvent) {
	notifier, ok := nm.GetNotifier(notifierID)
	if !ok {
		nm.logger.Warnf("notification failed: notifier=%s error=notifier not found", notifierID)
		return
	}

	backoff := initialBackoff
	for attempt := 0; attempt <= maxNotifyRetries; attempt++ {
		err := notifier.Notify(ctx, event)
		if err == nil {
			return
		}
		nm.logger.Warnf("notification failed: notifier=%s attempt=%d error=%v", notifierID, attempt+1, err)
		if attempt == maxNotifyRetries {
			nm.logger.Errorf("notification failed after %d attempts: notifier=%s", maxNotifyRetries+1, notifierID)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// Notify delivers an event synchronously to the given notifiers, joining
// every failure into the returned error.
func (nm *NotificationManager) Notify(ctx context.Context, event NotificationEvent, notifierIDs []string) error {
	var errs []error
	for _, id := range notifierIDs {
		notifier, exists := nm.GetNotifier(id)
		if !exists {
			errs = append(errs, fmt.Errorf("notifier %s not found", id))
			continue
		}
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notifier %s failed: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close drains the queue, stops the workers and closes every notifier.
func (nm *NotificationManager) Close() error {
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return nil
	}
	nm.closed = true
	close(nm.jobs)
	nm.mu.Unlock()

	nm.wg.Wait()

	nm.mu.Lock()
	var errs []error
	for id, notifier := range nm.notifiers {
		if err := notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing notifier %s: %w", id, err))
		}
	}
	nm.notifiers = make(map[string]Notifier)
	nm.mu.Unlock()
	return errors.Join(errs...)
}

// newNotificationEvent converts an engine event. Product molecules are
// copied because the store reuses them.
func newNotificationEvent(envID EnvironmentID, ev rxn.Event, names func(int) string, tick int64, simTime float64) NotificationEvent {
	out := NotificationEvent{
		ID:            NewRandomID(),
		EnvironmentID: envID,
		ReactionName:  ev.Reaction.Name,
		Order:         ev.Reaction.Order,
		EventType:     ev.Type.String(),
		Timestamp:     time.Now().Unix(),
		EnvTime:       tick,
		SimTime:       simTime,
		Reactants:     make([]string, 0, len(ev.Reactants)),
		Position:      ev.Position,
	}
	for _, id := range ev.Reactants {
		out.Reactants = append(out.Reactants, names(int(id)))
	}
	for _, m := range ev.Products {
		out.Products = append(out.Products, viewOf(m, names))
	}
	return out
}

// JSON returns the notification event as JSON bytes
func (ne NotificationEvent) JSON() ([]byte, error) {
	return json.Marshal(ne)
}
