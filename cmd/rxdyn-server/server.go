package main

import (
	"net/http"

	"github.com/daniacca/rxdyn/internal/achem"
	"github.com/daniacca/rxdyn/internal/achem/notifiers"
	"github.com/daniacca/rxdyn/internal/metrics"
)

// wsNotifierID is the ID of the built-in WebSocket notifier behind /ws.
const wsNotifierID = "ws"

// Server represents the HTTP server for rxdyn
type Server struct {
	manager           *achem.EnvironmentManager
	globalNotifierMgr *achem.NotificationManager
	ws                *notifiers.WebSocketNotifier
	metrics           *metrics.Collector
	snapshotDir       string
	snapshotEvery     int64
	logger            achem.Logger
}

// NewServer creates a server whose environments share one notification
// manager, the /ws notifier and the metrics collector.
func NewServer(logger achem.Logger, cfg ServerConfig) *Server {
	if logger == nil {
		logger = achem.NewNoOpLogger()
	}
	s := &Server{
		manager:           achem.NewEnvironmentManagerWithLogger(logger),
		globalNotifierMgr: achem.NewNotificationManagerWithLogger(logger, cfg.NotifierWorkers),
		ws:                notifiers.NewWebSocketNotifier(wsNotifierID),
		metrics:           metrics.NewCollector(cfg.RuntimeMetrics),
		snapshotDir:       cfg.SnapshotDir,
		snapshotEvery:     cfg.SnapshotEveryTicks,
		logger:            logger,
	}
	if err := s.globalNotifierMgr.RegisterNotifier(s.ws); err != nil {
		logger.Errorf("failed to register websocket notifier: %v", err)
	}
	s.manager.OnCreate(s.configureEnvironment)
	s.manager.OnDelete(func(id achem.EnvironmentID) {
		s.metrics.Forget(string(id))
	})
	return s
}

// configureEnvironment wires notifications, snapshots and metrics into
// every new environment. It runs under the manager lock.
func (s *Server) configureEnvironment(env *achem.Environment) {
	env.SetNotificationManager(s.globalNotifierMgr)
	env.SetSnapshotConfig(s.snapshotDir, s.snapshotEvery)
	env.OnStep(func(r achem.StepReport) {
		s.metrics.ObserveStep(metrics.Step{
			Environment: string(r.EnvironmentID),
			Seconds:     r.Duration.Seconds(),
			SimTime:     r.SimTime,
			Events:      r.Events,
			Counts:      r.Counts,
		})
	})
	s.metrics.AddEnvironment()
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/envs", s.handleListEnvironments)
	mux.HandleFunc("/env/", s.handleEnvironmentRoutes)
	mux.HandleFunc("/notifiers", s.handleNotifiersRoutes)
	mux.HandleFunc("/notifiers/", s.handleNotifiersRoutes)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/ws", s.ws)
	return mux
}

// Close stops every environment and flushes pending notifications.
func (s *Server) Close() error {
	s.manager.Close()
	return s.globalNotifierMgr.Close()
}
