package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/kilianp07/gridshed/api"
	"github.com/kilianp07/gridshed/app/plugins"
	"github.com/kilianp07/gridshed/config"
	"github.com/kilianp07/gridshed/core/dispatch"
	"github.com/kilianp07/gridshed/core/dispatch/logging"
	"github.com/kilianp07/gridshed/core/events"
	"github.com/kilianp07/gridshed/core/grid"
	coremetrics "github.com/kilianp07/gridshed/core/metrics"
	coremon "github.com/kilianp07/gridshed/core/monitoring"
	"github.com/kilianp07/gridshed/core/priority"
	"github.com/kilianp07/gridshed/infra/logger"
	"github.com/kilianp07/gridshed/infra/metrics"
	"github.com/kilianp07/gridshed/infra/monitoring"
	"github.com/kilianp07/gridshed/infra/mqtt"
	infrapriority "github.com/kilianp07/gridshed/infra/priority"
	"github.com/kilianp07/gridshed/infra/stream"
	"github.com/kilianp07/gridshed/infra/telemetry"
	"github.com/kilianp07/gridshed/internal/eventbus"
)

// Service wires the priority registry, the decision manager and the adapters
// around them.
type Service struct {
	Registry *priority.Registry
	Manager  *dispatch.DecisionManager
	Grid     *grid.Store

	cfg        *config.Config
	store      logging.LogStore
	sink       coremetrics.MetricsSink
	monitor    coremon.Monitor
	decisions  *eventbus.Bus[events.DecisionEvent]
	priorities *eventbus.Bus[events.PriorityEvent]
	hub        *stream.Hub
	publisher  *mqtt.PahoClient
	log        logger.Logger
}

// New creates a Service from the configuration. A priority configuration that
// cannot be loaded is reported but never fatal: the built-in baseline is used.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}

	s := &Service{
		Grid:       grid.NewStore(),
		cfg:        cfg,
		monitor:    mon,
		decisions:  eventbus.New[events.DecisionEvent](),
		priorities: eventbus.New[events.PriorityEvent](),
		log:        logg,
	}

	s.Registry = infrapriority.NewRegistry(cfg.Priorities.DefaultPath, cfg.Priorities.OverridePath, logger.New("priority"))
	s.Registry.SetEventBus(s.priorities)
	if err := s.Registry.Load(); err != nil {
		logg.Errorf("priority config: %v", err)
		mon.CaptureException(err, map[string]string{"component": "priority"})
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink

	manager, err := dispatch.NewDecisionManager(s.Registry, dispatch.PreferenceSelector{}, dispatch.PriorityAllocator{}, cfg.Dispatch, logger.New("dispatch"), sink)
	if err != nil {
		return nil, fmt.Errorf("decision manager: %w", err)
	}
	s.Manager = manager
	manager.SetMonitor(mon)
	manager.SetEventBus(s.decisions)

	pred, err := plugins.NewPredictor(cfg.Prediction)
	if err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}
	manager.SetPredictor(pred)

	store, err := plugins.NewLogStore(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("decision log: %w", err)
	}
	s.store = store
	manager.SetLogStore(store)

	s.hub = stream.NewHub(logger.New("stream"))

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPahoClient(cfg.MQTT, mon)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.publisher = pub
	}
	return s, nil
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	return api.NewRouter(api.Deps{
		Decider:      s.Manager,
		Priorities:   s.Registry,
		Grid:         s.Grid,
		History:      s.store,
		HistoryToken: s.cfg.HTTP.HistoryToken,
		Stream:       s.hub,
		Metrics:      promhttp.Handler(),
	})
}

// Run starts the adapters and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.StartPriorityCollector(ctx, s.priorities, s.sink, logger.New("metrics"))
	go s.watchPersistence(ctx)
	go s.hub.Run(ctx, s.decisions, s.priorities)
	if s.publisher != nil {
		go mqtt.Forward(ctx, s.publisher, s.decisions, s.priorities, logger.New("mqtt_forward"))
	}
	if s.cfg.MQTT.Enabled && s.cfg.Telemetry.Enabled {
		in, err := telemetry.NewIngestor(s.cfg.MQTT, s.cfg.Telemetry, s.Manager, prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		go func() {
			if err := in.Start(ctx); err != nil {
				s.log.Errorf("telemetry: %v", err)
			}
		}()
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("HTTP API listening on %s", s.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

// watchPersistence reports operator changes that could not be written.
func (s *Service) watchPersistence(ctx context.Context) {
	sub := s.priorities.Subscribe(16)
	defer s.priorities.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if !ev.Persisted && ev.Action != events.PriorityLoaded {
				s.monitor.CaptureException(fmt.Errorf("priority %s of %s not persisted", ev.Action, ev.Name),
					map[string]string{"component": "priority"})
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var err error
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if s.Manager != nil {
		err = multierr.Append(err, s.Manager.Close())
	} else if s.store != nil {
		err = multierr.Append(err, s.store.Close())
	}
	s.priorities.Close()
	closeSink(s.sink)
	s.monitor.Flush(2 * time.Second)
	return err
}

func closeSink(sink coremetrics.MetricsSink) {
	switch v := sink.(type) {
	case *coremetrics.MultiSink:
		for _, inner := range v.Sinks {
			closeSink(inner)
		}
	case interface{ Close() }:
		v.Close()
	}
}
