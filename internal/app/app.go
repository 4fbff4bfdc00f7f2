// Package app wires the stocksync components into one explicit context
// object. Nothing here is process-wide: every App owns its store, monitor
// and engine, and tests can build as many as they need.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/stocksync/internal/config"
	"github.com/roach88/stocksync/internal/connectivity"
	"github.com/roach88/stocksync/internal/engine"
	"github.com/roach88/stocksync/internal/httpapi"
	"github.com/roach88/stocksync/internal/metrics"
	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/remote"
	"github.com/roach88/stocksync/internal/status"
	"github.com/roach88/stocksync/internal/store"
	"github.com/roach88/stocksync/internal/submit"
)

// App holds every component of one stocksync instance.
type App struct {
	Config    config.Config
	DeviceID  string
	Store     *store.Store
	Monitor   *connectivity.Monitor
	Submitter *submit.Submitter
	Engine    *engine.Engine
	Reporter  *status.Reporter
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Logger    zerolog.Logger

	watcher     *connectivity.Watcher
	unsubscribe func()
}

type options struct {
	probe      connectivity.Probe
	httpClient remote.HttpRequestDoer
	deviceGen  engine.DeviceIDGenerator
}

// Option customizes New.
type Option func(*options)

// WithProbe replaces the host interface probe used in auto mode.
func WithProbe(p connectivity.Probe) Option {
	return func(o *options) {
		o.probe = p
	}
}

// WithHTTPClient replaces the HTTP client of the remote endpoint.
func WithHTTPClient(doer remote.HttpRequestDoer) Option {
	return func(o *options) {
		o.httpClient = doer
	}
}

// WithDeviceIDGenerator replaces the generator used the first time a store
// needs a device id.
func WithDeviceIDGenerator(g engine.DeviceIDGenerator) Option {
	return func(o *options) {
		o.deviceGen = g
	}
}

// New opens the store and builds every component from cfg.
// The caller must Close the returned App.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	o := options{
		probe:     connectivity.InterfaceProbe,
		deviceGen: engine.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	mode, err := connectivity.ParseMode(cfg.Connectivity.Mode)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}

	a := &App{
		Config:   cfg,
		Store:    st,
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}
	a.Registry.MustRegister(collectors.NewGoCollector())
	a.Metrics = metrics.NewMetrics(a.Registry)

	a.DeviceID = cfg.Remote.DeviceID
	if a.DeviceID == "" {
		if a.DeviceID, err = st.DeviceID(ctx, o.deviceGen.Generate); err != nil {
			st.Close()
			return nil, err
		}
	}

	var sender engine.Sender = unconfiguredRemote{}
	if cfg.Remote.BaseURL == "" {
		logger.Warn().Msg("remote.base_url not set, every movement stays queued")
		mode = connectivity.ModeOffline
	} else {
		clientOpts := []remote.ClientOption{
			remote.WithToken(cfg.Remote.Token),
			remote.WithTimeout(cfg.Remote.Timeout),
		}
		if o.httpClient != nil {
			clientOpts = append(clientOpts, remote.WithHTTPClient(o.httpClient))
		}
		client, err := remote.NewClient(cfg.Remote.BaseURL, clientOpts...)
		if err != nil {
			st.Close()
			return nil, err
		}
		sender = client
	}

	a.Monitor = connectivity.New(initialOnline(mode, o.probe), connectivity.WithLogger(logger))
	if mode == connectivity.ModeAuto {
		a.watcher = connectivity.NewWatcher(a.Monitor, o.probe, cfg.Connectivity.PollInterval, logger)
	}

	a.Engine = engine.New(st, sender, a.Monitor,
		engine.WithDeviceID(a.DeviceID),
		engine.WithMaxRejections(cfg.Sync.MaxRejections),
		engine.WithMetrics(a.Metrics),
		engine.WithLogger(logger.With().Str("component", "engine").Logger()),
		engine.WithObserver(func(from, to engine.State) {
			logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("drain state")
		}),
	)

	a.Submitter = submit.New(st, sender, a.Monitor,
		submit.WithDeviceID(a.DeviceID),
		submit.WithMetrics(a.Metrics),
		submit.WithLogger(logger.With().Str("component", "submit").Logger()),
		submit.WithOnQueued(func() {
			if a.Monitor.IsOnline() {
				a.Engine.Request(engine.TriggerQueued)
			}
		}),
	)

	a.Reporter = status.New(a.Monitor, st, cfg.Status.Interval,
		status.WithMetrics(a.Metrics),
		status.WithLogger(logger.With().Str("component", "status").Logger()),
	)

	a.unsubscribe = a.Monitor.Subscribe(func(t connectivity.Transition) {
		if t == connectivity.WentOnline {
			a.Engine.Request(engine.TriggerOnline)
		}
	})

	logger.Debug().
		Str("db", cfg.Store.Path).
		Str("device_id", a.DeviceID).
		Str("mode", string(mode)).
		Bool("online", a.Monitor.IsOnline()).
		Msg("app ready")
	return a, nil
}

// Submit hands m to the submitter.
func (a *App) Submit(ctx context.Context, m movement.Movement) (submit.Outcome, error) {
	return a.Submitter.Submit(ctx, m)
}

// Drain runs one drain pass immediately.
func (a *App) Drain(ctx context.Context) (engine.Report, error) {
	return a.Engine.Drain(ctx)
}

// Handler returns the local HTTP surface.
func (a *App) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Params{
		Drainer:  a.Engine,
		Reporter: a.Reporter,
		Queue:    a.Store,
		Gatherer: a.Registry,
		Logger:   a.Logger.With().Str("component", "http").Logger(),
	})
}

// Run starts the long-lived agent and blocks until ctx is cancelled or a
// component fails. A drain is requested on startup because a previous run
// may have left records behind and no transition will announce them.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}
	g.Go(func() error { return a.Engine.Run(ctx) })
	g.Go(func() error { return a.Reporter.Run(ctx) })

	if interval := a.Config.Sync.Interval; interval > 0 {
		g.Go(func() error { return a.tick(ctx, interval) })
	}

	if addr := a.Config.HTTP.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.Logger.Info().Str("addr", addr).Msg("status server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.Engine.Request(engine.TriggerStartup)

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// tick requests a drain on every interval as a safety net for missed
// connectivity transitions.
func (a *App) tick(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.Engine.Request(engine.TriggerTimer)
		}
	}
}

// Close detaches the connectivity subscription and closes the store.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	return a.Store.Close()
}

// errNoRemote is reported by unconfiguredRemote.
var errNoRemote = errors.New("remote endpoint not configured")

// unconfiguredRemote stands in for the endpoint when remote.base_url is
// empty. The monitor is pinned offline in that case, so it is never called
// in practice.
type unconfiguredRemote struct{}

func (unconfiguredRemote) SendMovement(context.Context, remote.Request) (remote.Response, error) {
	return remote.Response{}, &remote.TransientError{Err: errNoRemote}
}

func initialOnline(mode connectivity.Mode, probe connectivity.Probe) bool {
	switch mode {
	case connectivity.ModeOnline:
		return true
	case connectivity.ModeOffline:
		return false
	}
	online, err := probe()
	return err == nil && online
}
