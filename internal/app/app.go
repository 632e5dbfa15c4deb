// Package app wires configuration, persistence, timers and publishers into
// a single application object and manages per-user sessions on top of it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/prepdeck/internal/config"
	"github.com/abhisek/prepdeck/internal/events"
	"github.com/abhisek/prepdeck/internal/flashcard"
	"github.com/abhisek/prepdeck/internal/gateway"
	"github.com/abhisek/prepdeck/internal/store"
	"github.com/abhisek/prepdeck/internal/timer"
)

// ErrNoActivityLog is returned by History when no SQL store backs the
// activity log.
var ErrNoActivityLog = errors.New("activity log not configured")

// ErrUnknownUser is returned for operations on a user that is not signed in.
var ErrUnknownUser = errors.New("user not signed in")

// Options holds the dependencies of an App. Zero fields are built from
// Config.
type Options struct {
	Config config.Config
	Logger logrus.FieldLogger

	// Gateway replaces the configured backend. It is still wrapped with
	// retry and metrics decorators.
	Gateway gateway.Gateway
	// ActivityLog replaces the store-backed activity log.
	ActivityLog store.EventRepo
	// Publisher replaces the configured event publisher.
	Publisher events.Publisher
	// Registry receives metrics. A fresh registry is created when nil.
	Registry *prometheus.Registry
	// Clock overrides time.Now.
	Clock func() time.Time
}

// App is the process-wide application state. It is safe for concurrent use.
type App struct {
	cfg      config.Config
	log      logrus.FieldLogger
	loc      *time.Location
	schedule flashcard.Schedule
	now      func() time.Time

	gw          gateway.Gateway
	activityLog store.EventRepo
	publisher   events.Publisher
	timers      *timer.Service
	registry    *prometheus.Registry
	active      prometheus.Gauge
	closers     []func(context.Context) error

	mu       sync.Mutex
	sessions map[string]*UserSession
	closed   bool
}

// New builds an App from opts, connecting to the configured backends.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:         cfg,
		log:         opts.Logger,
		loc:         loc,
		schedule:    cfg.Schedule(),
		now:         opts.Clock,
		activityLog: opts.ActivityLog,
		publisher:   opts.Publisher,
		registry:    opts.Registry,
		sessions:    make(map[string]*UserSession),
	}
	if a.log == nil {
		a.log = logrus.StandardLogger()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	a.active = promauto.With(a.registry).NewGauge(prometheus.GaugeOpts{
		Name: "prepdeck_user_sessions_active",
		Help: "Number of signed-in users.",
	})

	raw := opts.Gateway
	if raw == nil {
		raw, err = a.openBackend(ctx)
		if err != nil {
			a.closeAll(ctx)
			return nil, err
		}
	}
	a.gw = gateway.WithMetrics(
		gateway.WithRetry(raw, cfg.GatewayRetry()),
		gateway.NewMetrics(a.registry),
		a.log,
	)

	if a.publisher == nil {
		if cfg.Events.AMQPURI == "" {
			a.publisher = events.Nop{}
		} else {
			pub, err := events.DialAMQP(cfg.Events.AMQPURI, cfg.Events.Exchange, a.log)
			if err != nil {
				a.closeAll(ctx)
				return nil, err
			}
			a.publisher = pub
		}
	}

	a.timers = timer.New(loc, a.log)
	return a, nil
}

// openBackend connects the configured record backend. SQL backends also
// provide the activity log; other backends get one only when a SQLite path
// is configured explicitly.
func (a *App) openBackend(ctx context.Context) (gateway.Gateway, error) {
	cfg := a.cfg
	switch cfg.Backend {
	case config.BackendSQLite:
		st, err := a.openSQLite()
		if err != nil {
			return nil, err
		}
		return st.Records(), nil

	case config.BackendPostgres:
		st, err := store.Open(store.DriverPostgres, cfg.Database.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.adoptStore(st)
		return st.Records(), nil

	case config.BackendRedis:
		r, err := gateway.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return r.Close() })
		return r, a.optionalLog()

	case config.BackendMongo:
		m, err := gateway.DialMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, m.Close)
		return m, a.optionalLog()

	case config.BackendMemory:
		return gateway.NewMemory(), a.optionalLog()
	}
	return nil, fmt.Errorf("unknown backend: %q", cfg.Backend)
}

func (a *App) openSQLite() (*store.Store, error) {
	path := a.cfg.Database.Path
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
		path = p
	} else if err := store.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("create DB dir: %w", err)
	}

	st, err := store.Open(store.DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.adoptStore(st)
	return st, nil
}

func (a *App) optionalLog() error {
	if a.activityLog != nil || a.cfg.Database.Path == "" {
		return nil
	}
	_, err := a.openSQLite()
	return err
}

func (a *App) adoptStore(st *store.Store) {
	if a.activityLog == nil {
		a.activityLog = st.EventRepo()
	}
	a.closers = append(a.closers, func(context.Context) error { return st.Close() })
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the app logger.
func (a *App) Logger() logrus.FieldLogger { return a.log }

// Registry returns the metrics registry.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Gateway returns the decorated persistence gateway.
func (a *App) Gateway() gateway.Gateway { return a.gw }

// Location returns the time zone calendar days are evaluated in.
func (a *App) Location() *time.Location { return a.loc }

// Now returns the current time from the app clock.
func (a *App) Now() time.Time { return a.now() }

// History returns a user's logged activities, newest first.
func (a *App) History(ctx context.Context, userID string, opts store.QueryOpts) ([]store.ActivityEntry, error) {
	if a.activityLog == nil {
		return nil, ErrNoActivityLog
	}
	return a.activityLog.QueryActivities(ctx, userID, opts)
}

// Close signs every user out, stops timers and releases connections.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	users := make([]*UserSession, 0, len(a.sessions))
	for _, u := range a.sessions {
		users = append(users, u)
	}
	a.sessions = make(map[string]*UserSession)
	a.mu.Unlock()

	var errs []error
	for _, u := range users {
		if err := u.teardown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.active.Dec()
	}
	a.timers.Stop()
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := a.closeAll(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
