package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stockly-app/sessionkit/pkg/apiclient"
	"github.com/stockly-app/sessionkit/pkg/authevents"
	"github.com/stockly-app/sessionkit/pkg/config"
	"github.com/stockly-app/sessionkit/pkg/credstore"
	"github.com/stockly-app/sessionkit/pkg/logger"
	"github.com/stockly-app/sessionkit/pkg/messages"
	redispkg "github.com/stockly-app/sessionkit/pkg/redis"
	"github.com/stockly-app/sessionkit/pkg/requestid"
	"github.com/stockly-app/sessionkit/pkg/secrets"
	"github.com/stockly-app/sessionkit/pkg/session"
)

// app holds the wired session stack for one command invocation.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	store    *credstore.Store
	bus      *authevents.Bus
	client   *apiclient.Client
	manager  *session.Manager
	registry *prometheus.Registry
	closers  []func() error

	// storeInfo describes where credentials live, for the status command.
	storeInfo func() string
	checks    []healthCheck
}

type healthCheck struct {
	name  string
	probe func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, stderr io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      newLogger(cfg, stderr),
		registry: prometheus.NewRegistry(),
	}

	backend, err := a.backend(ctx)
	if err != nil {
		return nil, err
	}

	storeOpts := []credstore.Option{
		credstore.WithNamespace(cfg.StoreNamespace),
		credstore.WithLogger(a.log),
	}
	key, err := cfg.StoreKeyBytes()
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	if key != nil {
		sealer, err := secrets.NewSealer(key, cfg.StoreNamespace)
		if err != nil {
			return nil, errors.Join(err, a.Close())
		}
		storeOpts = append(storeOpts, credstore.WithSealer(sealer))
	}
	a.store = credstore.New(backend, storeOpts...)

	a.bus = authevents.New(authevents.WithLogger(a.log))
	a.closers = append(a.closers, a.bus.Close)

	metrics, err := apiclient.NewMetrics(a.registry)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.client, err = apiclient.New(cfg.APIBase, a.store, a.bus,
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithUserAgent(appName+"/"+Version),
		apiclient.WithLogger(a.log),
		apiclient.WithMetrics(metrics),
	)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	catalog, err := messages.New(cfg.Language)
	if err != nil {
		a.log.Warn("falling back to default language", logger.Error(err))
		catalog = messages.MustNew(messages.DefaultLanguage)
	}

	a.manager, err = session.New(a.client, a.store, a.bus,
		session.WithLogger(a.log),
		session.WithMessages(catalog),
		session.WithReporter(stderrReporter{w: stderr}),
	)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.closers = append(a.closers, a.manager.Close)

	a.manager.Hydrate(ctx)
	return a, nil
}

func (a *app) backend(ctx context.Context) (credstore.Backend, error) {
	switch a.cfg.StoreBackend {
	case config.BackendMemory:
		mb := credstore.NewMemoryBackend()
		a.storeInfo = func() string { return fmt.Sprintf("memory (%d entries)", mb.Len()) }
		return mb, nil
	case config.BackendRedis:
		client, err := redispkg.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.checks = append(a.checks, healthCheck{name: "redis", probe: redispkg.Healthcheck(client)})
		addr := client.Options().Addr
		a.storeInfo = func() string { return "redis (" + addr + ")" }
		return credstore.NewRedisBackend(client), nil
	default:
		fb := credstore.NewFileBackend(a.cfg.StorePath)
		a.storeInfo = func() string { return "file (" + fb.Path() + ")" }
		return fb, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, appName),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithOutput(w),
		logger.WithContextExtractors(requestid.LogExtractor),
	}
	switch logger.Format(cfg.LogFormat) {
	case logger.FormatJSON, logger.FormatText:
		opts = append(opts, logger.WithFormat(logger.Format(cfg.LogFormat)))
	}
	return logger.New(opts...)
}

type stderrReporter struct {
	w io.Writer
}

func (r stderrReporter) Report(ctx context.Context, rep session.Report) {
	if rep.Code != "" {
		_, _ = fmt.Fprintf(r.w, "%s: %s (%s)\n", rep.Title, rep.Message, rep.Code)
		return
	}
	_, _ = fmt.Fprintf(r.w, "%s: %s\n", rep.Title, rep.Message)
}
