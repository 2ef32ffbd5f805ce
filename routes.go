// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net"
	"net/http"

	"emperror.dev/emperror"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/xmidt-org/arrange/arrangehttp"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"github.com/xmidt-org/panoptes/archive"
	"github.com/xmidt-org/panoptes/diaglog"
	"github.com/xmidt-org/panoptes/proxy"
	"github.com/xmidt-org/panoptes/streamcache"
	"github.com/xmidt-org/panoptes/vms"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/touchstone"
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	healthPath     = "/health"
	metricsPath    = "/metrics"
	mockStreamPath = "/mock-streams/"

	recoveryStatusCode = 555
)

func provideVMS(config VMSConfig, f *touchstone.Factory, logger *zap.Logger) (*vms.Client, error) {
	m, err := vms.NewMeasures(f)
	if err != nil {
		return nil, err
	}

	httpClient, err := config.Client.NewClient()
	if err != nil {
		return nil, emperror.Wrap(err, "failed to build the VMS client")
	}

	sc := config.StreamClient
	if sc.Transport.ResponseHeaderTimeout <= 0 {
		sc.Transport.ResponseHeaderTimeout = config.HeaderTimeout
	}
	streamClient, err := sc.NewClient()
	if err != nil {
		return nil, emperror.Wrap(err, "failed to build the VMS stream client")
	}

	return vms.NewClient(vms.ClientConfig{
		HTTPClient:    httpClient,
		StreamClient:  streamClient,
		Timeout:       config.Timeout,
		HeaderTimeout: config.HeaderTimeout,
		Logger:        logger,
	}, m, sallust.Get)
}

func provideStreamCache(config StreamsConfig, f *touchstone.Factory, logger *zap.Logger, lc fx.Lifecycle) (*streamcache.Cache, error) {
	fetcher, err := streamcache.NewRouteFetcher(streamcache.RouteFetcherConfig{
		RouteBase:  config.RouteBase,
		PublicBase: config.PublicBase,
	})
	if err != nil {
		return nil, err
	}
	m, err := streamcache.NewMeasures(f)
	if err != nil {
		return nil, err
	}
	c, err := streamcache.New(streamcache.Config{
		TTL:           config.TTL,
		CheckInterval: config.CheckInterval,
		FetchTimeout:  config.FetchTimeout,
		Logger:        logger,
	}, fetcher, m)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{OnStart: c.Start, OnStop: c.Stop})
	return c, nil
}

func provideArchive(config ArchiveConfig, client *vms.Client, f *touchstone.Factory, logger *zap.Logger) (*archive.Controller, error) {
	m, err := archive.NewMeasures(f)
	if err != nil {
		return nil, err
	}
	return archive.New(archive.Config{
		PlaceholderURL: config.PlaceholderURL,
		Logger:         logger,
	}, client, m, sallust.Get)
}

func provideHandlers(config StreamsConfig, client *vms.Client, cache *streamcache.Cache, ctrl *archive.Controller) (*proxy.Handlers, error) {
	return proxy.NewHandlers(proxy.Config{PublicBase: config.PublicBase}, client, cache, ctrl)
}

type PrimaryRouterIn struct {
	fx.In
	Logger      *zap.Logger
	Handlers    *proxy.Handlers
	Diagnostics *diaglog.Logger
	Streams     StreamsConfig

	// Tracing will be used to set up tracing instrumentation code.
	Tracing candlelight.Tracing
}

// buildPrimaryHandler assembles the browser-facing routes.
func buildPrimaryHandler(in PrimaryRouterIn, metrics touchhttp.ServerInstrumenter) http.Handler {
	r := mux.NewRouter()
	r.Use(
		otelmux.Middleware("server_primary",
			otelmux.WithTracerProvider(in.Tracing.TracerProvider()),
			otelmux.WithPropagators(in.Tracing.Propagator()),
		),
		mux.MiddlewareFunc(candlelight.EchoFirstTraceNodeInfo(in.Tracing, false)),
	)

	in.Handlers.Mount(r)
	in.Diagnostics.Mount(r)
	if len(in.Streams.MockDir) > 0 {
		r.PathPrefix(mockStreamPath).Handler(
			http.StripPrefix(mockStreamPath, http.FileServer(http.Dir(in.Streams.MockDir))),
		).Methods(http.MethodGet, http.MethodHead)
	}

	return alice.New(
		metrics.Then,
		recovery.Middleware(recovery.WithStatusCode(recoveryStatusCode)),
		SetLogger(in.Logger),
	).Then(r)
}

func buildHealthHandler(metrics touchhttp.ServerInstrumenter) http.Handler {
	r := mux.NewRouter()
	r.Handle(healthPath, httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	return metrics.Then(r)
}

func buildMetricsHandler(h touchhttp.Handler) http.Handler {
	r := mux.NewRouter()
	r.Handle(metricsPath, h).Methods(http.MethodGet)
	return r
}

// logListener reports the bound address, which differs from the configured
// one when the port is 0.
func logListener(logger *zap.Logger) arrangehttp.ListenerConstructor {
	return func(next net.Listener) net.Listener {
		logger.Info("starting server", zap.Stringer("address", next.Addr()))
		return next
	}
}

type ServersIn struct {
	fx.In
	Lifecycle      fx.Lifecycle
	Shutdowner     fx.Shutdowner
	Logger         *zap.Logger
	Config         ServersConfig
	PrimaryMetrics touchhttp.ServerInstrumenter `name:"servers.primary.metrics"`
	HealthMetrics  touchhttp.ServerInstrumenter `name:"servers.health.metrics"`
	MetricsHandler touchhttp.Handler
	Primary        PrimaryRouterIn

	// Listeners decorates every server's listener.
	Listeners arrangehttp.ListenerChain `optional:"true"`
}

// runServer binds the listener on start, so a taken port fails the
// application, and shuts the server down gracefully on stop. A server that
// exits on its own shuts the application down.
func runServer(in ServersIn, name string, config arrangehttp.ServerConfig, h http.Handler) error {
	s, err := config.NewServer(h)
	if err != nil {
		return emperror.WrapWith(err, "failed to build server", "server", name)
	}

	logger := in.Logger.With(zap.String("server", name), diaglog.CategorySystem.Field())
	listeners := arrangehttp.NewListenerChain(logListener(logger)).Extend(in.Listeners)
	in.Lifecycle.Append(fx.Hook{
		OnStart: arrangehttp.ServerOnStart(s, listeners.Factory(config), arrangehttp.ShutdownOnExit(in.Shutdowner)),
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return s.Shutdown(ctx)
		},
	})
	return nil
}

// BuildServers starts the primary, metrics and health listeners.
func BuildServers(in ServersIn) error {
	servers := []struct {
		name    string
		config  arrangehttp.ServerConfig
		handler http.Handler
	}{
		{name: "primary", config: in.Config.Primary, handler: buildPrimaryHandler(in.Primary, in.PrimaryMetrics)},
		{name: "metrics", config: in.Config.Metrics, handler: buildMetricsHandler(in.MetricsHandler)},
		{name: "health", config: in.Config.Health, handler: buildHealthHandler(in.HealthMetrics)},
	}

	for _, s := range servers {
		if err := runServer(in, s.name, s.config, s.handler); err != nil {
			return err
		}
	}
	return nil
}
