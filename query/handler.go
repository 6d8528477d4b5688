package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/semserve/engine"
	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/routeconfig"
)

// handler holds the collaborators both dialect handlers share.
type handler struct {
	engines  *engine.Cache
	resolver *engine.Resolver
	prober   *engine.Prober
	log      *slog.Logger
}

// Option configures a dialect handler.
type Option func(*handler)

// WithLogger sets the handler logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *handler) {
		h.log = log
	}
}

// WithProber replaces the connectivity prober used to identify faulty
// data sources after an execution failure.
func WithProber(p *engine.Prober) Option {
	return func(h *handler) {
		h.prober = p
	}
}

func newHandler(engines *engine.Cache, resolver *engine.Resolver, options ...Option) handler {
	h := handler{
		engines:  engines,
		resolver: resolver,
		prober:   engine.NewProber(5 * time.Second),
		log:      slog.Default(),
	}
	for _, opt := range options {
		opt(&h)
	}
	return h
}

// prepare substitutes every named query template, resolves the data
// sources, and returns the engine for the resolved source set. A
// QueryInfo with caching disabled gets its engine's HTTP cache
// invalidated before execution so every request hits the sources.
func (h *handler) prepare(ctx context.Context, qi *routeconfig.QueryInfo, params []routeconfig.Parameter, pathParams, queryParams map[string]string) (map[string]string, engine.Engine, []string, error) {
	substituted := make(map[string]string, len(qi.QueryOrder))
	for _, key := range qi.QueryOrder {
		text, err := Substitute(qi.Queries[key].Text, params, pathParams, queryParams, qi.Dialect)
		if err != nil {
			return nil, nil, nil, err
		}
		substituted[key] = text
	}

	sources, err := h.resolver.Resolve(ctx, qi.DataSources)
	if err != nil {
		return nil, nil, nil, err
	}

	eng, err := h.engines.Get(ctx, sources, qi.Lenient)
	if err != nil {
		return nil, nil, nil, err
	}

	if !qi.Cache {
		if err := eng.InvalidateHTTPCache(ctx); err != nil {
			h.log.Warn("could not invalidate engine HTTP cache",
				"sources", sources, "error", err)
		}
	}
	return substituted, eng, sources, nil
}

// executionError turns an engine failure into the error the route layer
// maps to a status. Connectivity failures trigger a probe of every
// resolved source so the message can name the faulty one; all other
// failures keep the engine message intact for classification.
func (h *handler) executionError(ctx context.Context, component, query string, sources []string, err error) error {
	qe := errors.NewQueryError(query, err)

	if !engine.IsConnectivityFailure(err) {
		return qe
	}

	msg := "query execution failed with a connectivity error"
	if source, probeErr, ok := h.prober.IdentifyFaultySource(ctx, sources); ok {
		msg = fmt.Sprintf("%s; identified faulty data source %s (probe: %v)", msg, source, probeErr)
	} else {
		msg += "; could not identify a faulty data source"
	}
	return errors.WrapConnectivity(qe, component, "Handle", msg)
}
