// Package server exposes a route specification as an HTTP service:
// every configured route is mounted on the mux, executed through its
// dialect handler, postprocessed, and written in the negotiated
// representation.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/c360/semserve/convert"
	"github.com/c360/semserve/engine"
	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/pipes"
	"github.com/c360/semserve/query"
	"github.com/c360/semserve/render"
	"github.com/c360/semserve/routeconfig"
)

const shutdownTimeout = 5 * time.Second

// Config holds the HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RateLimit caps requests per second across all routes; zero
	// disables limiting.
	RateLimit float64
	RateBurst int
}

// Dependencies are the collaborators the server is wired with.
type Dependencies struct {
	Engines  *engine.Cache
	Pipes    *pipes.Registry
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// Server mounts a route specification on an HTTP mux.
type Server struct {
	cfg      Config
	spec     *routeconfig.Spec
	graphql  *query.GraphQLLD
	sparql   *query.SPARQL
	pipes    *pipes.Registry
	renderer *render.Renderer
	registry *prometheus.Registry
	metrics  *metrics
	limiter  *rate.Limiter
	log      *slog.Logger

	mux        *http.ServeMux
	httpServer *http.Server
}

// New builds a server for the spec. The data source resolver executes
// embedded queries through the same dialect handlers the routes use.
func New(cfg Config, spec *routeconfig.Spec, deps Dependencies) (*Server, error) {
	if spec == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "server", "New",
			"a route specification is required")
	}
	if deps.Engines == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "server", "New",
			"an engine cache is required")
	}
	if deps.Pipes == nil {
		deps.Pipes = pipes.NewRegistry()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	renderer, err := render.New(spec.Resources, render.WithRenderLogger(deps.Logger))
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(deps.Registry)
	if err != nil {
		return nil, errors.WrapInternal(err, "server", "New", "metrics registration")
	}

	s := &Server{
		cfg:      cfg,
		spec:     spec,
		pipes:    deps.Pipes,
		renderer: renderer,
		registry: deps.Registry,
		metrics:  m,
		log:      deps.Logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	resolver := engine.NewResolver(s.executeEmbedded)
	s.graphql = query.NewGraphQLLD(deps.Engines, resolver, query.WithLogger(deps.Logger))
	s.sparql = query.NewSPARQL(deps.Engines, resolver, query.WithLogger(deps.Logger))

	s.mux = http.NewServeMux()
	s.registerSystemEndpoints()
	s.registerRoutes()
	return s, nil
}

// Handler returns the root handler, which tests mount directly.
func (s *Server) Handler() http.Handler {
	return rateLimit(s.limiter, s.mux)
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.WrapInternal(err, "server", "Start", "HTTP listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.WrapInternal(err, "server", "Start", "HTTP shutdown")
	}
	s.log.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerSystemEndpoints() {
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	if s.spec.Resources.Public != "" {
		dir := filepath.Join(s.spec.Resources.Root, s.spec.Resources.Public)
		s.mux.Handle("GET /public/", http.StripPrefix("/public/", http.FileServer(http.Dir(dir))))
	}
}

func (s *Server) registerRoutes() {
	for _, route := range s.spec.Routes() {
		pattern := route.Method + " " + route.Path
		s.mux.Handle(pattern, s.instrument(pattern, s.routeHandler(route)))
		s.log.Debug("route mounted", "pattern", pattern, "summary", route.Summary)
	}
}

func (s *Server) routeHandler(route *routeconfig.Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route.Query == nil {
			s.respondError(w, r, route, errors.WrapInternal(
				fmt.Errorf("route %s %s has no query", route.Method, route.Path),
				"server", "routeHandler", "route is missing its query"))
			return
		}

		pathParams := make(map[string]string)
		for _, p := range route.Parameters {
			if p.In != "path" {
				continue
			}
			if v := r.PathValue(p.Name); v != "" {
				pathParams[p.Name] = v
			}
		}
		queryParams := make(map[string]string)
		for name, values := range r.URL.Query() {
			if len(values) > 0 {
				queryParams[name] = values[0]
			}
		}

		res, err := s.dispatch(r.Context(), route.Query, route.Parameters, pathParams, queryParams)
		if err != nil {
			s.respondError(w, r, route, err)
			return
		}

		res, err = s.pipes.Apply(res, route.Postprocessing)
		if err != nil {
			s.respondError(w, r, route, err)
			return
		}

		s.respond(w, r, route, res)
	})
}

// dispatch routes a query info to its dialect handler.
func (s *Server) dispatch(ctx context.Context, qi *routeconfig.QueryInfo, params []routeconfig.Parameter, pathParams, queryParams map[string]string) (*query.Result, error) {
	switch qi.Dialect {
	case routeconfig.DialectSPARQL:
		return s.sparql.Handle(ctx, qi, params, pathParams, queryParams)
	case routeconfig.DialectGraphQLLD:
		return s.graphql.Handle(ctx, qi, params, pathParams, queryParams)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownDialect, qi.Dialect),
			"server", "dispatch", fmt.Sprintf("no handler for dialect %q", qi.Dialect))
	}
}

// executeEmbedded runs an embedded data source query and returns the
// URIs its results resolve to. Embedded queries carry their own
// postprocessing chain.
func (s *Server) executeEmbedded(ctx context.Context, qi *routeconfig.QueryInfo) ([]string, error) {
	res, err := s.dispatch(ctx, qi, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	res, err = s.pipes.Apply(res, qi.Postprocessing)
	if err != nil {
		return nil, err
	}
	return res.SourceURIs(), nil
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, route *routeconfig.Route, res *query.Result) {
	template, hasTemplate := route.Template(http.StatusOK)
	htmlAvailable := hasTemplate && s.renderer.Has(template)

	media, err := convert.Negotiate(r.Header.Get("Accept"), htmlAvailable)
	if err != nil {
		s.respondError(w, r, route, err)
		return
	}

	if media == convert.MediaHTML {
		data, err := templateData(res, route.Query.Context)
		if err != nil {
			s.respondConversionFailure(w, r, route, err)
			return
		}
		body, err := s.renderer.Render(template, data)
		if err != nil {
			s.respondConversionFailure(w, r, route, err)
			return
		}
		w.Header().Set("Content-Type", convert.MediaHTML+"; charset=utf-8")
		_, _ = w.Write(body)
		return
	}

	body, err := convert.Serialize(res, route.Query.Context, media)
	if err != nil {
		s.respondConversionFailure(w, r, route, err)
		return
	}
	w.Header().Set("Content-Type", media)
	_, _ = w.Write(body)
}

// respondError maps the error to its HTTP status and writes the status
// template when the route configures one, a JSON problem body otherwise.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, route *routeconfig.Route, err error) {
	status := errors.HTTPStatus(err)
	s.log.Warn("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	s.writeStatus(w, route, status, err.Error())
}

// respondConversionFailure handles a result that executed fine but could
// not be serialized: 500 through the route's error template, or an empty
// body when none renders.
func (s *Server) respondConversionFailure(w http.ResponseWriter, r *http.Request, route *routeconfig.Route, err error) {
	s.log.Warn("response conversion failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)

	status := http.StatusInternalServerError
	if template, ok := route.Template(status); ok && s.renderer.Has(template) {
		body, renderErr := s.renderer.Render(template, statusData(status, err.Error()))
		if renderErr == nil {
			w.Header().Set("Content-Type", convert.MediaHTML+"; charset=utf-8")
			w.WriteHeader(status)
			_, _ = w.Write(body)
			return
		}
		s.log.Warn("error template failed to render", "template", template, "error", renderErr)
	}
	w.WriteHeader(status)
}

func (s *Server) writeStatus(w http.ResponseWriter, route *routeconfig.Route, status int, message string) {
	if route != nil {
		if template, ok := route.Template(status); ok && s.renderer.Has(template) {
			body, err := s.renderer.Render(template, statusData(status, message))
			if err == nil {
				w.Header().Set("Content-Type", convert.MediaHTML+"; charset=utf-8")
				w.WriteHeader(status)
				_, _ = w.Write(body)
				return
			}
			s.log.Warn("error template failed to render", "template", template, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": message,
	})
}

// templateData hands the template the result's JSON-LD document, so
// "@graph" and "@id" are addressable, plus each query's raw rows by key
// and a .rows alias for single-query routes.
func templateData(res *query.Result, jsonldContext map[string]any) (map[string]any, error) {
	data, err := convert.ToJSONLD(res, jsonldContext)
	if err != nil {
		return nil, err
	}
	for _, key := range res.Keys {
		set := res.Sets[key]
		if set.Kind == query.KindRows {
			data[key] = set.Rows
		} else {
			data[key] = set.Quads
		}
	}
	if len(res.Keys) == 1 {
		data["rows"] = data[res.Keys[0]]
	}
	return data, nil
}

func statusData(status int, message string) map[string]any {
	return map[string]any{
		"status":  status,
		"message": message,
	}
}
