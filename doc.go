// Package semserve is a configuration-driven linked data server: a YAML
// route specification binds HTTP routes to GraphQL-LD or SPARQL queries
// over remote data sources, and responses are written in whichever
// representation the client negotiates.
//
// # Architecture
//
// A request flows through four stages:
//
//	┌──────────────┐   ┌──────────────┐   ┌──────────────┐   ┌──────────────┐
//	│    server    │ → │    query     │ → │    pipes     │ → │   convert    │
//	│ route match, │   │ substitution,│   │ postprocess  │   │ negotiation, │
//	│ params       │   │ execution    │   │ chain        │   │ serialization│
//	└──────────────┘   └──────────────┘   └──────────────┘   └──────────────┘
//
// The query stage substitutes request parameters into the route's query
// templates, resolves the route's data sources (literal URIs or embedded
// queries whose results become source URIs), and executes through a
// cached query engine keyed by the normalized source set.
//
// # Packages
//
// Core pipeline:
//   - routeconfig: YAML route specification loading and validation
//   - query: parameter substitution, dialect handlers, result model
//   - engine: engine cache, data source resolver, SPARQL endpoint client
//   - pipes: named postprocessing functions chained by the route
//   - convert: content negotiation and RDF/JSON-LD/JSON serialization
//   - render: HTML, Markdown and Go template rendering with layouts
//   - server: HTTP routing, status mapping, metrics, lifecycle
//
// Infrastructure:
//   - errors: structured error classification mapped to HTTP statuses
//   - pkg/cache: generic cache with statistics and prometheus metrics
//   - pkg/retry: bounded retry with backoff for source fetches
//
// # Usage
//
// Run the server against a route specification:
//
//	semserve --spec routes.yaml --addr :8080
//
// Or embed it:
//
//	spec, _ := routeconfig.Load("routes.yaml")
//	engines, _ := engine.NewCache(func(sources []string, lenient bool) (engine.Engine, error) {
//	    return engine.NewClient(sources, lenient)
//	})
//	srv, _ := server.New(server.Config{Addr: ":8080"}, spec, server.Dependencies{Engines: engines})
//	_ = srv.Start(ctx)
//
// Routes answer HTML when a template is configured, and JSON-LD, Turtle,
// N-Triples, N-Quads or raw JSON otherwise, picked from the request's
// Accept header.
package semserve
