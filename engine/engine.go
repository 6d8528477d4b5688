// Package engine manages query-engine instances: the engine abstraction the
// query handlers execute against, a process-lifetime cache of engine handles
// keyed by the sorted resolved data source set, recursive data source
// resolution, and connectivity diagnostics for failed sources.
package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/knakk/rdf"
)

// Engine is an opaque, stateful query-engine handle bound to a fixed set of
// data sources. Implementations delegate query evaluation to the sources;
// this codebase only orchestrates.
type Engine interface {
	// ConstructQuads executes a SPARQL CONSTRUCT query and materializes
	// the resulting quad stream.
	ConstructQuads(ctx context.Context, query string) ([]rdf.Quad, error)

	// QueryGraph executes a GraphQL-LD query under the given JSON-LD
	// context and returns tree-shaped bound-variable rows.
	QueryGraph(ctx context.Context, query string, jsonldContext map[string]any) ([]map[string]any, error)

	// InvalidateHTTPCache drops the engine's internal HTTP-level response
	// cache. Engine identity reuse is independent from freshness reuse:
	// routes with caching disabled still share the handle but call this
	// before every use.
	InvalidateHTTPCache(ctx context.Context) error
}

// Factory constructs an engine for a resolved set of source URIs. Injected
// so tests can substitute fakes for the real endpoint-backed client.
type Factory func(sources []string, lenient bool) (Engine, error)

// Key computes the cache key for a source set: the lexicographically sorted
// list joined with commas. Two routes whose source lists differ only in
// order share a cache entry.
func Key(sources []string) string {
	sorted := make([]string, len(sources))
	copy(sorted, sources)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
