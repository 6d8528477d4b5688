package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/routeconfig"
)

// ExecuteFunc runs an embedded data source query and returns the source
// URIs its results resolve to. Injected by the server wiring: executing a
// QueryInfo requires the query handlers, which in turn depend on this
// resolver, and the callback breaks that cycle.
type ExecuteFunc func(ctx context.Context, qi *routeconfig.QueryInfo) ([]string, error)

// Resolver expands a data source list where entries may be literal URIs or
// embedded queries whose results become source URIs. Resolution is
// depth-first, memoized, and guarded against cyclic specifications.
type Resolver struct {
	execute ExecuteFunc

	mu   sync.Mutex
	memo map[*routeconfig.QueryInfo][]string
}

// NewResolver creates a resolver that executes embedded queries through fn.
func NewResolver(fn ExecuteFunc) *Resolver {
	return &Resolver{
		execute: fn,
		memo:    make(map[*routeconfig.QueryInfo][]string),
	}
}

type visitedKey struct{}

func visitedFrom(ctx context.Context) map[*routeconfig.QueryInfo]bool {
	if v, ok := ctx.Value(visitedKey{}).(map[*routeconfig.QueryInfo]bool); ok {
		return v
	}
	return nil
}

// Resolve expands sources to a list of literal URIs. Embedded query specs
// are executed depth-first; a spec reached twice within one resolution pass
// is a cyclic configuration and fails fast.
func (r *Resolver) Resolve(ctx context.Context, sources []routeconfig.DataSource) ([]string, error) {
	visited := visitedFrom(ctx)
	if visited == nil {
		visited = make(map[*routeconfig.QueryInfo]bool)
		ctx = context.WithValue(ctx, visitedKey{}, visited)
	}

	resolved := make([]string, 0, len(sources))
	for i := range sources {
		src := sources[i]
		if src.Query == nil {
			resolved = append(resolved, src.URI)
			continue
		}

		if visited[src.Query] {
			return nil, errors.WrapInvalid(errors.ErrDataSourceCycle, "engine", "Resolve",
				"embedded data source query reached twice")
		}
		visited[src.Query] = true

		uris, err := r.resolveEmbedded(ctx, src.Query)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, uris...)
	}

	return resolved, nil
}

func (r *Resolver) resolveEmbedded(ctx context.Context, qi *routeconfig.QueryInfo) ([]string, error) {
	r.mu.Lock()
	if uris, ok := r.memo[qi]; ok {
		r.mu.Unlock()
		return uris, nil
	}
	r.mu.Unlock()

	if r.execute == nil {
		return nil, errors.WrapInternal(
			fmt.Errorf("%w: no execute function wired", errors.ErrEngineNotReady),
			"engine", "resolveEmbedded", "execute embedded query")
	}

	uris, err := r.execute(ctx, qi)
	if err != nil {
		return nil, errors.WrapInternal(err, "engine", "resolveEmbedded", "execute embedded query")
	}

	r.mu.Lock()
	r.memo[qi] = uris
	r.mu.Unlock()
	return uris, nil
}
