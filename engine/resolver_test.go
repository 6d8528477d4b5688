package engine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/routeconfig"
)

func TestResolveLiteralsPassThrough(t *testing.T) {
	r := NewResolver(nil)
	got, err := r.Resolve(context.Background(), []routeconfig.DataSource{
		{URI: "http://a.example"},
		{URI: "http://b.example"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, got)
}

func TestResolveEmbeddedQuery(t *testing.T) {
	nested := &routeconfig.QueryInfo{Dialect: routeconfig.DialectGraphQLLD}
	var calls atomic.Int64
	r := NewResolver(func(_ context.Context, qi *routeconfig.QueryInfo) ([]string, error) {
		calls.Add(1)
		assert.Same(t, nested, qi)
		return []string{"http://derived-1.example", "http://derived-2.example"}, nil
	})

	got, err := r.Resolve(context.Background(), []routeconfig.DataSource{
		{URI: "http://static.example"},
		{Query: nested},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://static.example",
		"http://derived-1.example",
		"http://derived-2.example",
	}, got)
}

func TestResolveMemoizesEmbeddedResults(t *testing.T) {
	nested := &routeconfig.QueryInfo{Dialect: routeconfig.DialectSPARQL}
	var calls atomic.Int64
	r := NewResolver(func(_ context.Context, _ *routeconfig.QueryInfo) ([]string, error) {
		calls.Add(1)
		return []string{"http://derived.example"}, nil
	})

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), []routeconfig.DataSource{{Query: nested}})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), calls.Load(), "embedded query results are memoized")
}

func TestResolveDetectsCycle(t *testing.T) {
	// A spec that reaches itself through its own datasource list, as YAML
	// aliasing can produce
	cyclic := &routeconfig.QueryInfo{Dialect: routeconfig.DialectSPARQL}
	cyclic.DataSources = []routeconfig.DataSource{{Query: cyclic}}

	// Mimic the real wiring: executing an embedded query first resolves
	// its own datasources through the same resolver
	var r *Resolver
	r = NewResolver(func(ctx context.Context, qi *routeconfig.QueryInfo) ([]string, error) {
		if _, err := r.Resolve(ctx, qi.DataSources); err != nil {
			return nil, err
		}
		return []string{"http://never-reached.example"}, nil
	})

	_, err := r.Resolve(context.Background(), []routeconfig.DataSource{{Query: cyclic}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDataSourceCycle)
}

func TestResolveWithoutExecuteFuncFails(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve(context.Background(), []routeconfig.DataSource{
		{Query: &routeconfig.QueryInfo{}},
	})
	assert.Error(t, err)
}
