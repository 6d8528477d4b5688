package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moviesNTriples = `<http://example.org/film/1> <http://www.w3.org/2000/01/rdf-schema#label> "Se7en" .
<http://example.org/film/1> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://dbpedia.org/ontology/Film> .
<http://example.org/film/2> <http://www.w3.org/2000/01/rdf-schema#label> "Fight Club" .
`

func newEndpoint(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.NotEmpty(t, r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/n-triples")
		_, _ = w.Write([]byte(moviesNTriples))
	}))
}

func TestConstructQuadsFetchesAndTagsGraph(t *testing.T) {
	srv := newEndpoint(t, nil)
	defer srv.Close()

	c, err := NewClient([]string{srv.URL}, false)
	require.NoError(t, err)
	defer c.Close()

	quads, err := c.ConstructQuads(context.Background(), "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	require.Len(t, quads, 3)
	assert.Equal(t, srv.URL, quads[0].Ctx.String(), "quads carry the source as graph name")
}

func TestConstructQuadsCachesResponses(t *testing.T) {
	var hits atomic.Int64
	srv := newEndpoint(t, &hits)
	defer srv.Close()

	c, err := NewClient([]string{srv.URL}, false)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	query := "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }"

	_, err = c.ConstructQuads(ctx, query)
	require.NoError(t, err)
	_, err = c.ConstructQuads(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load(), "second execution must be served from the HTTP cache")

	require.NoError(t, c.InvalidateHTTPCache(ctx))
	_, err = c.ConstructQuads(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load(), "invalidation must force a refetch")
}

func TestConstructQuadsLenientSkipsFailedSource(t *testing.T) {
	srv := newEndpoint(t, nil)
	defer srv.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no", http.StatusBadRequest)
	}))
	defer dead.Close()

	lenient, err := NewClient([]string{dead.URL, srv.URL}, true)
	require.NoError(t, err)
	defer lenient.Close()

	quads, err := lenient.ConstructQuads(context.Background(), "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Len(t, quads, 3)

	strict, err := NewClient([]string{dead.URL, srv.URL}, false)
	require.NoError(t, err)
	defer strict.Close()

	_, err = strict.ConstructQuads(context.Background(), "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), dead.URL, "strict mode surfaces the failing source")
}

func TestConstructQuadsLenientStillFailsWhenAllSourcesFail(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no", http.StatusBadRequest)
	}))
	defer dead.Close()

	c, err := NewClient([]string{dead.URL}, true)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.ConstructQuads(context.Background(), "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }")
	assert.Error(t, err)
}

func TestQueryGraphGroupsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		assert.Contains(t, query, "CONSTRUCT")
		assert.Contains(t, query, "http://www.w3.org/2000/01/rdf-schema#label")
		w.Header().Set("Content-Type", "application/n-triples")
		_, _ = w.Write([]byte(moviesNTriples))
	}))
	defer srv.Close()

	c, err := NewClient([]string{srv.URL}, false)
	require.NoError(t, err)
	defer c.Close()

	jsonldContext := map[string]any{
		"label": "http://www.w3.org/2000/01/rdf-schema#label",
	}
	rows, err := c.QueryGraph(context.Background(), "{ id label }", jsonldContext)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "http://example.org/film/1", rows[0]["id"])
	assert.Equal(t, "Se7en", rows[0]["label"])
	assert.Equal(t, "Fight Club", rows[1]["label"])
}

func TestNewClientRequiresSources(t *testing.T) {
	_, err := NewClient(nil, false)
	assert.Error(t, err)
}

func TestConstructQuadsRetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/n-triples")
		_, _ = w.Write([]byte(moviesNTriples))
	}))
	defer srv.Close()

	c, err := NewClient([]string{srv.URL}, false, WithResponseTTL(time.Minute))
	require.NoError(t, err)
	defer c.Close()

	quads, err := c.ConstructQuads(context.Background(), "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Len(t, quads, 3)
	assert.Equal(t, int64(2), hits.Load())
}
