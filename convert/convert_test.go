package convert

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/query"
	"github.com/c360/semserve/routeconfig"
)

const rdfsLabel = "http://www.w3.org/2000/01/rdf-schema#label"

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		html   bool
		want   string
	}{
		{name: "empty header prefers html when offered", accept: "", html: true, want: MediaHTML},
		{name: "empty header without template prefers json-ld", accept: "", html: false, want: MediaJSONLD},
		{name: "explicit turtle", accept: "text/turtle", html: true, want: MediaTurtle},
		{name: "wildcard picks first offer", accept: "*/*", html: false, want: MediaJSONLD},
		{name: "quality ordering respected", accept: "application/json;q=0.9, text/turtle;q=0.4", html: false, want: MediaJSON},
		{name: "browser accept prefers html", accept: "text/html,application/xhtml+xml,*/*;q=0.8", html: true, want: MediaHTML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Negotiate(tt.accept, tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNegotiateUnsatisfiableAccept(t *testing.T) {
	_, err := Negotiate("application/pdf", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotAcceptable)
	assert.Equal(t, 415, errors.HTTPStatus(err))
}

func rowsResult(t *testing.T) *query.Result {
	t.Helper()
	starring, err := rdf.NewIRI("http://example.org/person/pitt")
	require.NoError(t, err)

	res := query.NewResult(routeconfig.DialectGraphQLLD)
	res.Unnamed = true
	res.Add(routeconfig.DefaultQueryKey, query.ResultSet{
		Kind: query.KindRows,
		Rows: []map[string]any{
			{"id": "http://example.org/film/1", "label": "Seven", "starring": starring},
		},
	})
	return res
}

func quadsResult(t *testing.T) *query.Result {
	t.Helper()
	subj, err := rdf.NewIRI("http://example.org/film/1")
	require.NoError(t, err)
	pred, err := rdf.NewIRI(rdfsLabel)
	require.NoError(t, err)
	obj, err := rdf.NewLiteral("Seven")
	require.NoError(t, err)
	graph, err := rdf.NewIRI("http://example.org/sparql")
	require.NoError(t, err)

	res := query.NewResult(routeconfig.DialectSPARQL)
	res.Unnamed = true
	res.Add(routeconfig.DefaultQueryKey, query.ResultSet{
		Kind: query.KindQuads,
		Quads: []rdf.Quad{{
			Triple: rdf.Triple{Subj: subj, Pred: pred, Obj: obj},
			Ctx:    rdf.Context(graph),
		}},
	})
	return res
}

func TestToJSONSingleQueryUnwraps(t *testing.T) {
	body, err := ToJSON(rowsResult(t))
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Seven", rows[0]["label"])
	assert.Equal(t, "http://example.org/person/pitt", rows[0]["starring"])
}

func TestToJSONSingleNamedQueryKeepsKey(t *testing.T) {
	res := query.NewResult(routeconfig.DialectGraphQLLD)
	res.Add("books", query.ResultSet{
		Kind: query.KindRows,
		Rows: []map[string]any{{"id": "http://example.org/b/1", "label": "Dune"}},
	})

	body, err := ToJSON(res)
	require.NoError(t, err)

	var keyed map[string][]map[string]any
	require.NoError(t, json.Unmarshal(body, &keyed))
	require.Contains(t, keyed, "books")
	require.Len(t, keyed["books"], 1)
	assert.Equal(t, "Dune", keyed["books"][0]["label"])
}

func TestToJSONMultiQueryKeepsKeys(t *testing.T) {
	res := query.NewResult(routeconfig.DialectGraphQLLD)
	res.Add("films", query.ResultSet{Kind: query.KindRows, Rows: []map[string]any{{"label": "Seven"}}})
	res.Add("actors", query.ResultSet{Kind: query.KindRows, Rows: []map[string]any{{"name": "Pitt"}}})

	body, err := ToJSON(res)
	require.NoError(t, err)

	var keyed map[string][]map[string]any
	require.NoError(t, json.Unmarshal(body, &keyed))
	assert.Contains(t, keyed, "films")
	assert.Contains(t, keyed, "actors")
}

func TestToJSONLDAssemblesNodes(t *testing.T) {
	ctx := map[string]any{"label": rdfsLabel}

	doc, err := ToJSONLD(rowsResult(t), ctx)
	require.NoError(t, err)
	assert.Equal(t, ctx, doc["@context"])

	graph, ok := doc["@graph"].([]any)
	require.True(t, ok)
	require.Len(t, graph, 1)

	node := graph[0].(map[string]any)
	assert.Equal(t, "http://example.org/film/1", node["@id"])
	assert.Equal(t, map[string]any{"@id": "http://example.org/person/pitt"}, node["starring"])
	assert.NotContains(t, node, "id")
}

func TestToJSONLDMultiQueryFlattensIntoOneGraph(t *testing.T) {
	res := query.NewResult(routeconfig.DialectGraphQLLD)
	res.Add("films", query.ResultSet{
		Kind: query.KindRows,
		Rows: []map[string]any{{"id": "http://example.org/film/1", "label": "Seven"}},
	})
	res.Add("actors", query.ResultSet{
		Kind: query.KindRows,
		Rows: []map[string]any{{"id": "http://example.org/person/pitt", "name": "Pitt"}},
	})

	ctx := map[string]any{"label": rdfsLabel}
	doc, err := ToJSONLD(res, ctx)
	require.NoError(t, err)

	// Query keys must not leak to the top level, where a JSON-LD
	// processor would read them as terms.
	assert.NotContains(t, doc, "films")
	assert.NotContains(t, doc, "actors")

	graph, ok := doc["@graph"].([]any)
	require.True(t, ok)
	require.Len(t, graph, 2)
	assert.Equal(t, "http://example.org/film/1", graph[0].(map[string]any)["@id"])
	assert.Equal(t, "http://example.org/person/pitt", graph[1].(map[string]any)["@id"])
}

func TestSerializeRowsAsTurtle(t *testing.T) {
	ctx := map[string]any{
		"label":    rdfsLabel,
		"starring": map[string]any{"@id": "http://dbpedia.org/ontology/starring", "@type": "@id"},
	}

	body, err := Serialize(rowsResult(t), ctx, MediaTurtle)
	require.NoError(t, err)

	turtle := string(body)
	assert.Contains(t, turtle, "http://example.org/film/1")
	assert.Contains(t, turtle, "Seven")

	decoded, err := rdf.NewTripleDecoder(strings.NewReader(turtle), rdf.Turtle).DecodeAll()
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestSerializeQuads(t *testing.T) {
	res := quadsResult(t)

	nq, err := Serialize(res, nil, MediaNQuads)
	require.NoError(t, err)
	assert.Contains(t, string(nq), "<http://example.org/sparql>")

	nt, err := Serialize(res, nil, MediaNTriples)
	require.NoError(t, err)
	assert.Contains(t, string(nt), "<http://example.org/film/1>")
	assert.NotContains(t, string(nt), "<http://example.org/sparql>")
}

func TestSerializeQuadsAsJSONLD(t *testing.T) {
	body, err := Serialize(quadsResult(t), nil, MediaJSONLD)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Contains(t, doc, "@graph")
}

func TestSerializeUnknownMediaType(t *testing.T) {
	_, err := Serialize(rowsResult(t), nil, "application/pdf")
	require.Error(t, err)
	assert.Equal(t, 500, errors.HTTPStatus(err))
}
