package routeconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSpec = `
resources:
  views: views
  layouts: layouts
datasources:
  - http://fragments.dbpedia.org/2016-04/en
paths:
  /movies/{actor}:
    get:
      summary: Movies for an actor
      parameters:
        - name: actor
          in: path
          required: true
          schema:
            type: string
        - name: page
          in: query
          schema:
            type: integer
            minimum: 0
        - name: limit
          in: query
          schema:
            type: integer
            minimum: 1
            maximum: 50
      query:
        dialect: graphql-ld
        context:
          Film: http://dbpedia.org/ontology/Film
          label: http://www.w3.org/2000/01/rdf-schema#label
          starring: http://dbpedia.org/ontology/starring
        queries:
          movies:
            text: '{ id @single ... on Film { starring(label: $actor) } }'
            sort:
              object: ""
              selectors:
                - value: label
                  order: desc
            remove-duplicates:
              object: ""
              value: id
          directors:
            text: '{ id @single label(_: $actor) }'
      postprocessing:
        - pipe: trim-labels
          parameters: [label]
      responses:
        200: movies.tmpl
        500: error.tmpl
  /artists:
    get:
      summary: Artists via SPARQL
      query:
        dialect: sparql
        cache: false
        datasources:
          - http://example.org/sparql
        query: 'CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }'
        frame:
          "@type": http://example.org/Artist
      responses:
        200: artists.tmpl
`

func TestParseSampleSpec(t *testing.T) {
	spec, err := Parse([]byte(sampleSpec))
	require.NoError(t, err)

	require.Contains(t, spec.Paths, "/movies/{actor}")
	route := spec.Paths["/movies/{actor}"]["get"]
	require.NotNil(t, route)
	assert.Equal(t, "GET", route.Method)
	assert.Equal(t, "/movies/{actor}", route.Path)

	require.Len(t, route.Parameters, 3)
	actor, ok := route.Parameter("actor")
	require.True(t, ok)
	assert.Equal(t, "path", actor.In)
	assert.True(t, actor.Required)
	assert.Equal(t, "string", actor.Type)

	limit, ok := route.Parameter("limit")
	require.True(t, ok)
	assert.Equal(t, "integer", limit.Type)
	require.NotNil(t, limit.Minimum)
	assert.Equal(t, 1, *limit.Minimum)
	require.NotNil(t, limit.Maximum)
	assert.Equal(t, 50, *limit.Maximum)

	q := route.Query
	require.NotNil(t, q)
	assert.Equal(t, DialectGraphQLLD, q.Dialect)
	assert.True(t, q.Cache, "cache defaults to true")
	assert.Equal(t, []string{"movies", "directors"}, q.QueryOrder)
	assert.False(t, q.Unnamed, "named queries keep their keys in responses")

	movies := q.Queries["movies"]
	require.NotNil(t, movies)
	require.NotNil(t, movies.Sort)
	require.Len(t, movies.Sort.Selectors, 1)
	assert.True(t, movies.Sort.Selectors[0].Descending())
	require.NotNil(t, movies.RemoveDuplicates)
	assert.Equal(t, "id", movies.RemoveDuplicates.Value)

	// Route-level datasources default to the global list
	require.Len(t, q.DataSources, 1)
	assert.Equal(t, "http://fragments.dbpedia.org/2016-04/en", q.DataSources[0].URI)

	assert.Equal(t, "movies.tmpl", route.Responses[200])
	assert.Equal(t, "error.tmpl", route.Responses[500])
}

func TestParseSPARQLRoute(t *testing.T) {
	spec, err := Parse([]byte(sampleSpec))
	require.NoError(t, err)

	route := spec.Paths["/artists"]["get"]
	require.NotNil(t, route)
	q := route.Query
	require.NotNil(t, q)
	assert.Equal(t, DialectSPARQL, q.Dialect)
	assert.False(t, q.Cache)
	assert.Equal(t, []string{DefaultQueryKey}, q.QueryOrder)
	assert.True(t, q.Unnamed, "single-query shorthand unwraps in responses")
	assert.Contains(t, q.Queries[DefaultQueryKey].Text, "CONSTRUCT")
	require.NotNil(t, q.Frame)
	// Route-level datasources override the global list
	require.Len(t, q.DataSources, 1)
	assert.Equal(t, "http://example.org/sparql", q.DataSources[0].URI)
}

func TestParseEmbeddedQueryDataSource(t *testing.T) {
	doc := `
paths:
  /things:
    get:
      query:
        dialect: sparql
        query: 'CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }'
        datasources:
          - http://example.org/static
          - dialect: graphql-ld
            context:
              source: http://example.org/vocab#source
            query: '{ source @single }'
            datasources:
              - http://example.org/catalog
      responses:
        200: things.html
`
	spec, err := Parse([]byte(doc))
	require.NoError(t, err)

	q := spec.Paths["/things"]["get"].Query
	require.Len(t, q.DataSources, 2)
	assert.Equal(t, "http://example.org/static", q.DataSources[0].URI)
	require.NotNil(t, q.DataSources[1].Query)
	assert.Equal(t, DialectGraphQLLD, q.DataSources[1].Query.Dialect)
	require.Len(t, q.DataSources[1].Query.DataSources, 1)
}

func TestParseRejectsMalformedDocument(t *testing.T) {
	_, err := Parse([]byte(`paths: "not a mapping"`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{`))
	assert.Error(t, err)

	_, err = Parse([]byte(`resources: {}`))
	assert.Error(t, err, "paths is required")
}

func TestValidateWarnsOnUndescribedVariable(t *testing.T) {
	doc := `
paths:
  /movies/{actor}:
    get:
      parameters:
        - name: actor
          in: path
          required: true
          schema: {type: string}
      query:
        dialect: graphql-ld
        query: '{ label(_: $actor) country(_: $country) }'
      responses:
        200: movies.html
`
	spec, err := Parse([]byte(doc))
	require.NoError(t, err)

	warnings, err := spec.Validate()
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "$country")
}

func TestValidateWarnsOnUnusedParameter(t *testing.T) {
	doc := `
paths:
  /movies:
    get:
      parameters:
        - name: ghost
          in: query
          schema: {type: string}
      query:
        dialect: graphql-ld
        query: '{ id @single }'
      responses:
        200: movies.html
`
	spec, err := Parse([]byte(doc))
	require.NoError(t, err)

	warnings, err := spec.Validate()
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "ghost")
}

func TestValidateRejectsUnknownDialect(t *testing.T) {
	doc := `
paths:
  /movies:
    get:
      query:
        dialect: cypher
        query: 'MATCH (n) RETURN n'
      responses:
        200: movies.html
`
	spec, err := Parse([]byte(doc))
	require.NoError(t, err)

	_, err = spec.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsBadParameterLocation(t *testing.T) {
	doc := `
paths:
  /movies:
    get:
      parameters:
        - name: actor
          in: header
          schema: {type: string}
      responses:
        200: movies.html
`
	spec, err := Parse([]byte(doc))
	require.NoError(t, err)

	_, err = spec.Validate()
	assert.Error(t, err)
}

func TestValidateWarnsOnMissingPathParameter(t *testing.T) {
	doc := `
paths:
  /movies/{actor}:
    get:
      responses:
        200: movies.html
`
	spec, err := Parse([]byte(doc))
	require.NoError(t, err)

	warnings, err := spec.Validate()
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "{actor}")
}

func TestRoutesDeterministicOrder(t *testing.T) {
	spec, err := Parse([]byte(sampleSpec))
	require.NoError(t, err)

	routes := spec.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "/artists", routes[0].Path)
	assert.Equal(t, "/movies/{actor}", routes[1].Path)
}

func TestPipeNamesCollectsRouteAndEmbeddedPipes(t *testing.T) {
	doc := `
paths:
  /movies:
    get:
      query:
        dialect: graphql-ld
        query: '{ label }'
        context:
          label: http://www.w3.org/2000/01/rdf-schema#label
        datasources:
          - dialect: sparql
            query: 'CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }'
            datasources:
              - http://example.org/sparql
            postprocessing:
              - pipe: pick
                parameters: [id]
      postprocessing:
        - pipe: limit
          parameters: [10]
        - pipe: limit
          parameters: [5]
`
	spec, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"limit", "pick"}, spec.PipeNames())
}
