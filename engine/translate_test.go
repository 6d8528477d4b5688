package engine

import (
	"testing"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var movieContext = map[string]any{
	"Film":     "http://dbpedia.org/ontology/Film",
	"label":    "http://www.w3.org/2000/01/rdf-schema#label",
	"starring": "http://dbpedia.org/ontology/starring",
	"dbo":      "http://dbpedia.org/ontology/",
}

func TestTranslateFlatSelection(t *testing.T) {
	sparql, projection, err := translateGraphQLLD("{ id label starring }", movieContext)
	require.NoError(t, err)

	assert.Contains(t, sparql, "CONSTRUCT {")
	assert.Contains(t, sparql, "?s <http://www.w3.org/2000/01/rdf-schema#label> ?v1 .")
	assert.Contains(t, sparql, "?s <http://dbpedia.org/ontology/starring> ?v2 .")
	assert.Equal(t, map[string]string{
		"http://www.w3.org/2000/01/rdf-schema#label": "label",
		"http://dbpedia.org/ontology/starring":       "starring",
	}, projection)
}

func TestTranslateInlineFragmentAddsTypePattern(t *testing.T) {
	sparql, _, err := translateGraphQLLD("{ id ... on Film { label } }", movieContext)
	require.NoError(t, err)

	assert.Contains(t, sparql, "<"+RDFType+"> <http://dbpedia.org/ontology/Film>")
	assert.Contains(t, sparql, "rdf-schema#label")
}

func TestTranslateStaticArgumentBecomesFixedObject(t *testing.T) {
	sparql, projection, err := translateGraphQLLD(`{ id label(_: "Brad Pitt") }`, movieContext)
	require.NoError(t, err)

	assert.Contains(t, sparql, `?s <http://www.w3.org/2000/01/rdf-schema#label> "Brad Pitt" .`)
	assert.Empty(t, projection, "fixed-object fields are not projected")
}

func TestTranslateUnboundVariableErrors(t *testing.T) {
	_, _, err := translateGraphQLLD(`{ id label(_: $actor) }`, movieContext)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Variable")
	assert.Contains(t, err.Error(), "actor")
}

func TestTranslateNestedSelectionUnsupported(t *testing.T) {
	_, _, err := translateGraphQLLD(`{ id starring { label } }`, movieContext)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested selection")
}

func TestTranslateUnknownTermErrors(t *testing.T) {
	_, _, err := translateGraphQLLD(`{ id mystery }`, movieContext)
	assert.Error(t, err)
}

func TestTranslateMalformedQueryErrors(t *testing.T) {
	_, _, err := translateGraphQLLD(`{ id`, movieContext)
	assert.Error(t, err)
}

func TestExpandTerm(t *testing.T) {
	iri, err := ExpandTerm(movieContext, "label")
	require.NoError(t, err)
	assert.Equal(t, "http://www.w3.org/2000/01/rdf-schema#label", iri)

	iri, err = ExpandTerm(movieContext, "dbo:director")
	require.NoError(t, err)
	assert.Equal(t, "http://dbpedia.org/ontology/director", iri)

	iri, err = ExpandTerm(movieContext, "http://example.org/x")
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/x", iri)

	_, err = ExpandTerm(movieContext, "unmapped")
	assert.Error(t, err)

	nodeCtx := map[string]any{"label": map[string]any{"@id": "http://example.org/label"}}
	iri, err = ExpandTerm(nodeCtx, "label")
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/label", iri)
}

func mustIRI(t *testing.T, s string) rdf.IRI {
	t.Helper()
	iri, err := rdf.NewIRI(s)
	require.NoError(t, err)
	return iri
}

func mustLiteral(t *testing.T, s string) rdf.Literal {
	t.Helper()
	lit, err := rdf.NewLiteral(s)
	require.NoError(t, err)
	return lit
}

func TestGroupBySubject(t *testing.T) {
	label := "http://www.w3.org/2000/01/rdf-schema#label"
	starring := "http://dbpedia.org/ontology/starring"

	quads := []rdf.Quad{
		{Triple: rdf.Triple{
			Subj: mustIRI(t, "http://example.org/film/1"),
			Pred: mustIRI(t, label),
			Obj:  mustLiteral(t, "Se7en"),
		}, Ctx: rdf.Context(mustIRI(t, "http://src.example"))},
		{Triple: rdf.Triple{
			Subj: mustIRI(t, "http://example.org/film/1"),
			Pred: mustIRI(t, starring),
			Obj:  mustIRI(t, "http://example.org/person/pitt"),
		}, Ctx: rdf.Context(mustIRI(t, "http://src.example"))},
		{Triple: rdf.Triple{
			Subj: mustIRI(t, "http://example.org/film/2"),
			Pred: mustIRI(t, label),
			Obj:  mustLiteral(t, "Fight Club"),
		}, Ctx: rdf.Context(mustIRI(t, "http://src.example"))},
	}
	projection := map[string]string{label: "label", starring: "starring"}

	rows := groupBySubject(quads, projection)
	require.Len(t, rows, 2)
	assert.Equal(t, "http://example.org/film/1", rows[0]["id"])
	assert.Equal(t, "Se7en", rows[0]["label"])
	iri, ok := rows[0]["starring"].(rdf.IRI)
	require.True(t, ok, "IRI objects stay RDF terms")
	assert.Equal(t, "http://example.org/person/pitt", iri.String())
	assert.Equal(t, "Fight Club", rows[1]["label"])
}

func TestGroupBySubjectAccumulatesRepeatedPredicates(t *testing.T) {
	label := "http://www.w3.org/2000/01/rdf-schema#label"
	quads := []rdf.Quad{
		{Triple: rdf.Triple{
			Subj: mustIRI(t, "http://example.org/film/1"),
			Pred: mustIRI(t, label),
			Obj:  mustLiteral(t, "Se7en"),
		}, Ctx: rdf.Context(mustIRI(t, "http://src.example"))},
		{Triple: rdf.Triple{
			Subj: mustIRI(t, "http://example.org/film/1"),
			Pred: mustIRI(t, label),
			Obj:  mustLiteral(t, "Seven"),
		}, Ctx: rdf.Context(mustIRI(t, "http://src.example"))},
	}

	rows := groupBySubject(quads, map[string]string{label: "label"})
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"Se7en", "Seven"}, rows[0]["label"])
}
