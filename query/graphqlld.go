package query

import (
	"context"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/c360/semserve/engine"
	"github.com/c360/semserve/routeconfig"
)

// GraphQLLD executes GraphQL-LD query infos: every named query is
// substituted, run against the engine for the resolved source set, and
// postprocessed through its sort and remove-duplicates options.
type GraphQLLD struct {
	handler
}

// NewGraphQLLD creates the GraphQL-LD handler.
func NewGraphQLLD(engines *engine.Cache, resolver *engine.Resolver, options ...Option) *GraphQLLD {
	return &GraphQLLD{handler: newHandler(engines, resolver, options...)}
}

// Handle runs every named query of qi and returns the keyed result sets
// in declaration order.
func (h *GraphQLLD) Handle(ctx context.Context, qi *routeconfig.QueryInfo, params []routeconfig.Parameter, pathParams, queryParams map[string]string) (*Result, error) {
	substituted, eng, sources, err := h.prepare(ctx, qi, params, pathParams, queryParams)
	if err != nil {
		return nil, err
	}

	result := NewResult(routeconfig.DialectGraphQLLD)
	result.Unnamed = qi.Unnamed
	for _, key := range qi.QueryOrder {
		text := substituted[key]

		rows, err := eng.QueryGraph(ctx, text, qi.Context)
		if err != nil {
			return nil, h.executionError(ctx, routeconfig.DialectGraphQLLD.ErrorPrefix(), text, sources, err)
		}

		rows = h.injectStaticID(text, qi.Context, rows)

		rows, err = applyOptions(rows, qi.Queries[key])
		if err != nil {
			return nil, err
		}
		result.Add(key, ResultSet{Kind: KindRows, Rows: rows})
	}
	return result, nil
}

// injectStaticID overrides the id of every row when the query pins the
// subject with a static id argument, expanding the value through the
// JSON-LD context. An id field carrying a nested selection is logged and
// skipped.
func (h *GraphQLLD) injectStaticID(text string, jsonldContext map[string]any, rows []map[string]any) []map[string]any {
	doc, err := parser.ParseQuery(&ast.Source{Name: "graphql-ld", Input: text})
	if err != nil || len(doc.Operations) == 0 {
		return rows
	}

	for _, sel := range doc.Operations[0].SelectionSet {
		field, ok := sel.(*ast.Field)
		if !ok || field.Name != "id" || len(field.Arguments) == 0 {
			continue
		}
		if len(field.SelectionSet) > 0 {
			h.log.Warn("static id argument with a nested selection is not supported, skipping",
				"field", field.Name)
			continue
		}
		if field.Arguments[0].Value.Kind == ast.Variable {
			// Only a literal id pins the subject.
			continue
		}

		raw := field.Arguments[0].Value.Raw
		iri, err := engine.ExpandTerm(jsonldContext, raw)
		if err != nil {
			h.log.Warn("could not expand static id through the JSON-LD context, using it verbatim",
				"id", raw, "error", err)
			iri = raw
		}
		for _, row := range rows {
			row["id"] = iri
		}
		return rows
	}
	return rows
}
